package phi

import (
	"fmt"
	"time"
)

const ageSuppressionThreshold = 90

// GeneralizeDateOfBirth applies Safe Harbor date handling to a date of
// birth. Patients aged 90 or older as of today have the date suppressed
// entirely; younger patients keep only the birth year, pinned to January 1.
// A nil input passes through with no event.
func GeneralizeDateOfBirth(dob *time.Time, today time.Time) (*time.Time, *TransformationEvent) {
	if dob == nil {
		return nil, nil
	}

	if ageInYears(*dob, today) >= ageSuppressionThreshold {
		return nil, &TransformationEvent{
			EntityType: "PATIENT_DOB",
			Action:     ActionSuppress,
		}
	}

	generalized := time.Date(dob.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return &generalized, &TransformationEvent{
		EntityType: "PATIENT_DOB",
		Action:     ActionGeneralize,
		Surrogate:  fmt.Sprintf("%04d-01-01", dob.Year()),
	}
}

// ageInYears computes completed years between dob and today, decrementing
// when this year's birthday has not yet passed.
func ageInYears(dob, today time.Time) int {
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}
