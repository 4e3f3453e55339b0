package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rfranks/ehr-anonymizer/internal/phi"
)

// FieldRule binds a patient record path to an entity type. FreeText routes
// the value through full detection instead of direct strategy dispatch,
// which is the path for narrative fields that can contain any PHI. A "*"
// segment fans out over list elements or map values; any other segment
// indexes by key or integer position.
type FieldRule struct {
	Path       []string
	EntityType string
	FreeText   bool
}

// DefaultFieldRules covers the standard patient record shape.
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{Path: []string{"name"}, EntityType: "PERSON"},
		{Path: []string{"first_name"}, EntityType: "PERSON"},
		{Path: []string{"last_name"}, EntityType: "PERSON"},
		{Path: []string{"phone"}, EntityType: "PHONE_NUMBER"},
		{Path: []string{"phone_number"}, EntityType: "PHONE_NUMBER"},
		{Path: []string{"email"}, EntityType: "EMAIL_ADDRESS"},
		{Path: []string{"ssn"}, EntityType: "US_SSN"},
		{Path: []string{"mrn"}, EntityType: "MEDICAL_RECORD_NUMBER"},
		{Path: []string{"medical_record_number"}, EntityType: "MEDICAL_RECORD_NUMBER"},
		{Path: []string{"address", "street"}, EntityType: "STREET_ADDRESS"},
		{Path: []string{"address", "city"}, EntityType: "CITY"},
		{Path: []string{"address", "state"}, EntityType: "STATE_OR_PROVINCE"},
		{Path: []string{"address", "zip"}, EntityType: "ZIP_CODE"},
		{Path: []string{"address", "zip_code"}, EntityType: "ZIP_CODE"},
		{Path: []string{"insurance", "member_id"}, EntityType: "MEMBER_ID"},
		{Path: []string{"insurance", "policy_number"}, EntityType: "HEALTH_INSURANCE_ID"},
		{Path: []string{"insurance", "provider"}, EntityType: "ORGANIZATION"},
		{Path: []string{"facility"}, EntityType: "FACILITY_NAME"},
		{Path: []string{"notes"}, FreeText: true},
		{Path: []string{"clinical_notes"}, FreeText: true},
		{Path: []string{"encounters", "*", "provider"}, EntityType: "PERSON"},
		{Path: []string{"encounters", "*", "facility"}, EntityType: "FACILITY_NAME"},
		{Path: []string{"encounters", "*", "notes"}, FreeText: true},
	}
}

// AnonymizeFields walks the patient record and rewrites every matched leaf
// in place. Missing paths and structured leaves are skipped; non-string
// scalar leaves are stringified before dispatch.
func AnonymizeFields(ctx context.Context, engine *phi.Engine, rc *phi.ReplacementContext, patient map[string]any, rules []FieldRule) ([]phi.TransformationEvent, error) {
	var events []phi.TransformationEvent
	for _, rule := range rules {
		ruleEvents, err := applyRule(ctx, engine, rc, patient, rule.Path, rule)
		if err != nil {
			return nil, err
		}
		events = append(events, ruleEvents...)
	}
	return events, nil
}

func applyRule(ctx context.Context, engine *phi.Engine, rc *phi.ReplacementContext, node any, path []string, rule FieldRule) ([]phi.TransformationEvent, error) {
	if len(path) == 0 {
		return nil, nil
	}

	segment := path[0]
	if segment == "*" {
		var elements []any
		switch typed := node.(type) {
		case []any:
			elements = typed
		case map[string]any:
			elements = make([]any, 0, len(typed))
			for _, element := range typed {
				elements = append(elements, element)
			}
		default:
			return nil, nil
		}
		var events []phi.TransformationEvent
		for _, element := range elements {
			elementEvents, err := applyRule(ctx, engine, rc, element, path[1:], rule)
			if err != nil {
				return nil, err
			}
			events = append(events, elementEvents...)
		}
		return events, nil
	}

	value, set, ok := childAt(node, segment)
	if !ok || value == nil {
		return nil, nil
	}

	if len(path) > 1 {
		return applyRule(ctx, engine, rc, value, path[1:], rule)
	}

	switch value.(type) {
	case map[string]any, []any:
		return nil, nil
	}
	text, isString := value.(string)
	if !isString {
		text = fmt.Sprint(value)
	}
	if text == "" {
		return nil, nil
	}

	if rule.FreeText {
		anonymized, events, err := engine.AnonymizeWithEvents(ctx, text, rc)
		if err != nil {
			return nil, fmt.Errorf("anonymizing field %s: %w", segment, err)
		}
		set(anonymized)
		return events, nil
	}

	replacement, event := engine.ApplyStrategy(ctx, rule.EntityType, text, rc)
	set(replacement)
	return []phi.TransformationEvent{event}, nil
}

// childAt locates a path segment inside a map (by key) or a list (by
// integer index) and returns the value with a setter that writes back to
// the same slot. Absent keys and out-of-range indexes report not-ok.
func childAt(node any, segment string) (any, func(any), bool) {
	switch typed := node.(type) {
	case map[string]any:
		value, present := typed[segment]
		if !present {
			return nil, nil, false
		}
		return value, func(v any) { typed[segment] = v }, true
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(typed) {
			return nil, nil, false
		}
		return typed[index], func(v any) { typed[index] = v }, true
	}
	return nil, nil, false
}

// dobFieldNames are tried in order when locating the date of birth.
var dobFieldNames = []string{"date_of_birth", "dob", "birth_date"}

var dobLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// GeneralizeDOB applies Safe Harbor date-of-birth handling in place and
// returns the resulting event, if any. Unparseable values are a validation
// error rather than a leak.
func GeneralizeDOB(patient map[string]any, today time.Time) (*phi.TransformationEvent, error) {
	for _, field := range dobFieldNames {
		raw, ok := patient[field]
		if !ok || raw == nil {
			continue
		}
		text, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Reason: field + " is not a string"}
		}

		parsed, err := parseDOB(text)
		if err != nil {
			return nil, &ValidationError{Reason: field + " is not a recognized date"}
		}

		generalized, event := phi.GeneralizeDateOfBirth(&parsed, today)
		if generalized == nil {
			delete(patient, field)
		} else {
			patient[field] = generalized.Format("2006-01-02")
		}
		return event, nil
	}
	return nil, nil
}

func parseDOB(text string) (time.Time, error) {
	for _, layout := range dobLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
