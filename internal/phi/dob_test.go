package phi

import (
	"testing"
	"time"
)

func TestGeneralizeDateOfBirth(t *testing.T) {
	today := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	t.Run("nil passes through", func(t *testing.T) {
		generalized, event := GeneralizeDateOfBirth(nil, today)
		if generalized != nil || event != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", generalized, event)
		}
	})

	t.Run("under 90 keeps year only", func(t *testing.T) {
		dob := time.Date(1980, time.March, 14, 0, 0, 0, 0, time.UTC)
		generalized, event := GeneralizeDateOfBirth(&dob, today)
		if generalized == nil {
			t.Fatal("expected generalized date")
		}
		want := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !generalized.Equal(want) {
			t.Errorf("got %v, want %v", generalized, want)
		}
		if event == nil || event.Action != ActionGeneralize || event.EntityType != "PATIENT_DOB" {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("90 or older suppressed", func(t *testing.T) {
		dob := time.Date(1936, time.June, 15, 0, 0, 0, 0, time.UTC)
		generalized, event := GeneralizeDateOfBirth(&dob, today)
		if generalized != nil {
			t.Errorf("expected suppression, got %v", generalized)
		}
		if event == nil || event.Action != ActionSuppress {
			t.Errorf("unexpected event %+v", event)
		}
		if event != nil && event.Surrogate != "" {
			t.Errorf("suppression event carries surrogate %q", event.Surrogate)
		}
	})

	t.Run("89 with birthday tomorrow kept", func(t *testing.T) {
		dob := time.Date(1936, time.June, 16, 0, 0, 0, 0, time.UTC)
		generalized, event := GeneralizeDateOfBirth(&dob, today)
		if generalized == nil {
			t.Fatal("patient is 89, expected generalized date")
		}
		if event.Action != ActionGeneralize {
			t.Errorf("action = %v, want generalize", event.Action)
		}
	})

	t.Run("90th birthday today suppressed", func(t *testing.T) {
		dob := time.Date(1936, time.June, 15, 0, 0, 0, 0, time.UTC)
		if generalized, _ := GeneralizeDateOfBirth(&dob, today); generalized != nil {
			t.Error("patient turned 90 today, expected suppression")
		}
	})
}
