package phi

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

type fakeDetector struct {
	spans []EntitySpan
	err   error
}

func (d fakeDetector) Detect(ctx context.Context, text, language string) ([]EntitySpan, error) {
	return d.spans, d.err
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestEngine(t *testing.T, detector Detector, cfg EngineConfig) *Engine {
	t.Helper()
	engine, err := NewEngine(detector, NewRegistry(RegistryConfig{}), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func TestResolveOverlaps(t *testing.T) {
	t.Run("earlier and longer spans win", func(t *testing.T) {
		spans := []EntitySpan{
			{Start: 0, End: 10, EntityType: "PERSON"},
			{Start: 5, End: 8, EntityType: "CITY"},
			{Start: 12, End: 20, EntityType: "PHONE_NUMBER"},
		}
		accepted := ResolveOverlaps(spans)
		if len(accepted) != 2 {
			t.Fatalf("accepted %d spans, want 2", len(accepted))
		}
		if accepted[0].EntityType != "PERSON" || accepted[1].EntityType != "PHONE_NUMBER" {
			t.Errorf("unexpected winners: %+v", accepted)
		}
	})

	t.Run("tie on start prefers longer", func(t *testing.T) {
		spans := []EntitySpan{
			{Start: 0, End: 4, EntityType: "CITY"},
			{Start: 0, End: 9, EntityType: "LOCATION"},
		}
		accepted := ResolveOverlaps(spans)
		if len(accepted) != 1 || accepted[0].EntityType != "LOCATION" {
			t.Errorf("unexpected winners: %+v", accepted)
		}
	})

	t.Run("unknown entity types dropped", func(t *testing.T) {
		spans := []EntitySpan{{Start: 0, End: 4, EntityType: "WEATHER"}}
		if accepted := ResolveOverlaps(spans); len(accepted) != 0 {
			t.Errorf("expected drop, got %+v", accepted)
		}
	})
}

func TestAnonymizeWithEvents(t *testing.T) {
	text := "Call John Smith at 555-123-4567"
	detector := fakeDetector{spans: []EntitySpan{
		{Start: 5, End: 15, EntityType: "PERSON", Score: 0.9},
		{Start: 19, End: 31, EntityType: "PHONE_NUMBER", Score: 0.8},
	}}

	t.Run("replace action", func(t *testing.T) {
		engine := newTestEngine(t, detector, EngineConfig{
			DefaultAction:          ActionReplace,
			SurrogatePreviewLength: 48,
		})
		rc := NewReplacementContext("salt", nil)

		anonymized, events, err := engine.AnonymizeWithEvents(context.Background(), text, rc)
		if err != nil {
			t.Fatalf("AnonymizeWithEvents: %v", err)
		}
		if strings.Contains(anonymized, "John Smith") || strings.Contains(anonymized, "555-123-4567") {
			t.Errorf("output leaks original values: %q", anonymized)
		}
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
		if events[0].EntityType != "PERSON" || events[0].Action != ActionReplace {
			t.Errorf("unexpected first event: %+v", events[0])
		}
		if events[0].Start != 5 || events[0].End != 15 {
			t.Errorf("event offsets changed: %+v", events[0])
		}
	})

	t.Run("redact action", func(t *testing.T) {
		engine := newTestEngine(t, detector, EngineConfig{DefaultAction: ActionRedact})
		rc := NewReplacementContext("salt", nil)

		anonymized, err := engine.Anonymize(context.Background(), text, rc)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(anonymized, DefaultRedactionToken) {
			t.Errorf("expected redaction token in %q", anonymized)
		}
	})

	t.Run("per entity policy overrides default", func(t *testing.T) {
		engine := newTestEngine(t, detector, EngineConfig{
			DefaultAction: ActionReplace,
			EntityPolicies: map[string]EntityPolicy{
				"phone_number": {Action: ActionRedact, Replacement: "[PHONE]"},
			},
		})
		rc := NewReplacementContext("salt", nil)

		anonymized, events, err := engine.AnonymizeWithEvents(context.Background(), text, rc)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(anonymized, "[PHONE]") {
			t.Errorf("expected policy replacement in %q", anonymized)
		}
		if events[1].Action != ActionRedact {
			t.Errorf("phone action = %v, want redact", events[1].Action)
		}
	})

	t.Run("repeated values share a surrogate", func(t *testing.T) {
		twice := "John Smith met John Smith"
		engine := newTestEngine(t, fakeDetector{spans: []EntitySpan{
			{Start: 0, End: 10, EntityType: "PERSON"},
			{Start: 15, End: 25, EntityType: "PERSON"},
		}}, EngineConfig{DefaultAction: ActionReplace})
		rc := NewReplacementContext("salt", nil)

		anonymized, err := engine.Anonymize(context.Background(), twice, rc)
		if err != nil {
			t.Fatal(err)
		}
		parts := strings.Split(anonymized, " met ")
		if len(parts) != 2 || parts[0] != parts[1] {
			t.Errorf("same value produced different surrogates: %q", anonymized)
		}
	})

	t.Run("surrogate preview is bounded", func(t *testing.T) {
		engine := newTestEngine(t, detector, EngineConfig{
			DefaultAction:          ActionReplace,
			SurrogatePreviewLength: 5,
		})
		rc := NewReplacementContext("salt", nil)

		_, events, err := engine.AnonymizeWithEvents(context.Background(), text, rc)
		if err != nil {
			t.Fatal(err)
		}
		for _, event := range events {
			if len(event.Surrogate) > 5+len("...") {
				t.Errorf("preview too long: %q", event.Surrogate)
			}
		}
	})

	t.Run("empty text", func(t *testing.T) {
		engine := newTestEngine(t, detector, EngineConfig{DefaultAction: ActionReplace})
		anonymized, events, err := engine.AnonymizeWithEvents(context.Background(), "", NewReplacementContext("salt", nil))
		if err != nil || anonymized != "" || events != nil {
			t.Errorf("got (%q, %v, %v)", anonymized, events, err)
		}
	})
}

func TestGeneralizeAges(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ninety plus suffix", "patient is 92 years old", "patient is 90+ years old"},
		{"boundary 90", "a 90 year old male", "a 90+ year old male"},
		{"under 90 untouched", "a 89 year old male", "a 89 year old male"},
		{"aged prefix", "aged 95", "aged 90+"},
		{"age with colon", "age: 101", "age: 90+"},
		{"yo abbreviation", "94 yo female", "90+ yo female"},
		{"unrelated numbers", "room 95 on floor 3", "room 95 on floor 3"},
		{"three digit age", "she is 104 years old", "she is 90+ years old"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GeneralizeAges(tc.in); got != tc.want {
				t.Errorf("GeneralizeAges(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestApplyStrategy(t *testing.T) {
	engine := newTestEngine(t, fakeDetector{}, EngineConfig{
		DefaultAction:          ActionReplace,
		SurrogatePreviewLength: 48,
	})
	rc := NewReplacementContext("salt", nil)

	replacement, event := engine.ApplyStrategy(context.Background(), "MEDICAL_RECORD_NUMBER", "1234567890", rc)
	if !strings.HasPrefix(replacement, "MRN_") {
		t.Errorf("unexpected replacement %q", replacement)
	}
	if event.EntityType != "MEDICAL_RECORD_NUMBER" || event.Action != ActionReplace {
		t.Errorf("unexpected event %+v", event)
	}
}
