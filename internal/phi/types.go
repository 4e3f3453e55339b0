package phi

import "context"

// Action enumerates the supported anonymization strategies.
type Action string

const (
	ActionRedact     Action = "redact"
	ActionReplace    Action = "replace"
	ActionSynthesize Action = "synthesize"

	// Actions recorded for typed-field transformations outside free text.
	ActionSuppress   Action = "suppress"
	ActionGeneralize Action = "generalize"
)

// DefaultRedactionToken is emitted for redacted entities without a
// configured replacement.
const DefaultRedactionToken = "[REDACTED]"

// EntitySpan is a detected PHI occurrence within text. Offsets are
// half-open byte positions into the analyzed string.
type EntitySpan struct {
	Start      int
	End        int
	EntityType string
	Score      float64
}

// Detector locates PHI entity spans in free text. Implementations may wrap
// regex rule sets, NER models, or remote analyzers; the engine only depends
// on this contract.
type Detector interface {
	Detect(ctx context.Context, text, language string) ([]EntitySpan, error)
}

// Generator produces synthetic surrogate text for a prompt. Implementations
// wrap an upstream completion service; a nil Generator always falls back to
// deterministic masking.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EntityPolicy describes how a specific entity type is anonymized.
type EntityPolicy struct {
	Action      Action
	Replacement string
}

// TransformationEvent is the audit record for a single replacement. The
// surrogate field holds a bounded preview of the replacement value and must
// never contain the original text.
type TransformationEvent struct {
	EntityType string `json:"entity_type"`
	Action     Action `json:"action"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Surrogate  string `json:"surrogate"`
}

// SafeHarborEntities is the set of entity types the engine will anonymize.
// Spans with other types are dropped before overlap resolution.
var SafeHarborEntities = map[string]struct{}{
	"PERSON":                {},
	"PHONE_NUMBER":          {},
	"EMAIL_ADDRESS":         {},
	"US_SSN":                {},
	"DATE_TIME":             {},
	"LOCATION":              {},
	"CITY":                  {},
	"STATE_OR_PROVINCE":     {},
	"ZIP_CODE":              {},
	"STREET_ADDRESS":        {},
	"IP_ADDRESS":            {},
	"URL":                   {},
	"MEDICAL_LICENSE":       {},
	"MEDICAL_RECORD_NUMBER": {},
	"HEALTH_INSURANCE_ID":   {},
	"MEMBER_ID":             {},
	"US_BANK_NUMBER":        {},
	"US_DRIVER_LICENSE":     {},
	"US_PASSPORT":           {},
	"CREDIT_CARD":           {},
	"CRYPTO":                {},
	"AGE":                   {},
	"ORGANIZATION":          {},
	"FACILITY_NAME":         {},
	"ACCOUNT_NUMBER":        {},
	"VIN":                   {},
	"IBAN_CODE":             {},
}

// IsSafeHarborEntity reports whether entityType is in the recognized PHI set.
func IsSafeHarborEntity(entityType string) bool {
	_, ok := SafeHarborEntities[entityType]
	return ok
}
