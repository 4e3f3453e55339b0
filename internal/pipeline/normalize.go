package pipeline

import (
	"regexp"
	"strings"
)

var (
	camelBoundary   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	separatorRun    = regexp.MustCompile(`[\s\-]+`)
	underscoreRun   = regexp.MustCompile(`_+`)
)

// NormalizeKeys rewrites every map key in the document tree to snake_case.
// Values are untouched; lists are descended into.
func NormalizeKeys(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, nested := range typed {
			normalized[toSnakeCase(key)] = NormalizeKeys(nested)
		}
		return normalized
	case []any:
		normalized := make([]any, len(typed))
		for i, nested := range typed {
			normalized[i] = NormalizeKeys(nested)
		}
		return normalized
	default:
		return value
	}
}

func toSnakeCase(key string) string {
	key = separatorRun.ReplaceAllString(strings.TrimSpace(key), "_")
	key = acronymBoundary.ReplaceAllString(key, "${1}_${2}")
	key = camelBoundary.ReplaceAllString(key, "${1}_${2}")
	key = underscoreRun.ReplaceAllString(key, "_")
	return strings.ToLower(key)
}

// ExtractPatient locates the patient record inside a normalized document.
// Documents may nest the record under "patient" or be the record itself.
func ExtractPatient(normalized map[string]any) (map[string]any, error) {
	if nested, ok := normalized["patient"]; ok {
		record, ok := nested.(map[string]any)
		if !ok {
			return nil, &ValidationError{Reason: "patient field is not an object"}
		}
		if len(record) == 0 {
			return nil, &ValidationError{Reason: "patient record is empty"}
		}
		return record, nil
	}
	if len(normalized) == 0 {
		return nil, &ValidationError{Reason: "document is empty"}
	}
	return normalized, nil
}
