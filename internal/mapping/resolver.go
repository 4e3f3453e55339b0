// Package mapping turns anonymized documents into database rows. Column
// values are pulled out of the document with dotted-path resolvers and
// serialized into driver-friendly scalars.
package mapping

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Context is the resolved state of one pipeline run that resolvers read
// from. All maps hold anonymized data only.
type Context struct {
	DocumentID string
	Collection string
	Raw        map[string]any
	Normalized map[string]any
	Patient    map[string]any
}

// Resolver extracts one column value from a run context. A nil value with a
// nil error means the document has nothing for this column.
type Resolver func(ctx Context) (any, error)

// PathResolver resolves a dotted path against the context. The first
// segment may name a root: "document_id", "raw", "normalized", or
// "patient". Without a root prefix the path is tried against the patient
// record first and then the normalized document. A "*" segment fans out
// over every element of a list or every value of a map.
func PathResolver(path string) Resolver {
	segments := strings.Split(path, ".")
	return func(ctx Context) (any, error) {
		switch segments[0] {
		case "document_id":
			return ctx.DocumentID, nil
		case "collection":
			return ctx.Collection, nil
		case "raw":
			return traverse(ctx.Raw, segments[1:])
		case "normalized":
			return traverse(ctx.Normalized, segments[1:])
		case "patient":
			return traverse(ctx.Patient, segments[1:])
		default:
			value, err := traverse(ctx.Patient, segments)
			if err != nil {
				return nil, err
			}
			if value != nil {
				return value, nil
			}
			return traverse(ctx.Normalized, segments)
		}
	}
}

// ConstResolver always resolves to value.
func ConstResolver(value any) Resolver {
	return func(Context) (any, error) { return value, nil }
}

func traverse(value any, segments []string) (any, error) {
	current := any(value)
	for i, segment := range segments {
		if current == nil {
			return nil, nil
		}
		if segment == "*" {
			return fanOut(current, segments[i+1:])
		}
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot descend into %T at %q", current, segment)
		}
		current = node[segment]
	}
	return current, nil
}

// fanOut maps the remaining path over every element of a collection,
// dropping elements that resolve to nothing.
func fanOut(value any, rest []string) (any, error) {
	var elements []any
	switch typed := value.(type) {
	case []any:
		elements = typed
	case map[string]any:
		elements = make([]any, 0, len(typed))
		for _, v := range typed {
			elements = append(elements, v)
		}
	default:
		return nil, fmt.Errorf("cannot fan out over %T", value)
	}

	results := make([]any, 0, len(elements))
	for _, element := range elements {
		resolved, err := traverse(element, rest)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			results = append(results, resolved)
		}
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results, nil
}

// SerializeValue converts a resolved value into a scalar the SQL driver can
// bind. Maps and slices become canonical JSON; times pass through; other
// scalars pass through unchanged.
func SerializeValue(value any) (any, error) {
	switch typed := value.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time, *time.Time, []byte:
		return typed, nil
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("serializing column value: %w", err)
		}
		return string(encoded), nil
	default:
		return fmt.Sprintf("%v", typed), nil
	}
}
