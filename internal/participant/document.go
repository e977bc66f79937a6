// Package participant holds the participant document model read from the
// simulation results collection and the accessors the flattening engine
// uses to probe it.
package participant

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is one participant session as decoded from the store. Nested
// sub-documents may arrive as bson.M, bson.D or plain maps depending on the
// decoder, so callers go through the accessors below instead of asserting
// types directly.
type Document map[string]any

// Lookup resolves a dotted path ("section2.humanExplored"). The second
// return is false when any segment is missing; a present key holding null
// reports true with a nil value.
func (d Document) Lookup(path string) (any, bool) {
	var current any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		m, ok := AsMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// UUID returns the participant identifier or "" when absent.
func (d Document) UUID() string {
	v, ok := d.Lookup("uuid")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AsMap normalises the map-like shapes the BSON decoder can produce.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case bson.M:
		return m, true
	case Document:
		return m, true
	case bson.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	default:
		return nil, false
	}
}

// AsList normalises the array shapes the BSON decoder can produce.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case bson.A:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []bson.M:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	case []string:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// Len reports the cardinality of a list or sub-document. Scalars and null
// report false.
func Len(v any) (int, bool) {
	if l, ok := AsList(v); ok {
		return len(l), true
	}
	if m, ok := AsMap(v); ok {
		return len(m), true
	}
	return 0, false
}
