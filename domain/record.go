package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError reports a payload attribute with an unexpected JSON type.
type FieldError struct {
	Field string
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s must be a %s", e.Field, e.Want)
}

// decodeObject parses a JSON object into a generic attribute map. Numbers are
// normalized so whole values fit the same BSON types a JavaScript client
// would produce.
func decodeObject(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	for k, v := range raw {
		raw[k] = normalizeValue(v)
	}
	return raw, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && val >= math.MinInt32 && val <= math.MaxInt32 {
			return int32(val)
		}
		return val
	case map[string]any:
		for k, nested := range val {
			val[k] = normalizeValue(nested)
		}
		return val
	case []any:
		for i, nested := range val {
			val[i] = normalizeValue(nested)
		}
		return val
	default:
		return v
	}
}

// takeString removes key from attrs and returns it as a string. present is
// false when the key was absent or null.
func takeString(attrs map[string]any, key string) (value string, present bool, err error) {
	v, ok := attrs[key]
	if !ok {
		return "", false, nil
	}
	delete(attrs, key)
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, &FieldError{Field: key, Want: "string"}
	}
	return s, true, nil
}

// nullKeys returns those of keys that attrs holds as an explicit null.
func nullKeys(attrs map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if v, ok := attrs[k]; ok && v == nil {
			out = append(out, k)
		}
	}
	return out
}

// takeTime removes key from attrs and parses it as a JSON rendered date.
func takeTime(attrs map[string]any, key string) *time.Time {
	v, ok := attrs[key]
	if !ok {
		return nil
	}
	delete(attrs, key)
	return ParseDate(v)
}

// takeObjectID removes key from attrs and parses it as a hex ObjectID.
func takeObjectID(attrs map[string]any, key string) primitive.ObjectID {
	v, ok := attrs[key]
	if !ok {
		return primitive.NilObjectID
	}
	delete(attrs, key)
	s, _ := v.(string)
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// sortedKeys returns the keys of attrs in lexical order so documents built
// from them are stable.
func sortedKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendAttributes(doc bson.D, attrs map[string]any) bson.D {
	for _, k := range sortedKeys(attrs) {
		doc = append(doc, bson.E{Key: k, Value: attrs[k]})
	}
	return doc
}

// flatten merges typed fields over attrs into one JSON object.
func flatten(attrs map[string]any, typed map[string]any) ([]byte, error) {
	out := make(map[string]any, len(attrs)+len(typed))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range typed {
		out[k] = v
	}
	return sonic.ConfigStd.Marshal(out)
}
