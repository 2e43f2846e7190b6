package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate coerces a client supplied value to a date. Strings in RFC 3339
// or ISO date forms and numbers (epoch milliseconds) are accepted. Anything
// else, including a missing value, yields nil: an invalid date that is
// stored as null.
func ParseDate(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		t := val.UTC()
		return &t
	case *time.Time:
		if val == nil {
			return nil
		}
		t := val.UTC()
		return &t
	case string:
		return parseDateString(val)
	case float64:
		return fromEpochMillis(val)
	case int32:
		return fromEpochMillis(float64(val))
	case int64:
		return fromEpochMillis(float64(val))
	case int:
		return fromEpochMillis(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return fromEpochMillis(f)
	default:
		return nil
	}
}

func parseDateString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// maxEpochMillis mirrors the ±100,000,000 day range of ECMAScript dates.
const maxEpochMillis = 8.64e15

func fromEpochMillis(ms float64) *time.Time {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || math.Abs(ms) > maxEpochMillis {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}
