package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxDescriptionLength is the number of characters of a job description kept
// in a canonical row.
const MaxDescriptionLength = 10000

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// Layouts tried, in order, when parsing dates and timestamps. Layouts without
// a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	dateLayout,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006/01/02",
}

// String trims a scalar to a string. Missing values, blank strings and
// composite values (objects, arrays) yield nil.
func String(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return String(float64(t))
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Bool accepts native booleans, the numbers 0 and 1 and the spellings
// true/1/yes and false/0/no. Anything else is judged by whether it is empty
// or zero.
func Bool(v interface{}) *bool {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return &t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return boolPtr(true)
		case "false", "0", "no":
			return boolPtr(false)
		}
		return boolPtr(t != "")
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return boolPtr(t != "")
		}
		return Bool(f)
	case float64:
		return boolPtr(t != 0 && !math.IsNaN(t))
	case int:
		return boolPtr(t != 0)
	case int64:
		return boolPtr(t != 0)
	default:
		// objects and arrays are present, and so true
		return boolPtr(true)
	}
}

// Int parses an integer. Finite fractional values are truncated; anything
// that is not a number yields nil.
func Int(v interface{}) *int64 {
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return &n
		}
		return Int(string(t))
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
		f := Float(s)
		if f == nil {
			return nil
		}
		return Int(*f)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || math.Abs(t) >= math.MaxInt64 {
			return nil
		}
		n := int64(t)
		return &n
	case int:
		n := int64(t)
		return &n
	case int64:
		return &t
	default:
		return nil
	}
}

// Float parses a finite floating point number.
func Float(v interface{}) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Date re-emits a parseable date as YYYY-MM-DD in UTC. Values that cannot be
// parsed are passed through as trimmed strings.
func Date(v interface{}) *string {
	s := String(v)
	if s == nil {
		return nil
	}
	t, ok := parseTime(*s)
	if !ok {
		return s
	}
	out := t.UTC().Format(dateLayout)
	return &out
}

// Timestamp re-emits a parseable timestamp as ISO-8601 UTC with millisecond
// precision, or nil when it cannot be parsed.
func Timestamp(v interface{}) *string {
	s := String(v)
	if s == nil {
		return nil
	}
	t, ok := parseTime(*s)
	if !ok {
		return nil
	}
	out := FormatTimestamp(t)
	return &out
}

// FormatTimestamp formats t the way canonical rows carry timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// List joins the non-empty members of an array with ", ". Scalars are handled
// like String.
func List(v interface{}) *string {
	items, ok := v.([]interface{})
	if !ok {
		return String(v)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s := String(item); s != nil {
			parts = append(parts, *s)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	out := strings.Join(parts, ", ")
	return &out
}

// Truncate cuts s to at most limit characters.
func Truncate(s *string, limit int) *string {
	if s == nil {
		return nil
	}
	if limit < 0 {
		limit = 0
	}
	runes := []rune(*s)
	if len(runes) <= limit {
		return s
	}
	out := string(runes[:limit])
	return &out
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func boolPtr(b bool) *bool { return &b }
