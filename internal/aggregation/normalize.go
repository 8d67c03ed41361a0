package aggregation

import (
	"database/sql"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Record is a raw row after normalization. A nil field means "absent".
type Record struct {
	Timestamp *time.Time
	Sum       *float64
	Sample    *float64
	Category  *string
}

// timestampLayouts are tried in order. Date-only layouts are interpreted in
// the normalizer location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// Normalizer converts loosely typed driver values into Records.
// The zero value normalizes in UTC.
type Normalizer struct {
	Location *time.Location
}

// NewNormalizer creates a normalizer bound to a calendar location
func NewNormalizer(loc *time.Location) Normalizer {
	return Normalizer{Location: loc}
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// ParseTimestamp returns nil for missing, zero or unparseable values.
func (n Normalizer) ParseTimestamp(v any) *time.Time {
	loc := n.location()

	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		if wallClock(t) {
			in := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
			return &in
		}
		in := t.In(loc)
		return &in
	case *time.Time:
		if t == nil {
			return nil
		}
		return n.ParseTimestamp(*t)
	case sql.NullTime:
		if !t.Valid {
			return nil
		}
		return n.ParseTimestamp(t.Time)
	case []byte:
		return n.parseString(string(t))
	case string:
		return n.parseString(t)
	case *string:
		if t == nil {
			return nil
		}
		return n.parseString(*t)
	}
	return nil
}

// wallClock reports whether t carries no zone of its own. lib/pq returns
// date and timestamp without time zone columns in an unnamed zero-offset
// zone; their fields are local calendar values, not UTC instants.
func wallClock(t time.Time) bool {
	name, offset := t.Zone()
	return name == "" && offset == 0 && t.Location() != time.UTC
}

func (n Normalizer) parseString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	loc := n.location()
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		in := t.In(loc)
		return &in
	}
	return nil
}

// Number coerces v to a finite float64. Anything else is nil, never zero.
func Number(v any) *float64 {
	var f float64

	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	case *int64:
		if x == nil {
			return nil
		}
		f = float64(*x)
	case sql.NullFloat64:
		if !x.Valid {
			return nil
		}
		f = x.Float64
	case sql.NullInt64:
		if !x.Valid {
			return nil
		}
		f = float64(x.Int64)
	case sql.NullInt32:
		if !x.Valid {
			return nil
		}
		f = float64(x.Int32)
	case sql.NullInt16:
		if !x.Valid {
			return nil
		}
		f = float64(x.Int16)
	case sql.NullByte:
		if !x.Valid {
			return nil
		}
		f = float64(x.Byte)
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		return parseNumber(x.String)
	case []byte:
		return parseNumber(string(x))
	case string:
		return parseNumber(x)
	case *string:
		if x == nil {
			return nil
		}
		return parseNumber(*x)
	default:
		return reflectNumber(reflect.ValueOf(v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// reflectNumber covers pointers and named types over the numeric kinds
func reflectNumber(rv reflect.Value) *float64 {
	var f float64

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Number(rv.Elem().Interface())
	case reflect.Float32, reflect.Float64:
		f = rv.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f = float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f = float64(rv.Uint())
	case reflect.String:
		return parseNumber(rv.String())
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// field sheets are filled in pt-BR: accept a single decimal comma
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Text returns the trimmed textual form of v, or nil when empty.
func Text(v any) *string {
	var s string

	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	case *string:
		if x == nil {
			return nil
		}
		s = *x
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		s = x.String
	default:
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// MatchCategory returns the output key of the category whose label matches v
// case-insensitively. Unknown labels are dropped, not bucketed.
func MatchCategory(v any, categories []Category) *string {
	s := Text(v)
	if s == nil {
		return nil
	}

	label := strings.Join(strings.Fields(*s), " ")
	for _, c := range categories {
		if strings.EqualFold(label, c.Label) {
			key := c.Key
			return &key
		}
	}
	return nil
}
