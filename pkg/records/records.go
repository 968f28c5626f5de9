// Package records defines the generic record shape exchanged between source
// readers and the dimensional transform.
package records

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one raw input record as key -> value.
//
// Contract for producers (source readers):
//   - JSON null MUST surface as a nil value (or an absent key), never as "".
//     The transform's required-field gates depend on this.
//   - Numbers arrive as json.Number when decoded by this module's readers;
//     the accessors below coerce them on demand.
type Record map[string]any

// IsNull reports whether key is absent or holds a nil value.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	return !ok || v == nil
}

// String returns the value of key as a string.
// ok is false when the key is null or not a textual value.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// Int64 returns the value of key as an int64.
//
// Accepted inputs: integral Go values, json.Number, float64 without a
// fractional part, and strings of decimal digits. The activity logs store
// userId and sessionId inconsistently across these forms.
func (r Record) Int64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		// "10.0" style numbers still coerce when integral.
		if f, err := t.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float64 returns the value of key as a float64.
func (r Record) Float64(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
