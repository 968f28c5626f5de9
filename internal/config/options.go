package config

import "encoding/json"

// Options is a loose bag of per-component options carried through the JSON
// config without forcing a schema on every reader/backend.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns the value for key as a string, or def when absent or not
// textual.
func (o Options) String(key, def string) string {
	v := o.Any(key)
	if v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return def
	}
}

// Bool returns the value for key as a bool, or def.
func (o Options) Bool(key string, def bool) bool {
	v := o.Any(key)
	if v == nil {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Int returns the value for key as an int, or def.
func (o Options) Int(key string, def int) int {
	v := o.Any(key)
	if v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// StringMap returns the value for key as map[string]string. JSON decoding
// yields map[string]any, so both shapes are accepted.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := o.Any(key).(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}
