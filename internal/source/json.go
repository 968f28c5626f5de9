package source

import (
	"encoding/json"
	"fmt"
	"io"

	"sparkify/pkg/records"
)

// DecodeRecords reads every record from one JSON input.
//
// Accepted shapes, matching how the raw datasets are laid out:
//   - a single root object (one catalog file = one song record)
//   - a root array of objects
//   - a stream of newline-delimited objects (activity logs)
//   - a root array followed by trailing JSONL objects
//
// Numbers are decoded as json.Number so integer ids and epoch-millisecond
// timestamps survive without float64 rounding; JSON null decodes to nil.
func DecodeRecords(r io.Reader) ([]records.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var out []records.Record

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("json: read first token: %w", err)
	}

	switch d := tok.(type) {
	case json.Delim:
		switch d {
		case '[':
			for dec.More() {
				var obj map[string]any
				if err := dec.Decode(&obj); err != nil {
					return out, fmt.Errorf("json: decode array element %d: %w", len(out)+1, err)
				}
				if obj != nil {
					out = append(out, records.Record(obj))
				}
			}
			if end, err := dec.Token(); err != nil {
				return out, fmt.Errorf("json: read array end: %w", err)
			} else if end != json.Delim(']') {
				return out, fmt.Errorf("json: expected array end ']', got %v", end)
			}

		case '{':
			obj := make(map[string]any)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return out, fmt.Errorf("json: read object key: %w", err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return out, fmt.Errorf("json: object key not a string (got %T)", keyTok)
				}
				var val any
				if err := dec.Decode(&val); err != nil {
					return out, fmt.Errorf("json: decode value for %q: %w", key, err)
				}
				obj[key] = val
			}
			if end, err := dec.Token(); err != nil {
				return out, fmt.Errorf("json: read object end: %w", err)
			} else if end != json.Delim('}') {
				return out, fmt.Errorf("json: expected object end '}', got %v", end)
			}
			out = append(out, records.Record(obj))

		default:
			return nil, fmt.Errorf("json: unsupported root delimiter %q", d)
		}

	default:
		return nil, fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}

	// Trailing JSONL records after the root value.
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, fmt.Errorf("json: decode record %d: %w", len(out)+1, err)
		}
		if obj != nil {
			out = append(out, records.Record(obj))
		}
	}
}
