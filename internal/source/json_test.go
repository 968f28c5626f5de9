package source

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeRecordsSingleObject(t *testing.T) {
	t.Parallel()

	in := `{"song_id": "SOAAA001", "year": 2004, "artist_latitude": null}`

	recs, err := DecodeRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}

	if got, ok := recs[0].String("song_id"); !ok || got != "SOAAA001" {
		t.Errorf("song_id = %q, %v", got, ok)
	}
	// Numbers must come through as json.Number, not float64.
	if _, ok := recs[0]["year"].(json.Number); !ok {
		t.Errorf("year decoded as %T, want json.Number", recs[0]["year"])
	}
	// JSON null surfaces as nil, never "".
	if !recs[0].IsNull("artist_latitude") {
		t.Errorf("artist_latitude = %v, want null", recs[0]["artist_latitude"])
	}
}

func TestDecodeRecordsJSONLStream(t *testing.T) {
	t.Parallel()

	in := `{"page": "NextSong", "ts": 1541121934796}
{"page": "Home", "ts": 1541121934900}
{"page": "NextSong", "ts": 1541122241796}`

	recs, err := DecodeRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}

	if ts, ok := recs[0].Int64("ts"); !ok || ts != 1541121934796 {
		t.Errorf("ts = %d, %v; epoch milliseconds must not lose precision", ts, ok)
	}
}

func TestDecodeRecordsRootArray(t *testing.T) {
	t.Parallel()

	in := `[{"a": 1}, {"a": 2}]`

	recs, err := DecodeRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
}

func TestDecodeRecordsArrayWithTrailingJSONL(t *testing.T) {
	t.Parallel()

	in := `[{"a": 1}]
{"a": 2}
{"a": 3}`

	recs, err := DecodeRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
}

func TestDecodeRecordsEmptyInput(t *testing.T) {
	t.Parallel()

	recs, err := DecodeRecords(strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records = %d, want 0", len(recs))
	}
}

func TestDecodeRecordsRejectsScalarRoot(t *testing.T) {
	t.Parallel()

	if _, err := DecodeRecords(strings.NewReader(`42`)); err == nil {
		t.Fatalf("expected error for scalar root")
	}
}

func TestDecodeRecordsTruncatedObject(t *testing.T) {
	t.Parallel()

	if _, err := DecodeRecords(strings.NewReader(`{"a": `)); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}
