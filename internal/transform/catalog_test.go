package transform

import (
	"testing"

	"sparkify/pkg/records"
)

func catalogRecord(songID, title, artistID, name string) records.Record {
	return records.Record{
		"song_id":     songID,
		"title":       title,
		"artist_id":   artistID,
		"artist_name": name,
		"year":        int64(2004),
		"duration":    218.93179,
	}
}

func TestExtractCatalogProjectsBothDimensions(t *testing.T) {
	t.Parallel()

	rec := catalogRecord("SOAAA001", "Setanta matins", "ARAAA001", "Elena")
	rec["artist_location"] = "Dubai UAE"
	rec["artist_latitude"] = 50.4253
	rec["artist_longitude"] = -91.11597

	out := ExtractCatalog([]records.Record{rec})

	if len(out.Songs) != 1 || len(out.Artists) != 1 {
		t.Fatalf("got %d songs, %d artists; want 1 and 1", len(out.Songs), len(out.Artists))
	}
	s := out.Songs[0]
	if s.SongID != "SOAAA001" || s.Title != "Setanta matins" || s.ArtistID != "ARAAA001" {
		t.Errorf("song = %+v", s)
	}
	if s.Year != 2004 || s.Duration != 218.93179 {
		t.Errorf("song year/duration = %d/%v", s.Year, s.Duration)
	}

	a := out.Artists[0]
	if a.ArtistID != "ARAAA001" || a.Name != "Elena" {
		t.Errorf("artist = %+v", a)
	}
	if a.Location == nil || *a.Location != "Dubai UAE" {
		t.Errorf("artist location = %v", a.Location)
	}
	if a.Latitude == nil || *a.Latitude != 50.4253 {
		t.Errorf("artist latitude = %v", a.Latitude)
	}
	if len(out.Rejects) != 0 {
		t.Errorf("unexpected rejects: %+v", out.Rejects)
	}
}

func TestExtractCatalogFirstSeenWinsAndSorted(t *testing.T) {
	t.Parallel()

	recs := []records.Record{
		catalogRecord("SOBBB002", "Second", "ARBBB002", "Beta"),
		catalogRecord("SOAAA001", "First", "ARAAA001", "Alpha"),
		catalogRecord("SOAAA001", "Changed title", "ARAAA001", "Changed name"),
	}

	out := ExtractCatalog(recs)

	if len(out.Songs) != 2 {
		t.Fatalf("got %d songs, want 2", len(out.Songs))
	}
	// Sorted by song_id, and the duplicate kept its first-seen values.
	if out.Songs[0].SongID != "SOAAA001" || out.Songs[0].Title != "First" {
		t.Errorf("songs[0] = %+v", out.Songs[0])
	}
	if out.Songs[1].SongID != "SOBBB002" {
		t.Errorf("songs[1] = %+v", out.Songs[1])
	}

	if len(out.Artists) != 2 {
		t.Fatalf("got %d artists, want 2", len(out.Artists))
	}
	if out.Artists[0].ArtistID != "ARAAA001" || out.Artists[0].Name != "Alpha" {
		t.Errorf("artists[0] = %+v", out.Artists[0])
	}
}

func TestExtractCatalogRejectsNullKeys(t *testing.T) {
	t.Parallel()

	noSongID := records.Record{
		"song_id":     nil,
		"title":       "Orphan",
		"artist_id":   "ARCCC003",
		"artist_name": "Gamma",
	}
	noArtistID := records.Record{
		"song_id":     "SODDD004",
		"title":       "Loner",
		"artist_name": "Delta",
	}

	out := ExtractCatalog([]records.Record{noSongID, noArtistID})

	// Each record still feeds the dimension whose key it has.
	if len(out.Songs) != 1 || out.Songs[0].SongID != "SODDD004" {
		t.Fatalf("songs = %+v", out.Songs)
	}
	if len(out.Artists) != 1 || out.Artists[0].ArtistID != "ARCCC003" {
		t.Fatalf("artists = %+v", out.Artists)
	}

	if len(out.Rejects) != 2 {
		t.Fatalf("rejects = %+v, want 2", out.Rejects)
	}
	if out.Rejects[0].Index != 1 || out.Rejects[0].Field != "song_id" || out.Rejects[0].Reason != ReasonMissingRequiredField {
		t.Errorf("rejects[0] = %+v", out.Rejects[0])
	}
	if out.Rejects[1].Index != 2 || out.Rejects[1].Field != "artist_id" {
		t.Errorf("rejects[1] = %+v", out.Rejects[1])
	}
}

func TestExtractCatalogNullOptionalFieldsStayNil(t *testing.T) {
	t.Parallel()

	rec := catalogRecord("SOEEE005", "Plain", "AREEE005", "Epsilon")
	rec["artist_location"] = ""
	rec["artist_latitude"] = nil

	out := ExtractCatalog([]records.Record{rec})

	a := out.Artists[0]
	if a.Location != nil {
		t.Errorf("empty location should be nil, got %q", *a.Location)
	}
	if a.Latitude != nil || a.Longitude != nil {
		t.Errorf("null coordinates should be nil, got %v/%v", a.Latitude, a.Longitude)
	}
}
