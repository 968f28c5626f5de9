package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sparkify/internal/model"
	"sparkify/internal/storage"
)

func newTestSink(t *testing.T) (*Sink, string) {
	t.Helper()

	root := t.TempDir()
	s, err := New(context.Background(), storage.Config{Kind: "parquet", OutputPath: root})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.(*Sink).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s.(*Sink), root
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.IsDir() {
		t.Fatalf("%s is a directory, want file", path)
	}
	if info.Size() == 0 {
		t.Fatalf("%s is empty", path)
	}
}

func TestNewRequiresOutputPath(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), storage.Config{Kind: "parquet"}); err == nil {
		t.Fatal("expected error for empty output path")
	}
	if _, err := New(context.Background(), storage.Config{
		Kind: "parquet", OutputPath: t.TempDir(), StoreAssignsSongplayID: true,
	}); err == nil {
		t.Fatal("expected error for store-assigned ids")
	}
}

func TestWriteSongsPartitionsByYearAndArtist(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)

	n, err := s.WriteSongs(context.Background(), []model.Song{
		{SongID: "SOAAA001", Title: "One", ArtistID: "ARAAA001", Year: 2004, Duration: 218.9},
		{SongID: "SOBBB002", Title: "Two", ArtistID: "ARAAA001", Year: 2004, Duration: 190.0},
		{SongID: "SOCCC003", Title: "Three", ArtistID: "ARBBB002", Year: 0, Duration: 12.5},
	})
	if err != nil {
		t.Fatalf("WriteSongs: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}

	mustExist(t, filepath.Join(root, "songs", "year=2004", "artist_id=ARAAA001", "part-00000.parquet"))
	mustExist(t, filepath.Join(root, "songs", "year=0", "artist_id=ARBBB002", "part-00000.parquet"))
}

func TestWritePartFileCounterAdvancesPerPartition(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)
	ctx := context.Background()

	batch := []model.User{{UserID: 1, FirstName: "A", LastName: "B", Gender: "F", Level: "free"}}
	for i := 0; i < 2; i++ {
		if _, err := s.WriteUsers(ctx, batch); err != nil {
			t.Fatalf("WriteUsers #%d: %v", i, err)
		}
	}

	mustExist(t, filepath.Join(root, "users", "part-00000.parquet"))
	mustExist(t, filepath.Join(root, "users", "part-00001.parquet"))
}

func TestWriteTimeAndSongplaysShareMonthLayout(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)
	ctx := context.Background()

	start := time.Date(2018, 11, 1, 21, 5, 34, 796_000_000, time.UTC)
	if _, err := s.WriteTime(ctx, []model.TimeRow{
		{StartTime: start, Hour: 21, Day: 1, Week: 44, Month: 11, Year: 2018, Weekday: 4},
	}); err != nil {
		t.Fatalf("WriteTime: %v", err)
	}

	loc := "Dubai UAE"
	if _, err := s.WriteSongplays(ctx, []model.Songplay{
		{SongplayID: 1, StartTime: start, UserID: 15, Level: "paid", Location: &loc},
	}); err != nil {
		t.Fatalf("WriteSongplays: %v", err)
	}

	mustExist(t, filepath.Join(root, "time", "year=2018", "month=11", "part-00000.parquet"))
	mustExist(t, filepath.Join(root, "songplays", "year=2018", "month=11", "part-00000.parquet"))
}

func TestWriteArtistsHandlesNilOptionalColumns(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)

	lat, lon := 35.14968, -90.04892
	locA := "Memphis, TN"
	n, err := s.WriteArtists(context.Background(), []model.Artist{
		{ArtistID: "ARAAA001", Name: "Full", Location: &locA, Latitude: &lat, Longitude: &lon},
		{ArtistID: "ARBBB002", Name: "Sparse"},
	})
	if err != nil {
		t.Fatalf("WriteArtists: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}
	mustExist(t, filepath.Join(root, "artists", "part-00000.parquet"))
}

func TestEnsureSchemaClearsPreviousRun(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)
	ctx := context.Background()

	if _, err := s.WriteUsers(ctx, []model.User{{UserID: 1, Level: "free"}}); err != nil {
		t.Fatalf("WriteUsers: %v", err)
	}
	stale := filepath.Join(root, "users", "part-00000.parquet")
	mustExist(t, stale)

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale part file survived schema reset: %v", err)
	}
}

func TestWriteEmptyBatchWritesNothing(t *testing.T) {
	t.Parallel()

	s, root := newTestSink(t)

	n, err := s.WriteSongs(context.Background(), nil)
	if err != nil {
		t.Fatalf("WriteSongs: %v", err)
	}
	if n != 0 {
		t.Fatalf("written = %d, want 0", n)
	}

	entries, err := os.ReadDir(filepath.Join(root, "songs"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("songs dir has %d entries, want 0", len(entries))
	}
}

func TestPartValue(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"ARAAA001", "ARAAA001"},
		{"", "__HIVE_DEFAULT_PARTITION__"},
		{`a/b\c:d?`, "a_b_c_d_"},
	}
	for _, c := range cases {
		if got := partValue(c.in); got != c.want {
			t.Errorf("partValue(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
