// Package sqlite implements the warehouse sink for SQLite via
// modernc.org/sqlite (pure Go, no cgo), which makes it the backend of choice
// for local runs and tests.
//
// SQLite has no TIMESTAMPTZ type; timestamps are stored as RFC3339Nano text
// in UTC for reliable round-trips.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sparkify/internal/model"
	"sparkify/internal/storage"
)

type Sink struct {
	db             *sql.DB
	storeAssignsID bool
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Sink{db: db, storeAssignsID: cfg.StoreAssignsSongplayID}, nil
}

func (s *Sink) Close() { _ = s.db.Close() }

func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, ddl := range createTableDDL(s.storeAssignsID) {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func createTableDDL(storeAssignsID bool) []string {
	// "INTEGER PRIMARY KEY" makes songplay_id the rowid, which SQLite
	// auto-generates when the insert omits the column.
	songplayID := `songplay_id INTEGER PRIMARY KEY`

	return []string{
		`CREATE TABLE IF NOT EXISTS songs (
  song_id TEXT PRIMARY KEY,
  title TEXT,
  artist_id TEXT,
  year INTEGER,
  duration REAL
);`,
		`CREATE TABLE IF NOT EXISTS artists (
  artist_id TEXT PRIMARY KEY,
  name TEXT,
  location TEXT,
  latitude REAL,
  longitude REAL
);`,
		`CREATE TABLE IF NOT EXISTS users (
  user_id INTEGER PRIMARY KEY,
  first_name TEXT,
  last_name TEXT,
  gender TEXT,
  level TEXT
);`,
		`CREATE TABLE IF NOT EXISTS time (
  start_time TEXT PRIMARY KEY,
  hour INTEGER,
  day INTEGER,
  week INTEGER,
  month INTEGER,
  year INTEGER,
  weekday INTEGER
);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS songplays (
  %s,
  start_time TEXT NOT NULL,
  user_id INTEGER NOT NULL,
  level TEXT,
  song_id TEXT,
  artist_id TEXT,
  session_id INTEGER,
  location TEXT,
  user_agent TEXT
);`, songplayID),
	}
}

func (s *Sink) WriteSongs(ctx context.Context, rows []model.Song) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.SongID, r.Title, r.ArtistID, r.Year, r.Duration}
	}
	return s.insert(ctx, "songs",
		[]string{"song_id", "title", "artist_id", "year", "duration"},
		vals, "INSERT OR IGNORE INTO ", "")
}

func (s *Sink) WriteArtists(ctx context.Context, rows []model.Artist) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.ArtistID, r.Name, nullableString(r.Location), nullableFloat(r.Latitude), nullableFloat(r.Longitude)}
	}
	return s.insert(ctx, "artists",
		[]string{"artist_id", "name", "location", "latitude", "longitude"},
		vals, "INSERT OR IGNORE INTO ", "")
}

func (s *Sink) WriteUsers(ctx context.Context, rows []model.User) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.UserID, r.FirstName, r.LastName, r.Gender, r.Level}
	}
	return s.insert(ctx, "users",
		[]string{"user_id", "first_name", "last_name", "gender", "level"},
		vals, "INSERT INTO ", " ON CONFLICT(user_id) DO UPDATE SET level = excluded.level")
}

func (s *Sink) WriteTime(ctx context.Context, rows []model.TimeRow) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{formatTime(r.StartTime), r.Hour, r.Day, r.Week, r.Month, r.Year, r.Weekday}
	}
	return s.insert(ctx, "time",
		[]string{"start_time", "hour", "day", "week", "month", "year", "weekday"},
		vals, "INSERT OR IGNORE INTO ", "")
}

func (s *Sink) WriteSongplays(ctx context.Context, rows []model.Songplay) (int64, error) {
	columns := []string{"songplay_id", "start_time", "user_id", "level", "song_id", "artist_id", "session_id", "location", "user_agent"}
	prefix := "INSERT OR IGNORE INTO "
	if s.storeAssignsID {
		columns = columns[1:]
		prefix = "INSERT INTO "
	}

	vals := make([][]any, len(rows))
	for i, r := range rows {
		v := []any{formatTime(r.StartTime), r.UserID, r.Level,
			nullableString(r.SongID), nullableString(r.ArtistID),
			nullableInt(r.SessionID), nullableString(r.Location), nullableString(r.UserAgent)}
		if !s.storeAssignsID {
			v = append([]any{r.SongplayID}, v...)
		}
		vals[i] = v
	}
	return s.insert(ctx, "songplays", columns, vals, prefix, "")
}

func (s *Sink) insert(ctx context.Context, table string, columns []string, rows [][]any, insertPrefix, conflictClause string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString(insertPrefix)
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	b.WriteString(conflictClause)

	res, err := s.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// formatTime stores timestamps as RFC3339Nano in UTC so re-running the same
// input produces byte-identical keys.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
