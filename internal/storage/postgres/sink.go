// Package postgres implements the warehouse sink for Postgres using pgx.
//
// Conflict policy is enforced at the SQL layer:
//   - dimensions: INSERT ... ON CONFLICT (<key>) DO NOTHING
//   - users:      INSERT ... ON CONFLICT (user_id) DO UPDATE SET level = EXCLUDED.level
//   - songplays:  plain append, or ON CONFLICT (songplay_id) DO NOTHING when
//     ids come from the transform (idempotent replay)
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"sparkify/internal/model"
	"sparkify/internal/storage"
)

type Sink struct {
	pool *pgxpool.Pool

	// storeAssignsID: songplay_id is a bigserial the database fills in.
	storeAssignsID bool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed sink. The pool connects lazily; connectivity
// errors surface on the first write.
func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Sink{pool: pool, storeAssignsID: cfg.StoreAssignsSongplayID}, nil
}

func (s *Sink) Close() { s.pool.Close() }

// EnsureSchema creates the five tables when missing. Startup is idempotent;
// dropping tables is an administrative operation outside the pipeline.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, ddl := range createTableDDL(s.storeAssignsID) {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func createTableDDL(storeAssignsID bool) []string {
	songplayID := `songplay_id bigint PRIMARY KEY`
	if storeAssignsID {
		songplayID = `songplay_id bigserial PRIMARY KEY`
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS songs (
  song_id varchar PRIMARY KEY,
  title varchar,
  artist_id varchar,
  year int,
  duration double precision
);`,
		`CREATE TABLE IF NOT EXISTS artists (
  artist_id varchar PRIMARY KEY,
  name varchar,
  location varchar,
  latitude double precision,
  longitude double precision
);`,
		`CREATE TABLE IF NOT EXISTS users (
  user_id bigint PRIMARY KEY,
  first_name varchar,
  last_name varchar,
  gender varchar,
  level varchar
);`,
		`CREATE TABLE IF NOT EXISTS "time" (
  start_time timestamptz PRIMARY KEY,
  hour int,
  day int,
  week int,
  month int,
  year int,
  weekday int
);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS songplays (
  %s,
  start_time timestamptz NOT NULL,
  user_id bigint NOT NULL,
  level varchar,
  song_id varchar,
  artist_id varchar,
  session_id bigint,
  location varchar,
  user_agent varchar
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
		vals, `ON CONFLICT (song_id) DO NOTHING`)
}

func (s *Sink) WriteArtists(ctx context.Context, rows []model.Artist) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.ArtistID, r.Name, r.Location, r.Latitude, r.Longitude}
	}
	return s.insert(ctx, "artists",
		[]string{"artist_id", "name", "location", "latitude", "longitude"},
		vals, `ON CONFLICT (artist_id) DO NOTHING`)
}

func (s *Sink) WriteUsers(ctx context.Context, rows []model.User) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.UserID, r.FirstName, r.LastName, r.Gender, r.Level}
	}
	return s.insert(ctx, "users",
		[]string{"user_id", "first_name", "last_name", "gender", "level"},
		vals, `ON CONFLICT (user_id) DO UPDATE SET level = EXCLUDED.level`)
}

func (s *Sink) WriteTime(ctx context.Context, rows []model.TimeRow) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.StartTime, r.Hour, r.Day, r.Week, r.Month, r.Year, r.Weekday}
	}
	return s.insert(ctx, `"time"`,
		[]string{"start_time", "hour", "day", "week", "month", "year", "weekday"},
		vals, `ON CONFLICT (start_time) DO NOTHING`)
}

func (s *Sink) WriteSongplays(ctx context.Context, rows []model.Songplay) (int64, error) {
	columns := []string{"songplay_id", "start_time", "user_id", "level", "song_id", "artist_id", "session_id", "location", "user_agent"}
	conflict := `ON CONFLICT (songplay_id) DO NOTHING`
	if s.storeAssignsID {
		columns = columns[1:]
		conflict = ""
	}

	vals := make([][]any, len(rows))
	for i, r := range rows {
		v := []any{r.StartTime, r.UserID, r.Level, r.SongID, r.ArtistID, r.SessionID, r.Location, r.UserAgent}
		if !s.storeAssignsID {
			v = append([]any{r.SongplayID}, v...)
		}
		vals[i] = v
	}
	return s.insert(ctx, "songplays", columns, vals, conflict)
}

func (s *Sink) insert(ctx context.Context, table string, columns []string, rows [][]any, conflictClause string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(table, columns, rows, conflictClause)
	cmd, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return cmd.RowsAffected(), nil
}

// buildInsertSQL constructs one multi-row INSERT statement and its args.
//
// It is pure and deterministic so placeholder numbering and the conflict
// clause can be unit tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictClause string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if conflictClause != "" {
		b.WriteString(" ")
		b.WriteString(conflictClause)
	}
	b.WriteString(";")
	return b.String(), args
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
