// Package mssql implements the warehouse sink for Microsoft SQL Server.
//
// SQL Server has no ON CONFLICT clause and MERGE has well-known concurrency
// pitfalls, so idempotent inserts are expressed as an anti-semi join:
// INSERT ... SELECT over a VALUES derived table LEFT JOIN the target, keeping
// only rows whose key is absent. The user upsert runs UPDATE then the same
// anti-join INSERT inside one transaction.
//
// All statements are chunked to stay well within SQL Server's 2100 parameter
// limit.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"sparkify/internal/model"
	"sparkify/internal/storage"
)

type Sink struct {
	db             *sql.DB
	storeAssignsID bool
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for ETL-style bursty loads.
	db.SetMaxOpenConns(64)
	db.SetMaxIdleConns(64)

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
	songplayID := "[songplay_id] BIGINT NOT NULL PRIMARY KEY"
	if storeAssignsID {
		songplayID = "[songplay_id] BIGINT IDENTITY(1,1) PRIMARY KEY"
	}

	return []string{
		wrapCreateIfMissing("songs",
			"[song_id] NVARCHAR(64) NOT NULL PRIMARY KEY, [title] NVARCHAR(512), [artist_id] NVARCHAR(64), [year] INT, [duration] FLOAT"),
		wrapCreateIfMissing("artists",
			"[artist_id] NVARCHAR(64) NOT NULL PRIMARY KEY, [name] NVARCHAR(512), [location] NVARCHAR(512), [latitude] FLOAT, [longitude] FLOAT"),
		wrapCreateIfMissing("users",
			"[user_id] BIGINT NOT NULL PRIMARY KEY, [first_name] NVARCHAR(256), [last_name] NVARCHAR(256), [gender] NVARCHAR(8), [level] NVARCHAR(16)"),
		wrapCreateIfMissing("time",
			"[start_time] DATETIME2 NOT NULL PRIMARY KEY, [hour] INT, [day] INT, [week] INT, [month] INT, [year] INT, [weekday] INT"),
		wrapCreateIfMissing("songplays",
			songplayID+", [start_time] DATETIME2 NOT NULL, [user_id] BIGINT NOT NULL, [level] NVARCHAR(16), [song_id] NVARCHAR(64), [artist_id] NVARCHAR(64), [session_id] BIGINT, [location] NVARCHAR(512), [user_agent] NVARCHAR(1024)"),
	}
}

// wrapCreateIfMissing wraps a CREATE TABLE in an OBJECT_ID guard, which keeps
// EnsureSchema idempotent without IF NOT EXISTS syntax.
func wrapCreateIfMissing(table, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table, mssqlIdent(table), innerDefs,
	)
}

func (s *Sink) WriteSongs(ctx context.Context, rows []model.Song) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.SongID, r.Title, r.ArtistID, r.Year, r.Duration}
	}
	return s.insertMissing(ctx, "songs",
		[]string{"song_id", "title", "artist_id", "year", "duration"},
		"song_id", vals)
}

func (s *Sink) WriteArtists(ctx context.Context, rows []model.Artist) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.ArtistID, r.Name, nullableString(r.Location), nullableFloat(r.Latitude), nullableFloat(r.Longitude)}
	}
	return s.insertMissing(ctx, "artists",
		[]string{"artist_id", "name", "location", "latitude", "longitude"},
		"artist_id", vals)
}

// execer is the statement-execution surface of *sql.Tx used by upsertUsers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteUsers updates level for known users then anti-join inserts the rest,
// both inside one transaction so a rerun cannot observe a half-applied batch.
func (s *Sink) WriteUsers(ctx context.Context, rows []model.User) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.UserID, r.FirstName, r.LastName, r.Gender, r.Level}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write users: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total, err := upsertUsers(ctx, tx, vals)
	if err != nil {
		return total, err
	}

	if err := tx.Commit(); err != nil {
		return total, fmt.Errorf("write users: commit: %w", err)
	}
	return total, nil
}

// upsertUsers runs the chunked level-update and anti-join insert statements.
// Updated and inserted rows count alike: the other backends report both
// through their upsert's RowsAffected.
func upsertUsers(ctx context.Context, tx execer, vals [][]any) (int64, error) {
	columns := []string{"user_id", "first_name", "last_name", "gender", "level"}

	var total int64
	for _, part := range chunkRows(vals, maxRowsPerStatement(2)) {
		q, args := buildUpdateLevelSQL("users", part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("write users: update: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	for _, part := range chunkRows(vals, maxRowsPerStatement(len(columns))) {
		q, args := buildInsertMissingSQL("users", columns, "user_id", part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("write users: insert: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *Sink) WriteTime(ctx context.Context, rows []model.TimeRow) (int64, error) {
	vals := make([][]any, len(rows))
	for i, r := range rows {
		vals[i] = []any{r.StartTime.UTC(), r.Hour, r.Day, r.Week, r.Month, r.Year, r.Weekday}
	}
	return s.insertMissing(ctx, "time",
		[]string{"start_time", "hour", "day", "week", "month", "year", "weekday"},
		"start_time", vals)
}

func (s *Sink) WriteSongplays(ctx context.Context, rows []model.Songplay) (int64, error) {
	columns := []string{"songplay_id", "start_time", "user_id", "level", "song_id", "artist_id", "session_id", "location", "user_agent"}
	if s.storeAssignsID {
		columns = columns[1:]
	}

	vals := make([][]any, len(rows))
	for i, r := range rows {
		v := []any{r.StartTime.UTC(), r.UserID, r.Level,
			nullableString(r.SongID), nullableString(r.ArtistID),
			nullableInt(r.SessionID), nullableString(r.Location), nullableString(r.UserAgent)}
		if !s.storeAssignsID {
			v = append([]any{r.SongplayID}, v...)
		}
		vals[i] = v
	}

	if s.storeAssignsID {
		return s.insertPlain(ctx, "songplays", columns, vals)
	}
	return s.insertMissing(ctx, "songplays", columns, "songplay_id", vals)
}

// insertMissing inserts only rows whose key column is not already present.
func (s *Sink) insertMissing(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var total int64
	for _, part := range chunkRows(rows, maxRowsPerStatement(len(columns))) {
		q, args := buildInsertMissingSQL(table, columns, keyColumn, part)
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *Sink) insertPlain(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var total int64
	for _, part := range chunkRows(rows, maxRowsPerStatement(len(columns))) {
		q, args := buildBulkInsertSQL(table, columns, part)
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// maxRowsPerStatement keeps each statement comfortably below SQL Server's
// 2100 parameter limit.
func maxRowsPerStatement(paramsPerRow int) int {
	if paramsPerRow < 1 {
		paramsPerRow = 1
	}
	n := 2000 / paramsPerRow
	if n < 1 {
		n = 1
	}
	return n
}

func chunkRows(rows [][]any, size int) [][][]any {
	var out [][][]any
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}

// buildInsertMissingSQL builds the anti-join insert for one chunk.
//
// Split out so tests can assert the generated SQL without a database.
func buildInsertMissingSQL(table string, columns []string, keyColumn string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") SELECT ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("v.")
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(" FROM (VALUES ")

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
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS v(")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") LEFT JOIN ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" t ON t.")
	b.WriteString(mssqlIdent(keyColumn))
	b.WriteString(" = v.")
	b.WriteString(mssqlIdent(keyColumn))
	b.WriteString(" WHERE t.")
	b.WriteString(mssqlIdent(keyColumn))
	b.WriteString(" IS NULL")

	return b.String(), args
}

// buildUpdateLevelSQL refreshes level for users already present, joining the
// incoming chunk as a VALUES derived table. Each row contributes two params.
func buildUpdateLevelSQL(table string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE t SET t.[level] = v.[level] FROM ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" t JOIN (VALUES ")

	args := make([]any, 0, len(rows)*2)
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("(@p%d, @p%d)", p, p+1))
		args = append(args, row[0], row[4])
		p += 2
	}

	b.WriteString(") AS v([user_id], [level]) ON t.[user_id] = v.[user_id]")
	return b.String(), args
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
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
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
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
