package mssql

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestBuildInsertMissingSQLAntiJoin(t *testing.T) {
	t.Parallel()

	q, args := buildInsertMissingSQL("songs",
		[]string{"song_id", "title"},
		"song_id",
		[][]any{{"SOAAA001", "First"}, {"SOBBB002", "Second"}})

	if !strings.HasPrefix(q, "INSERT INTO [songs] ([song_id], [title]) SELECT v.[song_id], v.[title] FROM (VALUES ") {
		t.Fatalf("sql prefix: %q", q)
	}
	if !strings.Contains(q, "(@p1, @p2), (@p3, @p4)") {
		t.Fatalf("placeholders: %q", q)
	}
	if !strings.Contains(q, "LEFT JOIN [songs] t ON t.[song_id] = v.[song_id] WHERE t.[song_id] IS NULL") {
		t.Fatalf("anti-join clause: %q", q)
	}
	if strings.Contains(strings.ToUpper(q), "MERGE") {
		t.Fatalf("MERGE must not be used: %q", q)
	}
	if len(args) != 4 || args[0] != "SOAAA001" || args[3] != "Second" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildUpdateLevelSQL(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{int64(15), "Lily", "Koch", "F", "paid"},
		{int64(16), "Rylan", "George", "M", "free"},
	}

	q, args := buildUpdateLevelSQL("users", rows)

	if !strings.HasPrefix(q, "UPDATE t SET t.[level] = v.[level] FROM [users] t JOIN (VALUES ") {
		t.Fatalf("sql prefix: %q", q)
	}
	if !strings.HasSuffix(q, "AS v([user_id], [level]) ON t.[user_id] = v.[user_id]") {
		t.Fatalf("sql suffix: %q", q)
	}
	// Only user_id and level from each row become parameters.
	if len(args) != 4 {
		t.Fatalf("args = %v, want 4", args)
	}
	if args[0] != int64(15) || args[1] != "paid" || args[2] != int64(16) || args[3] != "free" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("songplays",
		[]string{"start_time", "user_id"},
		[][]any{{1, 2}})

	if q != "INSERT INTO [songplays] ([start_time], [user_id]) VALUES (@p1, @p2)" {
		t.Fatalf("sql = %q", q)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
}

func TestMaxRowsPerStatementStaysUnderParamLimit(t *testing.T) {
	t.Parallel()

	if got := maxRowsPerStatement(9); got*9 > 2100 {
		t.Fatalf("maxRowsPerStatement(9)=%d exceeds parameter limit", got)
	}
	if got := maxRowsPerStatement(0); got < 1 {
		t.Fatalf("maxRowsPerStatement(0)=%d, want >= 1", got)
	}
	if got := maxRowsPerStatement(5000); got != 1 {
		t.Fatalf("maxRowsPerStatement(5000)=%d, want 1", got)
	}
}

func TestChunkRows(t *testing.T) {
	t.Parallel()

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	chunks := chunkRows(rows, 2)
	if len(chunks) != 3 || len(chunks[0]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestCreateTableDDLIdempotentGuards(t *testing.T) {
	t.Parallel()

	ddl := strings.Join(createTableDDL(false), "\n")

	for _, want := range []string{
		"IF OBJECT_ID(N'songs', N'U') IS NULL",
		"IF OBJECT_ID(N'songplays', N'U') IS NULL",
		"[songplay_id] BIGINT NOT NULL PRIMARY KEY",
	} {
		if !strings.Contains(ddl, want) {
			t.Errorf("DDL missing %q", want)
		}
	}

	withIdentity := strings.Join(createTableDDL(true), "\n")
	if !strings.Contains(withIdentity, "[songplay_id] BIGINT IDENTITY(1,1) PRIMARY KEY") {
		t.Errorf("store-assigned DDL missing IDENTITY column")
	}
}

func TestMSSQLIdentEscapesBrackets(t *testing.T) {
	t.Parallel()

	if got := mssqlIdent("we]ird"); got != "[we]]ird]" {
		t.Fatalf("mssqlIdent = %q", got)
	}
}

type fakeResult struct{ affected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeExecer reports a canned affected count per statement, in call order.
type fakeExecer struct {
	affected []int64
	queries  []string
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	n := f.affected[0]
	f.affected = f.affected[1:]
	return fakeResult{affected: n}, nil
}

func TestUpsertUsersCountsUpdatedAndInsertedRows(t *testing.T) {
	t.Parallel()

	vals := [][]any{
		{int64(15), "Lily", "Koch", "F", "paid"},
		{int64(80), "Tegan", "Levine", "F", "free"},
	}

	// One update statement touching 1 existing row, one anti-join insert
	// adding the other.
	fake := &fakeExecer{affected: []int64{1, 1}}

	total, err := upsertUsers(context.Background(), fake, vals)
	if err != nil {
		t.Fatalf("upsertUsers: %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want updated + inserted = 2", total)
	}

	if len(fake.queries) != 2 {
		t.Fatalf("statements = %d, want update then insert", len(fake.queries))
	}
	if !strings.HasPrefix(fake.queries[0], "UPDATE t SET t.[level] = v.[level]") {
		t.Errorf("first statement not the level update: %q", fake.queries[0])
	}
	if !strings.HasPrefix(fake.queries[1], "INSERT INTO [users]") {
		t.Errorf("second statement not the anti-join insert: %q", fake.queries[1])
	}
}
