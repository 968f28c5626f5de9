package transform

import (
	"testing"
	"time"

	"sparkify/pkg/records"
)

// nextSong builds a minimal qualifying activity record.
func nextSong(userID int64, ts int64, level string) records.Record {
	return records.Record{
		"page":      "NextSong",
		"userId":    userID,
		"ts":        ts,
		"level":     level,
		"firstName": "Lily",
		"lastName":  "Koch",
		"gender":    "F",
		"song":      "Setanta matins",
		"artist":    "Elena",
		"length":    269.58159,
		"sessionId": int64(583),
		"location":  "San Jose-Sunnyvale-Santa Clara, CA",
		"userAgent": "Mozilla/5.0",
	}
}

func TestExtractEventsGatesOnNextSong(t *testing.T) {
	t.Parallel()

	recs := []records.Record{
		{"page": "Home", "userId": int64(1), "ts": int64(1000)},
		nextSong(15, 1541121934796, "paid"),
		{"page": "Logout", "userId": int64(15), "ts": int64(2000)},
		nextSong(15, 1541122241796, "paid"),
		{"page": "NextSong"}, // missing userId, rejected below
	}

	out, err := ExtractEvents(recs, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}

	if len(out.Plays) != 2 {
		t.Fatalf("plays = %d, want 2", len(out.Plays))
	}
	if len(out.Users) != 1 {
		t.Fatalf("users = %d, want 1", len(out.Users))
	}
	if len(out.Time) != 2 {
		t.Fatalf("time rows = %d, want 2", len(out.Time))
	}
}

func TestExtractEventsRejectsOnlyGatedRecords(t *testing.T) {
	t.Parallel()

	noUser := nextSong(0, 1541121934796, "free")
	noUser["userId"] = nil
	noTS := nextSong(7, 0, "free")
	noTS["ts"] = nil
	// Non-NextSong records missing the same fields are out of scope, not rejects.
	homeNoUser := records.Record{"page": "Home"}

	out, err := ExtractEvents([]records.Record{homeNoUser, noUser, noTS}, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}

	if len(out.Plays) != 0 {
		t.Fatalf("plays = %d, want 0", len(out.Plays))
	}
	if len(out.Rejects) != 2 {
		t.Fatalf("rejects = %+v, want 2", out.Rejects)
	}
	if out.Rejects[0].Index != 2 || out.Rejects[0].Field != "userId" {
		t.Errorf("rejects[0] = %+v", out.Rejects[0])
	}
	if out.Rejects[1].Index != 3 || out.Rejects[1].Field != "ts" {
		t.Errorf("rejects[1] = %+v", out.Rejects[1])
	}
}

// Empty-string userId is treated like null: the activity log serializes
// missing user ids as "" and those must not become user 0.
func TestExtractEventsEmptyUserIDRejected(t *testing.T) {
	t.Parallel()

	rec := nextSong(0, 1541121934796, "free")
	rec["userId"] = ""

	out, err := ExtractEvents([]records.Record{rec}, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}
	if len(out.Plays) != 0 || len(out.Rejects) != 1 {
		t.Fatalf("plays=%d rejects=%+v", len(out.Plays), out.Rejects)
	}
}

func TestExtractEventsUserLevelLatestTSWins(t *testing.T) {
	t.Parallel()

	first := nextSong(15, 3000, "free")
	first["firstName"] = "Lily"
	later := nextSong(15, 5000, "paid")
	later["firstName"] = "Someone Else"

	// Arrival order deliberately disagrees with ts order.
	out, err := ExtractEvents([]records.Record{later, first}, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}

	if len(out.Users) != 1 {
		t.Fatalf("users = %+v", out.Users)
	}
	u := out.Users[0]
	if u.Level != "paid" {
		t.Errorf("level = %q, want paid (greatest ts wins)", u.Level)
	}
	if u.FirstName != "Someone Else" {
		t.Errorf("firstName = %q, want first-seen value", u.FirstName)
	}
}

func TestExtractEventsTimeDerivation(t *testing.T) {
	t.Parallel()

	// 2018-11-01T21:05:34.796Z, a Thursday.
	const ts = 1541121934796

	out, err := ExtractEvents([]records.Record{nextSong(15, ts, "paid")}, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}
	if len(out.Time) != 1 {
		t.Fatalf("time rows = %d, want 1", len(out.Time))
	}

	row := out.Time[0]
	want := time.Date(2018, 11, 1, 21, 5, 34, 796_000_000, time.UTC)
	if !row.StartTime.Equal(want) {
		t.Errorf("start_time = %v, want %v", row.StartTime, want)
	}
	if row.Hour != 21 || row.Day != 1 || row.Week != 44 || row.Month != 11 || row.Year != 2018 {
		t.Errorf("derived fields = %+v", row)
	}
	if row.Weekday != 4 {
		t.Errorf("weekday = %d, want 4 (Thursday, sunday0)", row.Weekday)
	}
}

func TestExtractEventsWeekdaySunday1(t *testing.T) {
	t.Parallel()

	const ts = 1541121934796 // Thursday

	out, err := ExtractEvents([]records.Record{nextSong(15, ts, "paid")}, Options{Weekday: WeekdaySunday1})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}
	if out.Time[0].Weekday != 5 {
		t.Errorf("weekday = %d, want 5 (Thursday, sunday1)", out.Time[0].Weekday)
	}
}

func TestExtractEventsTimeDedupByTimestamp(t *testing.T) {
	t.Parallel()

	recs := []records.Record{
		nextSong(1, 5000, "free"),
		nextSong(2, 5000, "paid"), // same instant, different user
		nextSong(1, 6000, "free"),
	}

	out, err := ExtractEvents(recs, Options{})
	if err != nil {
		t.Fatalf("ExtractEvents: %v", err)
	}
	if len(out.Time) != 2 {
		t.Fatalf("time rows = %d, want 2", len(out.Time))
	}
	if !out.Time[0].StartTime.Before(out.Time[1].StartTime) {
		t.Errorf("time rows not sorted: %v, %v", out.Time[0].StartTime, out.Time[1].StartTime)
	}
	if len(out.Plays) != 3 {
		t.Errorf("plays = %d, want 3 (dedup applies to time, not plays)", len(out.Plays))
	}
}

func TestExtractEventsUnknownOptionFails(t *testing.T) {
	t.Parallel()

	if _, err := ExtractEvents(nil, Options{Weekday: "monday0"}); err == nil {
		t.Fatalf("expected error for unknown weekday convention")
	}
}
