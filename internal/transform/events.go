package transform

import (
	"sort"
	"time"

	"sparkify/internal/model"
	"sparkify/pkg/records"
)

// PlayEvent is one activity-log record that survived the NextSong gate, with
// its fields coerced. It feeds both the time dimension and fact derivation.
type PlayEvent struct {
	TS        int64 // epoch milliseconds
	StartTime time.Time
	UserID    int64
	Level     string
	Song      *string
	Artist    *string
	Length    *float64
	SessionID *int64
	Location  *string
	UserAgent *string
}

// EventOutput holds everything derived from the activity log in one pass.
type EventOutput struct {
	Users   []model.User
	Time    []model.TimeRow
	Plays   []PlayEvent
	Rejects []Reject
}

// ExtractEvents filters activity-log records and derives the users and time
// dimensions plus the qualifying play events.
//
// The gate is page == "NextSong" AND userId non-null AND ts non-null; it is
// the sole distinction between "a song was played" and every other activity
// event. Non-NextSong records are simply out of scope, but NextSong records
// failing the userId/ts requirement go to the reject channel.
//
// Users are deduplicated by user_id. level is taken from the record with the
// greatest ts (latest play wins; on equal ts the later record wins); all
// other user fields keep their first-seen values. The source behavior here
// depended on engine arrival order, so this rule is deliberate and explicit.
//
// Time rows are deduplicated by start_time and every derived field is
// computed from start_time alone.
func ExtractEvents(recs []records.Record, opts Options) (EventOutput, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return EventOutput{}, err
	}

	var out EventOutput

	users := make(map[int64]*model.User)
	levelTS := make(map[int64]int64)
	seenTS := make(map[int64]struct{})

	for i, rec := range recs {
		if page, _ := rec.String("page"); page != "NextSong" {
			continue
		}

		userID, okUser := rec.Int64("userId")
		if !okUser {
			out.Rejects = append(out.Rejects, Reject{Index: i + 1, Field: "userId", Reason: ReasonMissingRequiredField})
			continue
		}
		ts, okTS := rec.Int64("ts")
		if !okTS {
			out.Rejects = append(out.Rejects, Reject{Index: i + 1, Field: "ts", Reason: ReasonMissingRequiredField})
			continue
		}

		play := PlayEvent{
			TS:        ts,
			StartTime: time.UnixMilli(ts).UTC(),
			UserID:    userID,
			SessionID: intPtr(rec, "sessionId"),
			Song:      stringPtr(rec, "song"),
			Artist:    stringPtr(rec, "artist"),
			Length:    floatPtr(rec, "length"),
			Location:  stringPtr(rec, "location"),
			UserAgent: stringPtr(rec, "userAgent"),
		}
		play.Level, _ = rec.String("level")
		out.Plays = append(out.Plays, play)

		if u, seen := users[userID]; seen {
			if ts >= levelTS[userID] {
				u.Level = play.Level
				levelTS[userID] = ts
			}
		} else {
			u := &model.User{UserID: userID, Level: play.Level}
			u.FirstName, _ = rec.String("firstName")
			u.LastName, _ = rec.String("lastName")
			u.Gender, _ = rec.String("gender")
			users[userID] = u
			levelTS[userID] = ts
		}

		if _, dup := seenTS[ts]; !dup {
			seenTS[ts] = struct{}{}
			out.Time = append(out.Time, timeRowFrom(play.StartTime, opts.Weekday))
		}
	}

	out.Users = make([]model.User, 0, len(users))
	for _, u := range users {
		out.Users = append(out.Users, *u)
	}
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].UserID < out.Users[j].UserID })

	sort.Slice(out.Time, func(i, j int) bool { return out.Time[i].StartTime.Before(out.Time[j].StartTime) })

	return out, nil
}

// timeRowFrom derives every time-dimension field from one timestamp using
// Gregorian calendar rules. Week is the ISO 8601 week of year.
func timeRowFrom(t time.Time, weekday string) model.TimeRow {
	_, week := t.ISOWeek()
	return model.TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   weekdayNumber(t, weekday),
	}
}

// weekdayNumber maps time.Weekday onto the configured numbering. Go counts
// Sunday=0, which already matches the sunday0 convention; Spark's dayofweek
// counts Sunday=1.
func weekdayNumber(t time.Time, convention string) int {
	n := int(t.Weekday())
	if convention == WeekdaySunday1 {
		n++
	}
	return n
}

func intPtr(rec records.Record, key string) *int64 {
	if n, ok := rec.Int64(key); ok {
		return &n
	}
	return nil
}
