// Package model defines the star schema produced by the dimensional
// transform: four dimension tables and one fact table. Nullable attributes
// are pointers so sinks can distinguish "absent" from zero values.
package model

import "time"

// Song is one row of the songs dimension. SongID is the unique key and is
// never null; duplicate extraction collapses to one row per SongID.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Artist is one row of the artists dimension, keyed by ArtistID.
type Artist struct {
	ArtistID  string
	Name      string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

// User is one row of the users dimension, keyed by UserID.
// Level is the subscription tier and is the only mutable attribute: on
// re-ingestion the stored level is overwritten, everything else is kept.
type User struct {
	UserID    int64
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// TimeRow is one row of the time dimension. All fields besides StartTime are
// derived from it and must never be mutated independently.
type TimeRow struct {
	StartTime time.Time // UTC, millisecond precision
	Hour      int
	Day       int
	Week      int // ISO 8601 week of year
	Month     int
	Year      int
	Weekday   int // numbering per transform.Options.Weekday
}

// Songplay is one row of the songplays fact table.
//
// SongplayID semantics depend on the configured ID strategy:
//   - sequence/hash: assigned by the transform, non-zero.
//   - store: zero; the sink's identity column assigns the value.
//
// SongID and ArtistID are null when the play event had no catalog match.
type Songplay struct {
	SongplayID int64
	StartTime  time.Time
	UserID     int64
	Level      string
	SongID     *string
	ArtistID   *string
	SessionID  *int64
	Location   *string
	UserAgent  *string
}
