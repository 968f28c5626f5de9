package pipeline

import (
	"fmt"
	"io"

	"sparkify/internal/model"
	"sparkify/internal/transform"
)

// Report summarizes one pipeline run: input sizes, transform output sizes,
// reject side channel, and rows the sink reported written. Written counts can
// be lower than transform counts on reruns, when conflict policies skip rows
// already present.
type Report struct {
	Job string

	CatalogRecords int
	EventRecords   int

	Songs     int
	Artists   int
	Users     int
	TimeRows  int
	Songplays int

	// MatchedSongplays counts fact rows whose catalog join succeeded.
	MatchedSongplays int

	CatalogRejects []transform.Reject
	EventRejects   []transform.Reject

	// Per-table head samples for diagnostic output, capped at sampleLimit.
	SongSamples     []model.Song
	ArtistSamples   []model.Artist
	UserSamples     []model.User
	TimeSamples     []model.TimeRow
	SongplaySamples []model.Songplay

	SongsWritten     int64
	ArtistsWritten   int64
	UsersWritten     int64
	TimeWritten      int64
	SongplaysWritten int64
}

// RejectCount returns the total number of rejected records.
func (r *Report) RejectCount() int {
	return len(r.CatalogRejects) + len(r.EventRejects)
}

// RowsWritten returns the total rows the sink reported written.
func (r *Report) RowsWritten() int64 {
	return r.SongsWritten + r.ArtistsWritten + r.UsersWritten + r.TimeWritten + r.SongplaysWritten
}

// sampleLimit bounds how many head rows the report keeps per table;
// rejectSampleLimit bounds how many rejects Print lists per channel.
const (
	sampleLimit       = 5
	rejectSampleLimit = 10
)

// sampleOf returns up to sampleLimit head rows.
func sampleOf[T any](rows []T) []T {
	if len(rows) <= sampleLimit {
		return rows
	}
	return rows[:sampleLimit]
}

// Print writes a human-readable run summary.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "job: %s\n", r.Job)
	fmt.Fprintf(w, "input: catalog=%d events=%d\n", r.CatalogRecords, r.EventRecords)
	fmt.Fprintf(w, "transform: songs=%d artists=%d users=%d time=%d songplays=%d (matched=%d)\n",
		r.Songs, r.Artists, r.Users, r.TimeRows, r.Songplays, r.MatchedSongplays)
	fmt.Fprintf(w, "written: songs=%d artists=%d users=%d time=%d songplays=%d\n",
		r.SongsWritten, r.ArtistsWritten, r.UsersWritten, r.TimeWritten, r.SongplaysWritten)

	printSamples(w, "songs", r.SongSamples)
	printSamples(w, "artists", r.ArtistSamples)
	printSamples(w, "users", r.UserSamples)
	printSamples(w, "time", r.TimeSamples)
	printSamples(w, "songplays", r.SongplaySamples)

	if r.RejectCount() == 0 {
		fmt.Fprintf(w, "rejects: none\n")
		return
	}

	fmt.Fprintf(w, "rejects: catalog=%d events=%d\n", len(r.CatalogRejects), len(r.EventRejects))
	printRejects(w, "catalog", r.CatalogRejects)
	printRejects(w, "events", r.EventRejects)
}

func printSamples[T any](w io.Writer, table string, rows []T) {
	for i, row := range rows {
		fmt.Fprintf(w, "  %s[%d]: %+v\n", table, i, row)
	}
}

func printRejects(w io.Writer, channel string, rejects []transform.Reject) {
	for i, rej := range rejects {
		if i == rejectSampleLimit {
			fmt.Fprintf(w, "  %s: ... %d more\n", channel, len(rejects)-rejectSampleLimit)
			return
		}
		fmt.Fprintf(w, "  %s: record=%d field=%s reason=%s\n", channel, rej.Index, rej.Field, rej.Reason)
	}
}
