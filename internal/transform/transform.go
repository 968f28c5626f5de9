// Package transform implements the dimensional transform: the mapping from
// raw catalog and activity-log records into a star schema (songs, artists,
// users and time dimensions plus the songplays fact table).
//
// The transform is a pure batch function. Given the two input record sets of
// a run it deterministically produces the five output sets; it performs no
// I/O, keeps no state between runs, and leaves persistence and write-time
// conflict resolution to the storage sinks.
package transform

import "fmt"

// Options resolves the documented ambiguities of the transform. The zero
// value selects all defaults.
type Options struct {
	// MatchDuration additionally requires catalog.duration == event.length
	// for a join match.
	MatchDuration bool

	// LocationSource is "event" (songplay location from the activity record)
	// or "artist" (from the matched catalog row).
	LocationSource string

	// IDStrategy is "sequence", "hash" or "store".
	IDStrategy string

	// Weekday is "sunday0" (Sunday=0, Postgres EXTRACT(DOW)) or "sunday1"
	// (Sunday=1, Spark dayofweek).
	Weekday string
}

const (
	LocationFromEvent  = "event"
	LocationFromArtist = "artist"

	IDSequence = "sequence"
	IDHash     = "hash"
	IDStore    = "store"

	WeekdaySunday0 = "sunday0"
	WeekdaySunday1 = "sunday1"
)

// withDefaults fills unset fields and rejects unknown values.
func (o Options) withDefaults() (Options, error) {
	if o.LocationSource == "" {
		o.LocationSource = LocationFromEvent
	}
	if o.IDStrategy == "" {
		o.IDStrategy = IDSequence
	}
	if o.Weekday == "" {
		o.Weekday = WeekdaySunday0
	}

	switch o.LocationSource {
	case LocationFromEvent, LocationFromArtist:
	default:
		return o, fmt.Errorf("transform: unknown location source %q", o.LocationSource)
	}
	switch o.IDStrategy {
	case IDSequence, IDHash, IDStore:
	default:
		return o, fmt.Errorf("transform: unknown songplay id strategy %q", o.IDStrategy)
	}
	switch o.Weekday {
	case WeekdaySunday0, WeekdaySunday1:
	default:
		return o, fmt.Errorf("transform: unknown weekday numbering %q", o.Weekday)
	}
	return o, nil
}

// ReasonMissingRequiredField marks a record dropped because a key the target
// dimension requires was null or not coercible.
const ReasonMissingRequiredField = "missing_required_field"

// Reject is one record excluded by a required-field gate. Rejects are a side
// channel for observability: well-formed inputs produce identical output
// whether or not anyone looks at them. In strict mode the pipeline fails the
// run when any reject is present.
type Reject struct {
	// Index is the 1-based position of the record in its input sequence.
	Index  int
	Field  string
	Reason string
}
