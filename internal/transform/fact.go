package transform

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"

	"sparkify/internal/model"
	"sparkify/pkg/records"
)

// catalogEntry is the slice of a catalog record needed to resolve a join.
// SongID/ArtistID stay nullable: a catalog record without a song_id still
// matches by title+artist, it just cannot contribute a song key.
type catalogEntry struct {
	songID         *string
	artistID       *string
	artistLocation *string
	duration       *float64
}

// DeriveSongplays joins qualifying play events against the catalog and emits
// one fact row per event.
//
// The join predicate is exact string equality on event.song == catalog.title
// and event.artist == catalog.artist_name, optionally tightened with
// event.length == catalog.duration. The join is outer on the event side:
// every play produces a row, and unmatched plays carry null song_id and
// artist_id. Fact completeness outranks referential completeness.
//
// IDs are assigned per Options.IDStrategy; with "sequence" they are 1-based
// and strictly increasing in event order, with "hash" they are a
// deterministic function of (start_time, user_id, session_id) so replaying
// the same input yields the same ids, and with "store" the column is left
// zero for the sink's identity column.
func DeriveSongplays(plays []PlayEvent, catalog []records.Record, opts Options) ([]model.Songplay, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	index := buildCatalogIndex(catalog)

	out := make([]model.Songplay, 0, len(plays))
	var seq int64

	for _, p := range plays {
		sp := model.Songplay{
			StartTime: p.StartTime,
			UserID:    p.UserID,
			Level:     p.Level,
			SessionID: p.SessionID,
			UserAgent: p.UserAgent,
			Location:  p.Location,
		}

		entry := index.match(p, opts.MatchDuration)
		if entry != nil {
			sp.SongID = entry.songID
			sp.ArtistID = entry.artistID
			if opts.LocationSource == LocationFromArtist {
				sp.Location = entry.artistLocation
			}
		} else if opts.LocationSource == LocationFromArtist {
			sp.Location = nil
		}

		switch opts.IDStrategy {
		case IDSequence:
			seq++
			sp.SongplayID = seq
		case IDHash:
			sp.SongplayID = hashSongplayID(p)
		case IDStore:
			// left zero; the warehouse assigns it
		}

		out = append(out, sp)
	}

	return out, nil
}

type catalogIndex map[string][]catalogEntry

func buildCatalogIndex(catalog []records.Record) catalogIndex {
	idx := make(catalogIndex, len(catalog))
	for _, rec := range catalog {
		title, okT := rec.String("title")
		artist, okA := rec.String("artist_name")
		if !okT || !okA {
			continue
		}
		e := catalogEntry{
			songID:         stringPtr(rec, "song_id"),
			artistID:       stringPtr(rec, "artist_id"),
			artistLocation: stringPtr(rec, "artist_location"),
			duration:       floatPtr(rec, "duration"),
		}
		k := joinKey(title, artist)
		idx[k] = append(idx[k], e)
	}
	return idx
}

// match resolves a play against the index. Case-sensitive, no fuzzing.
func (idx catalogIndex) match(p PlayEvent, matchDuration bool) *catalogEntry {
	if p.Song == nil || p.Artist == nil {
		return nil
	}
	entries := idx[joinKey(*p.Song, *p.Artist)]
	if len(entries) == 0 {
		return nil
	}
	if !matchDuration {
		return &entries[0]
	}
	if p.Length == nil {
		return nil
	}
	for i := range entries {
		if entries[i].duration != nil && *entries[i].duration == *p.Length {
			return &entries[i]
		}
	}
	return nil
}

// joinKey separates the two fields with a unit separator so that
// ("ab","c") and ("a","bc") cannot collide.
func joinKey(title, artist string) string {
	return title + "\x1f" + artist
}

// hashSongplayID derives a stable positive id from the identifying fields of
// a play. A nil session id hashes differently from session id 0, mirroring
// how missing values are kept distinct elsewhere in the pipeline.
func hashSongplayID(p PlayEvent) int64 {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(p.TS, 10))
	b.WriteByte(0x1f)
	b.WriteString(strconv.FormatInt(p.UserID, 10))
	b.WriteByte(0x1f)
	if p.SessionID != nil {
		b.WriteString(strconv.FormatInt(*p.SessionID, 10))
	} else {
		b.WriteByte(0x00)
	}

	sum := sha256.Sum256([]byte(b.String()))
	id := int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
	if id == 0 {
		id = 1
	}
	return id
}
