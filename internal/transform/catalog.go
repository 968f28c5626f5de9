package transform

import (
	"sort"

	"sparkify/internal/model"
	"sparkify/pkg/records"
)

// CatalogOutput holds the two dimension projections of the catalog plus the
// rejected-record side channel.
type CatalogOutput struct {
	Songs   []model.Song
	Artists []model.Artist
	Rejects []Reject
}

// ExtractCatalog projects raw catalog records into the songs and artists
// dimensions.
//
// Records with a null song_id are excluded from songs, records with a null
// artist_id from artists; each exclusion is reported on the reject channel.
// Uniqueness is by primary key with first-seen-wins: the source data is
// assumed internally consistent per key, so which duplicate survives is not a
// guaranteed tie-break. Output is sorted by key so the result does not depend
// on map iteration order.
func ExtractCatalog(recs []records.Record) CatalogOutput {
	var out CatalogOutput

	songs := make(map[string]model.Song)
	artists := make(map[string]model.Artist)

	for i, rec := range recs {
		idx := i + 1

		if songID, ok := rec.String("song_id"); ok && songID != "" {
			if _, seen := songs[songID]; !seen {
				songs[songID] = songFromRecord(songID, rec)
			}
		} else {
			out.Rejects = append(out.Rejects, Reject{Index: idx, Field: "song_id", Reason: ReasonMissingRequiredField})
		}

		if artistID, ok := rec.String("artist_id"); ok && artistID != "" {
			if _, seen := artists[artistID]; !seen {
				artists[artistID] = artistFromRecord(artistID, rec)
			}
		} else {
			out.Rejects = append(out.Rejects, Reject{Index: idx, Field: "artist_id", Reason: ReasonMissingRequiredField})
		}
	}

	out.Songs = make([]model.Song, 0, len(songs))
	for _, s := range songs {
		out.Songs = append(out.Songs, s)
	}
	sort.Slice(out.Songs, func(i, j int) bool { return out.Songs[i].SongID < out.Songs[j].SongID })

	out.Artists = make([]model.Artist, 0, len(artists))
	for _, a := range artists {
		out.Artists = append(out.Artists, a)
	}
	sort.Slice(out.Artists, func(i, j int) bool { return out.Artists[i].ArtistID < out.Artists[j].ArtistID })

	return out
}

func songFromRecord(songID string, rec records.Record) model.Song {
	s := model.Song{SongID: songID}
	s.Title, _ = rec.String("title")
	s.ArtistID, _ = rec.String("artist_id")
	if y, ok := rec.Int64("year"); ok {
		s.Year = int(y)
	}
	s.Duration, _ = rec.Float64("duration")
	return s
}

func artistFromRecord(artistID string, rec records.Record) model.Artist {
	a := model.Artist{ArtistID: artistID}
	a.Name, _ = rec.String("artist_name")
	a.Location = stringPtr(rec, "artist_location")
	a.Latitude = floatPtr(rec, "artist_latitude")
	a.Longitude = floatPtr(rec, "artist_longitude")
	return a
}

func stringPtr(rec records.Record, key string) *string {
	if s, ok := rec.String(key); ok && s != "" {
		return &s
	}
	return nil
}

func floatPtr(rec records.Record, key string) *float64 {
	if f, ok := rec.Float64(key); ok {
		return &f
	}
	return nil
}
