// Package parquet implements the data-lake sink: each warehouse table is
// written as Snappy-compressed parquet under the configured output path,
// with Hive-style partition directories where the table calls for them:
//
//	songs/year=<year>/artist_id=<id>/part-00000.parquet
//	artists/part-00000.parquet
//	users/part-00000.parquet
//	time/year=<year>/month=<month>/part-00000.parquet
//	songplays/year=<year>/month=<month>/part-00000.parquet
//
// The sink is snapshot-oriented: EnsureSchema clears each table directory so
// a rerun overwrites rather than appends.
package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	pq "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"sparkify/internal/model"
	"sparkify/internal/storage"
)

const writerParallelism = 2

type Sink struct {
	root string

	// part-file counter per partition directory, so repeated Write calls in
	// one run produce part-00000, part-00001, ...
	parts map[string]int
}

func init() {
	storage.Register("parquet", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
	if cfg.OutputPath == "" {
		return nil, fmt.Errorf("parquet: output path is required")
	}
	if cfg.StoreAssignsSongplayID {
		return nil, fmt.Errorf("parquet: store-assigned songplay ids are not supported")
	}
	return &Sink{root: cfg.OutputPath, parts: make(map[string]int)}, nil
}

func (s *Sink) Close() {}

// EnsureSchema resets the five table directories under the output root.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{"songs", "artists", "users", "time", "songplays"} {
		dir := filepath.Join(s.root, table)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("parquet: reset %s: %w", table, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("parquet: create %s: %w", table, err)
		}
	}
	return nil
}

type songRow struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID string  `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year     int32   `parquet:"name=year, type=INT32"`
	Duration float64 `parquet:"name=duration, type=DOUBLE"`
}

type artistRow struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location  *string  `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Latitude  *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type userRow struct {
	UserID    int64  `parquet:"name=user_id, type=INT64"`
	FirstName string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type timeRow struct {
	StartTime int64 `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Hour      int32 `parquet:"name=hour, type=INT32"`
	Day       int32 `parquet:"name=day, type=INT32"`
	Week      int32 `parquet:"name=week, type=INT32"`
	Month     int32 `parquet:"name=month, type=INT32"`
	Year      int32 `parquet:"name=year, type=INT32"`
	Weekday   int32 `parquet:"name=weekday, type=INT32"`
}

type songplayRow struct {
	SongplayID int64   `parquet:"name=songplay_id, type=INT64"`
	StartTime  int64   `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	UserID     int64   `parquet:"name=user_id, type=INT64"`
	Level      string  `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID     *string `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	ArtistID   *string `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	SessionID  *int64  `parquet:"name=session_id, type=INT64, repetitiontype=OPTIONAL"`
	Location   *string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	UserAgent  *string `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

func (s *Sink) WriteSongs(ctx context.Context, rows []model.Song) (int64, error) {
	byPart := make(map[string][]songRow)
	for _, r := range rows {
		p := filepath.Join("songs",
			fmt.Sprintf("year=%d", r.Year),
			fmt.Sprintf("artist_id=%s", partValue(r.ArtistID)))
		byPart[p] = append(byPart[p], songRow{
			SongID: r.SongID, Title: r.Title, ArtistID: r.ArtistID,
			Year: int32(r.Year), Duration: r.Duration,
		})
	}
	return writePartitions(s, byPart)
}

func (s *Sink) WriteArtists(ctx context.Context, rows []model.Artist) (int64, error) {
	out := make([]artistRow, len(rows))
	for i, r := range rows {
		out[i] = artistRow{
			ArtistID: r.ArtistID, Name: r.Name,
			Location: r.Location, Latitude: r.Latitude, Longitude: r.Longitude,
		}
	}
	return writePartitions(s, map[string][]artistRow{"artists": out})
}

func (s *Sink) WriteUsers(ctx context.Context, rows []model.User) (int64, error) {
	out := make([]userRow, len(rows))
	for i, r := range rows {
		out[i] = userRow{
			UserID: r.UserID, FirstName: r.FirstName, LastName: r.LastName,
			Gender: r.Gender, Level: r.Level,
		}
	}
	return writePartitions(s, map[string][]userRow{"users": out})
}

func (s *Sink) WriteTime(ctx context.Context, rows []model.TimeRow) (int64, error) {
	byPart := make(map[string][]timeRow)
	for _, r := range rows {
		p := filepath.Join("time",
			fmt.Sprintf("year=%d", r.Year),
			fmt.Sprintf("month=%d", r.Month))
		byPart[p] = append(byPart[p], timeRow{
			StartTime: r.StartTime.UnixMilli(),
			Hour:      int32(r.Hour), Day: int32(r.Day), Week: int32(r.Week),
			Month: int32(r.Month), Year: int32(r.Year), Weekday: int32(r.Weekday),
		})
	}
	return writePartitions(s, byPart)
}

func (s *Sink) WriteSongplays(ctx context.Context, rows []model.Songplay) (int64, error) {
	byPart := make(map[string][]songplayRow)
	for _, r := range rows {
		t := r.StartTime.UTC()
		p := filepath.Join("songplays",
			fmt.Sprintf("year=%d", t.Year()),
			fmt.Sprintf("month=%d", int(t.Month())))
		byPart[p] = append(byPart[p], songplayRow{
			SongplayID: r.SongplayID,
			StartTime:  r.StartTime.UnixMilli(),
			UserID:     r.UserID,
			Level:      r.Level,
			SongID:     r.SongID,
			ArtistID:   r.ArtistID,
			SessionID:  r.SessionID,
			Location:   r.Location,
			UserAgent:  r.UserAgent,
		})
	}
	return writePartitions(s, byPart)
}

// writePartitions writes one part file per partition, in sorted partition
// order so that file numbering is deterministic.
func writePartitions[T any](s *Sink, byPart map[string][]T) (int64, error) {
	parts := make([]string, 0, len(byPart))
	for p := range byPart {
		parts = append(parts, p)
	}
	sort.Strings(parts)

	var total int64
	for _, p := range parts {
		n, err := writePartFile(s, p, byPart[p])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func writePartFile[T any](s *Sink, partition string, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	dir := filepath.Join(s.root, partition)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("parquet: mkdir %s: %w", partition, err)
	}

	seq := s.parts[partition]
	s.parts[partition] = seq + 1
	path := filepath.Join(dir, fmt.Sprintf("part-%05d.parquet", seq))

	fw, err := pq.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("parquet: open %s: %w", path, err)
	}

	var zero T
	pw, err := writer.NewParquetWriter(fw, &zero, writerParallelism)
	if err != nil {
		_ = fw.Close()
		return 0, fmt.Errorf("parquet: writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = fw.Close()
			return 0, fmt.Errorf("parquet: write %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return 0, fmt.Errorf("parquet: finalize %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("parquet: close %s: %w", path, err)
	}

	return int64(len(rows)), nil
}

// partValue keeps partition directory names filesystem-safe.
func partValue(v string) string {
	if v == "" {
		return "__HIVE_DEFAULT_PARTITION__"
	}
	safe := make([]rune, 0, len(v))
	for _, r := range v {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			safe = append(safe, '_')
		default:
			safe = append(safe, r)
		}
	}
	return string(safe)
}
