// Package pipeline orchestrates one end-to-end run: read the two source
// trees, apply the dimensional transform, and load the five output sets into
// the configured sink.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sparkify/internal/config"
	"sparkify/internal/metrics"
	"sparkify/internal/model"
	"sparkify/internal/source"
	"sparkify/internal/storage"
	"sparkify/internal/transform"
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Runner executes pipeline runs. The factory fields are seams: production
// code uses NewDefaultRunner, tests inject fakes so no filesystem, network
// or database is needed.
type Runner struct {
	NewReader func(ctx context.Context, cfg config.Source, sourceWorkers int) (source.Reader, error)
	NewSink   func(ctx context.Context, cfg storage.Config) (storage.Sink, error)
	Logger    Logger
}

func NewDefaultRunner() *Runner {
	return &Runner{
		NewReader: source.New,
		NewSink:   storage.New,
	}
}

// Run executes the pipeline described by cfg and returns its Report.
//
// A run is load-idempotent: the sinks' write-time conflict policies make
// re-running the same input a no-op for every table except store-assigned
// songplay ids. Transform rejects fail the run only in strict mode.
func (r *Runner) Run(ctx context.Context, cfg config.Pipeline) (*Report, error) {
	if issues := config.ValidatePipeline(cfg); config.HasErrors(issues) {
		return nil, fmt.Errorf("pipeline: invalid config: %s", config.FormatIssues(issues))
	}

	logf := r.logger()
	opts := transform.Options{
		MatchDuration:  cfg.Transform.MatchDuration,
		LocationSource: cfg.Transform.LocationSource,
		IDStrategy:     cfg.Transform.SongplayID,
		Weekday:        cfg.Transform.Weekday,
	}

	rep := &Report{Job: cfg.Job}

	// Extract.
	reader, err := r.NewReader(ctx, cfg.Source, cfg.Runtime.SourceWorkers)
	if err != nil {
		return nil, fmt.Errorf("pipeline: source: %w", err)
	}

	readStart := time.Now()
	catalogRecs, err := reader.ReadCatalog(ctx)
	if err != nil {
		observeStep("read_catalog", readStart, err)
		return nil, fmt.Errorf("pipeline: read catalog: %w", err)
	}
	eventRecs, err := reader.ReadEvents(ctx)
	if err != nil {
		observeStep("read_events", readStart, err)
		return nil, fmt.Errorf("pipeline: read events: %w", err)
	}
	observeStep("read", readStart, nil)
	rep.CatalogRecords = len(catalogRecs)
	rep.EventRecords = len(eventRecs)
	logf("stage=read ok catalog_records=%d event_records=%d duration=%s",
		len(catalogRecs), len(eventRecs), durMS(readStart))

	// Transform.
	xformStart := time.Now()
	cat := transform.ExtractCatalog(catalogRecs)

	ev, err := transform.ExtractEvents(eventRecs, opts)
	if err != nil {
		observeStep("transform", xformStart, err)
		return nil, fmt.Errorf("pipeline: extract events: %w", err)
	}

	songplays, err := transform.DeriveSongplays(ev.Plays, catalogRecs, opts)
	if err != nil {
		observeStep("transform", xformStart, err)
		return nil, fmt.Errorf("pipeline: derive songplays: %w", err)
	}
	observeStep("transform", xformStart, nil)

	rep.Songs = len(cat.Songs)
	rep.Artists = len(cat.Artists)
	rep.Users = len(ev.Users)
	rep.TimeRows = len(ev.Time)
	rep.Songplays = len(songplays)
	rep.CatalogRejects = cat.Rejects
	rep.EventRejects = ev.Rejects

	rep.SongSamples = sampleOf(cat.Songs)
	rep.ArtistSamples = sampleOf(cat.Artists)
	rep.UserSamples = sampleOf(ev.Users)
	rep.TimeSamples = sampleOf(ev.Time)
	rep.SongplaySamples = sampleOf(songplays)

	matched := 0
	for _, sp := range songplays {
		if sp.SongID != nil {
			matched++
		}
	}
	rep.MatchedSongplays = matched

	countRecords("songs", rep.Songs)
	countRecords("artists", rep.Artists)
	countRecords("users", rep.Users)
	countRecords("time", rep.TimeRows)
	countRecords("songplays", rep.Songplays)
	countRecords("rejects", len(cat.Rejects)+len(ev.Rejects))

	logf("stage=transform ok songs=%d artists=%d users=%d time=%d songplays=%d matched=%d rejects=%d duration=%s",
		rep.Songs, rep.Artists, rep.Users, rep.TimeRows, rep.Songplays,
		matched, len(cat.Rejects)+len(ev.Rejects), durMS(xformStart))

	if cfg.Transform.Strict && rep.RejectCount() > 0 {
		return rep, fmt.Errorf("pipeline: strict mode: %d records rejected", rep.RejectCount())
	}

	// Load.
	sink, err := r.NewSink(ctx, sinkConfig(cfg))
	if err != nil {
		return rep, fmt.Errorf("pipeline: sink: %w", err)
	}
	defer sink.Close()

	ddlStart := time.Now()
	if err := sink.EnsureSchema(ctx); err != nil {
		observeStep("ddl", ddlStart, err)
		return rep, fmt.Errorf("pipeline: ensure schema: %w", err)
	}
	observeStep("ddl", ddlStart, nil)
	logf("stage=ddl ok duration=%s", durMS(ddlStart))

	loadStart := time.Now()
	err = r.load(ctx, sink, cfg.Runtime.BatchSize, cat, ev, songplays, rep)
	observeStep("load", loadStart, err)
	if err != nil {
		return rep, err
	}
	logf("stage=load ok written=%d duration=%s", rep.RowsWritten(), durMS(loadStart))

	return rep, nil
}

// load writes the five output sets in dependency order, dimensions before
// the fact, each chunked by batchSize.
func (r *Runner) load(
	ctx context.Context,
	sink storage.Sink,
	batchSize int,
	cat transform.CatalogOutput,
	ev transform.EventOutput,
	songplays []model.Songplay,
	rep *Report,
) error {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}

	if err := writeBatched(ctx, batchSize, cat.Songs, sink.WriteSongs, &rep.SongsWritten); err != nil {
		return fmt.Errorf("pipeline: load songs: %w", err)
	}
	if err := writeBatched(ctx, batchSize, cat.Artists, sink.WriteArtists, &rep.ArtistsWritten); err != nil {
		return fmt.Errorf("pipeline: load artists: %w", err)
	}
	if err := writeBatched(ctx, batchSize, ev.Users, sink.WriteUsers, &rep.UsersWritten); err != nil {
		return fmt.Errorf("pipeline: load users: %w", err)
	}
	if err := writeBatched(ctx, batchSize, ev.Time, sink.WriteTime, &rep.TimeWritten); err != nil {
		return fmt.Errorf("pipeline: load time: %w", err)
	}
	if err := writeBatched(ctx, batchSize, songplays, sink.WriteSongplays, &rep.SongplaysWritten); err != nil {
		return fmt.Errorf("pipeline: load songplays: %w", err)
	}
	return nil
}

func writeBatched[T any](
	ctx context.Context,
	batchSize int,
	rows []T,
	write func(ctx context.Context, rows []T) (int64, error),
	written *int64,
) error {
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := write(ctx, rows[start:end])
		*written += n
		if err != nil {
			return err
		}
		metrics.IncCounter("etl_batches_total", 1, nil)
	}
	return nil
}

func sinkConfig(cfg config.Pipeline) storage.Config {
	out := storage.Config{
		Kind:                   cfg.Storage.Kind,
		StoreAssignsSongplayID: cfg.Transform.SongplayID == transform.IDStore,
	}
	if cfg.Storage.DB != nil {
		out.DSN = os.ExpandEnv(cfg.Storage.DB.DSN)
	}
	if cfg.Storage.Lake != nil {
		out.OutputPath = cfg.Storage.Lake.OutputPath
	}
	return out
}

func (r *Runner) logger() func(format string, v ...any) {
	if r.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return r.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

func observeStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metrics.Labels{"step": step, "status": status}
	metrics.IncCounter("etl_step_total", 1, labels)
	metrics.ObserveHistogram("etl_step_duration_seconds", time.Since(start).Seconds(), labels)
}

func countRecords(kind string, n int) {
	if n == 0 {
		return
	}
	metrics.IncCounter("etl_records_total", float64(n), metrics.Labels{"kind": kind})
}
