// Package source reads raw catalog and activity-log records from local
// directories or S3 and hands them to the transform as fully materialized
// record sets. All I/O lives here; the transform itself never touches storage.
package source

import (
	"context"
	"fmt"

	"sparkify/internal/config"
	"sparkify/pkg/records"
)

// Reader supplies the two raw input record sets of a run.
//
// Readers must surface JSON null fields as nil values, never as empty
// strings; the transform's filter and dedup gates rely on that.
type Reader interface {
	// ReadCatalog returns all song/artist catalog records.
	ReadCatalog(ctx context.Context) ([]records.Record, error)

	// ReadEvents returns all activity-log records, unfiltered.
	ReadEvents(ctx context.Context) ([]records.Record, error)
}

// New constructs a Reader for the configured source kind.
func New(ctx context.Context, cfg config.Source, sourceWorkers int) (Reader, error) {
	switch cfg.Kind {
	case "file":
		if cfg.File == nil {
			return nil, fmt.Errorf("source: file config missing")
		}
		return &fileReader{
			catalogPath: cfg.File.CatalogPath,
			eventsPath:  cfg.File.EventsPath,
			encoding:    cfg.Options.String("encoding", ""),
		}, nil

	case "s3":
		if cfg.S3 == nil {
			return nil, fmt.Errorf("source: s3 config missing")
		}
		return newS3Reader(ctx, *cfg.S3, cfg.Options, sourceWorkers)

	default:
		return nil, fmt.Errorf("source: unsupported kind %q", cfg.Kind)
	}
}
