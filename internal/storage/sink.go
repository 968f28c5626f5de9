// Package storage defines the backend-agnostic sink interface for the five
// output sets and the factory registry the backends register with.
package storage

import (
	"context"
	"fmt"
	"sync"

	"sparkify/internal/model"
)

// Config is the minimal configuration needed to create a sink.
type Config struct {
	// Kind must match a registered backend kind.
	Kind string

	// DSN is used by the warehouse backends; validation is backend-specific.
	DSN string

	// OutputPath is used by the parquet backend.
	OutputPath string

	// StoreAssignsSongplayID is true when the transform leaves songplay ids
	// to the warehouse identity column. Warehouse backends then omit the
	// column on insert and declare it auto-generated in DDL.
	StoreAssignsSongplayID bool
}

// Sink persists the transform's output sets and owns the write-time conflict
// policy:
//
//   - songs, artists and time rows never overwrite an existing key
//     (first write wins across runs).
//   - users overwrite only the level column on key collision.
//   - songplays append; when ids come from the transform the insert is
//     idempotent on songplay_id. With per-run sequence ids that makes the
//     warehouse a snapshot of one dataset: a different dataset's facts would
//     reuse ids 1..n and be silently skipped, so accumulating warehouses
//     need hash or store ids.
//
// Conflicts are resolved silently, never surfaced as failures.
type Sink interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// EnsureSchema creates tables (or output directories) as needed so that
	// repeated startup is idempotent.
	EnsureSchema(ctx context.Context) error

	WriteSongs(ctx context.Context, rows []model.Song) (int64, error)
	WriteArtists(ctx context.Context, rows []model.Artist) (int64, error)
	WriteUsers(ctx context.Context, rows []model.User) (int64, error)
	WriteTime(ctx context.Context, rows []model.TimeRow) (int64, error)
	WriteSongplays(ctx context.Context, rows []model.Songplay) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a sink backend under a kind (e.g. "postgres").
//
// Call Register from an init() function in a backend package. Registering an
// empty kind, a nil factory, or the same kind twice panics: failing fast
// beats ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Sink using the registered backend factory.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
