package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sparkify/pkg/records"
)

// fileReader walks two local directory trees for *.json files. The raw
// datasets nest files several levels deep (song_data/A/A/A/..., and
// log_data/<year>/<month>/...), so the walk is recursive and ordered by path
// for deterministic record ordering.
type fileReader struct {
	catalogPath string
	eventsPath  string
	encoding    string
}

func (r *fileReader) ReadCatalog(ctx context.Context) ([]records.Record, error) {
	return r.readTree(ctx, r.catalogPath, "")
}

func (r *fileReader) ReadEvents(ctx context.Context) ([]records.Record, error) {
	return r.readTree(ctx, r.eventsPath, r.encoding)
}

func (r *fileReader) readTree(ctx context.Context, root, encoding string) ([]records.Record, error) {
	var out []records.Record

	// WalkDir visits entries in lexical order, which keeps record ordering
	// stable across runs.
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		recs, err := readJSONFile(path, encoding)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, recs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readJSONFile(path, encoding string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd, err := decodeReader(f, encoding)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(rd)
}
