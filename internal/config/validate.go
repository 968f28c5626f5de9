package config

import (
	"fmt"
	"strings"
)

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, with a JSON-ish path to the offending field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FormatIssues renders issues as "severity path: message" joined by "; ".
func FormatIssues(issues []Issue) string {
	var b strings.Builder
	for i, iss := range issues {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s %s: %s", iss.Severity, iss.Path, iss.Message)
	}
	return b.String()
}

func errIssue(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)}
}

func warnIssue(path, format string, a ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)}
}

// ValidatePipeline checks a pipeline config for structural problems before a
// run starts. It returns all findings rather than stopping at the first, so
// the operator gets the complete picture in one pass.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if p.Job == "" {
		issues = append(issues, warnIssue("job", "job name is empty; metrics will use the default job tag"))
	}

	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage, p.Transform)...)

	if p.Runtime.BatchSize < 0 {
		issues = append(issues, errIssue("runtime.batch_size", "must be >= 0 (0 selects the default)"))
	}
	if p.Runtime.SourceWorkers < 0 {
		issues = append(issues, errIssue("runtime.source_workers", "must be >= 0 (0 selects the default)"))
	}

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "file":
		if s.File == nil {
			issues = append(issues, errIssue("source.file", "required when source.kind=file"))
			break
		}
		if s.File.CatalogPath == "" {
			issues = append(issues, errIssue("source.file.catalog_path", "required"))
		}
		if s.File.EventsPath == "" {
			issues = append(issues, errIssue("source.file.events_path", "required"))
		}
	case "s3":
		if s.S3 == nil {
			issues = append(issues, errIssue("source.s3", "required when source.kind=s3"))
			break
		}
		if s.S3.Bucket == "" {
			issues = append(issues, errIssue("source.s3.bucket", "required"))
		}
		if s.S3.CatalogPrefix == "" {
			issues = append(issues, errIssue("source.s3.catalog_prefix", "required"))
		}
		if s.S3.EventsPrefix == "" {
			issues = append(issues, errIssue("source.s3.events_prefix", "required"))
		}
		if s.S3.Region == "" {
			issues = append(issues, warnIssue("source.s3.region", "empty; relying on AWS_REGION/shared config"))
		}
	case "":
		issues = append(issues, errIssue("source.kind", "required (file or s3)"))
	default:
		issues = append(issues, errIssue("source.kind", "unknown kind %q", s.Kind))
	}

	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue

	switch t.LocationSource {
	case "", "event", "artist":
	default:
		issues = append(issues, errIssue("transform.location_source", "must be event or artist, got %q", t.LocationSource))
	}

	switch t.SongplayID {
	case "", "sequence", "hash", "store":
	default:
		issues = append(issues, errIssue("transform.songplay_id", "must be sequence, hash or store, got %q", t.SongplayID))
	}

	switch t.Weekday {
	case "", "sunday0", "sunday1":
	default:
		issues = append(issues, errIssue("transform.weekday", "must be sunday0 or sunday1, got %q", t.Weekday))
	}

	return issues
}

func validateStorage(s Storage, t Transform) []Issue {
	var issues []Issue

	switch s.Kind {
	case "postgres", "sqlite", "mssql":
		if s.DB == nil || s.DB.DSN == "" {
			issues = append(issues, errIssue("storage.db.dsn", "required for storage.kind=%s", s.Kind))
		}
	case "parquet":
		if s.Lake == nil || s.Lake.OutputPath == "" {
			issues = append(issues, errIssue("storage.lake.output_path", "required for storage.kind=parquet"))
		}
		// Parquet files have no identity column to defer to.
		if t.SongplayID == "store" {
			issues = append(issues, errIssue("transform.songplay_id", "store is not valid with storage.kind=parquet; use sequence or hash"))
		}
	case "":
		issues = append(issues, errIssue("storage.kind", "required (postgres, sqlite, mssql or parquet)"))
	default:
		issues = append(issues, errIssue("storage.kind", "unknown kind %q", s.Kind))
	}

	return issues
}
