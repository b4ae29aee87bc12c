// Package store persists extraction records between pipeline stages so
// reruns are idempotent and the vision pass can skip covered months.
package store

import (
	"context"

	"github.com/sells-group/fedrates-cli/internal/model"
)

// Store is the persistence interface for extraction records, document
// sync state, and run bookkeeping.
type Store interface {
	Migrate(ctx context.Context) error

	// UpsertRecords writes records keyed (survey_date, panel, source).
	// Rewriting the same key replaces the row.
	UpsertRecords(ctx context.Context, recs []model.PercentileRecord) error

	// RecordsBySource returns records for the given sources, every source
	// when none are given, ordered by survey date.
	RecordsBySource(ctx context.Context, sources ...model.Source) ([]model.PercentileRecord, error)

	// DatesWithSource returns the YYYY-MM month keys that have at least
	// one record with data for the source.
	DatesWithSource(ctx context.Context, source model.Source) (map[string]bool, error)

	// CountsBySource tallies stored records per source.
	CountsBySource(ctx context.Context) (map[model.Source]int, error)

	// SaveDocument records a downloaded document and its ETag.
	SaveDocument(ctx context.Context, url, localPath, etag string) error

	// DocumentETag returns the stored ETag for a URL, "" when unknown.
	DocumentETag(ctx context.Context, url string) (string, error)

	// StartRun opens a run row and returns its ID.
	StartRun(ctx context.Context) (string, error)

	// FinishRun closes a run row with its outcome.
	FinishRun(ctx context.Context, runID, status string, recordsWritten int) error

	Close() error
}
