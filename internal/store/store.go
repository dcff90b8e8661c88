package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// ErrIntegrity signals that a single-result query returned more than one
// document. It points at a query or index-mapping defect and is never
// silently retried.
var ErrIntegrity = errors.New("single-result query returned multiple documents")

// Hit is the read-back projection of a persisted reading: the store-assigned
// record id, the concrete index it lives in, and the two fields the watermark
// and sweep operations compare on.
type Hit struct {
	ID        string
	Index     string
	SeriesKey string
	Timestamp time.Time
}

// Store is the contract the document store must satisfy. Index arguments may
// name a concrete year index or the year-spanning alias.
type Store interface {
	// MostRecent returns the hits of a size-1 search for the given series,
	// ordered descending by timestamp. A conforming store returns at most
	// one hit; callers treat anything more as an integrity violation.
	MostRecent(ctx context.Context, index, seriesKey string) ([]Hit, error)

	// WriteBatch persists the readings into the given index under their
	// deterministic document ids.
	WriteBatch(ctx context.Context, index string, readings []model.Reading) error

	// EnsureAlias makes the alias baseName cover every baseName-* index.
	EnsureAlias(ctx context.Context, baseName string) error

	// ScanAll streams every reading in the index ordered by timestamp.
	ScanAll(ctx context.Context, index string, fn func(Hit) error) error

	// Delete removes the given hits from their concrete indices.
	Delete(ctx context.Context, hits []Hit) error
}

// DocID derives the document id from the uniqueness key, so a replayed write
// of the same (seriesKey, timestamp) overwrites rather than duplicates.
func DocID(meta *model.ReadingMeta) string {
	return fmt.Sprintf("%s@%d", meta.SeriesKey, meta.Timestamp.UTC().UnixNano())
}

// YearIndex names the calendar-year partition of a base index.
func YearIndex(baseName string, year int) string {
	return fmt.Sprintf("%s-%d", baseName, year)
}
