package store

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sweeper removes persisted readings that share a (seriesKey, timestamp)
// uniqueness key, keeping the first member of each group. This is a
// corrective maintenance pass over a full index, not part of the normal
// per-run ingestion path.
type Sweeper struct {
	store     Store
	chunkSize int
	log       *logrus.Entry
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(s Store, log *logrus.Entry) *Sweeper {
	return &Sweeper{store: s, chunkSize: 500, log: log}
}

// Sweep scans every reading in the index (usually the year-spanning alias),
// groups by the uniqueness key and deletes every group member beyond the
// first. It returns the number of deleted documents.
func (s *Sweeper) Sweep(ctx context.Context, index string) (int, error) {
	seen := make(map[string]struct{})
	var doomed []Hit

	err := s.store.ScanAll(ctx, index, func(h Hit) error {
		key := h.SeriesKey + "@" + strconv.FormatInt(h.Timestamp.UTC().UnixNano(), 10)
		if _, dup := seen[key]; dup {
			doomed = append(doomed, h)
			return nil
		}
		seen[key] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "scanning %s", index)
	}

	if len(doomed) == 0 {
		s.log.WithField("index", index).Info("sweep found no duplicates")
		return 0, nil
	}

	s.log.WithFields(logrus.Fields{"index": index, "duplicates": len(doomed)}).Info("sweeping duplicate readings")

	for start := 0; start < len(doomed); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(doomed) {
			end = len(doomed)
		}
		if err := s.store.Delete(ctx, doomed[start:end]); err != nil {
			return start, errors.Wrapf(err, "deleting duplicates from %s", index)
		}
	}

	return len(doomed), nil
}
