package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// Writer is the dedup & store writer: it collapses byte-identical repeats
// from a batch, partitions by calendar year, stamps ingestion timestamps and
// hands each partition to the store under its year-suffixed index.
type Writer struct {
	store Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewWriter creates a writer over the given store.
func NewWriter(s Store, log *logrus.Entry) *Writer {
	return &Writer{store: s, now: time.Now, log: log}
}

// Store persists the batch under baseName. A write failure for one year
// partition is logged and surfaced but does not roll back partitions already
// written; the first failure is returned after all partitions were attempted.
func (w *Writer) Store(ctx context.Context, baseName string, readings []model.Reading) error {
	if len(readings) == 0 {
		w.log.WithField("index", baseName).Debug("no readings to store")
		return nil
	}

	readings = collapseExact(readings)
	byYear := partitionByYear(readings)

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	ingested := w.now().UTC()
	var firstErr error

	for _, year := range years {
		batch := byYear[year]
		sort.Slice(batch, func(i, j int) bool {
			return batch[i].Meta().Timestamp.Before(batch[j].Meta().Timestamp)
		})
		for _, r := range batch {
			r.Meta().Ingested = ingested
		}

		index := YearIndex(baseName, year)
		w.log.WithFields(logrus.Fields{"index": index, "count": len(batch)}).Info("indexing readings")

		if err := w.store.WriteBatch(ctx, index, batch); err != nil {
			w.log.WithError(err).WithField("index", index).Error("bulk write failed")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "writing partition %s", index)
			}
		}
	}

	if err := w.store.EnsureAlias(ctx, baseName); err != nil {
		w.log.WithError(err).WithField("alias", baseName).Error("alias update failed")
		if firstErr == nil {
			firstErr = errors.Wrapf(err, "ensuring alias %s", baseName)
		}
	}

	return firstErr
}

// collapseExact removes byte-identical repeats from a single batch. This is
// distinct from the (seriesKey, timestamp) uniqueness rule; only documents
// that serialize to exactly the same bytes are collapsed here.
func collapseExact(readings []model.Reading) []model.Reading {
	seen := make(map[string]struct{}, len(readings))
	out := readings[:0:0]
	for _, r := range readings {
		raw, err := json.Marshal(r.Document())
		if err != nil {
			out = append(out, r)
			continue
		}
		if _, dup := seen[string(raw)]; dup {
			continue
		}
		seen[string(raw)] = struct{}{}
		out = append(out, r)
	}
	return out
}

func partitionByYear(readings []model.Reading) map[int][]model.Reading {
	byYear := make(map[int][]model.Reading)
	for _, r := range readings {
		year := r.Meta().Timestamp.UTC().Year()
		byYear[year] = append(byYear[year], r)
	}
	return byYear
}
