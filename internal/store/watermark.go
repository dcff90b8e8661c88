package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Resolver answers "where does the next fetch window for this series start".
type Resolver struct {
	store Store
	log   *logrus.Entry
}

// NewResolver creates a watermark resolver over the given store.
func NewResolver(s Store, log *logrus.Entry) *Resolver {
	return &Resolver{store: s, log: log}
}

// Resolve queries the most recent persisted reading for the series and
// returns its timestamp advanced by one second, so the next window starts
// strictly after the last persisted point. If the series has never been
// persisted the fallback epoch is returned. A store that hands back more
// than one document for the size-1 query fails with ErrIntegrity.
func (r *Resolver) Resolve(ctx context.Context, index, seriesKey string, fallback time.Time) (time.Time, error) {
	hits, err := r.store.MostRecent(ctx, index, seriesKey)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "watermark query for series %q", seriesKey)
	}

	switch {
	case len(hits) > 1:
		return time.Time{}, errors.Wrapf(ErrIntegrity, "series %q returned %d documents", seriesKey, len(hits))
	case len(hits) == 1:
		wm := hits[0].Timestamp.UTC().Add(time.Second)
		r.log.WithFields(logrus.Fields{"series": seriesKey, "watermark": wm}).Debug("resolved high water mark")
		return wm, nil
	}

	r.log.WithFields(logrus.Fields{"series": seriesKey, "epoch": fallback}).Debug("no persisted readings, using epoch default")
	return fallback.UTC(), nil
}
