package source

import (
	"context"
	"time"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// DefaultEpoch is the watermark fallback for series that have never been
// persisted. The weather source carries its own configured start date.
var DefaultEpoch = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

// Batch is the outcome of one source's sync: the readings accumulated across
// all of its series plus every device observed during the run. Stored marks
// batches the source has already flushed to the store itself (the weather
// source does, to survive a crash mid-pagination).
type Batch struct {
	Readings []model.Reading
	Devices  []model.Device
	Stored   bool
}

// Source is one upstream vendor pipeline: sign in, resolve watermarks,
// fetch-until-caught-up and normalize. A failed series inside Collect is
// logged and skipped; an error return means the whole source failed this run.
type Source interface {
	Name() string

	// IndexBase names the index family this source persists into.
	IndexBase() string

	// EpochDefault is the watermark fallback for this source's series.
	EpochDefault() time.Time

	Collect(ctx context.Context) (Batch, error)
}
