package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/health"
	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/notify"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

// Options tune a run.
type Options struct {
	// SweepOnRun runs the duplicate sweep against each source's index
	// family after its readings are stored.
	SweepOnRun bool
}

// Collector sequences one full collection run: every configured source in
// order, each isolated from the failures of the others, followed by a single
// alert notification.
type Collector struct {
	sources  []source.Source
	writer   *store.Writer
	sweeper  *store.Sweeper
	analyzer *health.Analyzer
	notifier notify.Notifier
	opts     Options
	log      *logrus.Entry
}

// New creates a collector over the configured sources.
func New(sources []source.Source, writer *store.Writer, sweeper *store.Sweeper, analyzer *health.Analyzer, notifier notify.Notifier, opts Options, log *logrus.Entry) *Collector {
	return &Collector{
		sources:  sources,
		writer:   writer,
		sweeper:  sweeper,
		analyzer: analyzer,
		notifier: notifier,
		opts:     opts,
		log:      log,
	}
}

// Run executes one pass: sync, store, health-check and finally notify. A
// failure anywhere in one source's pipeline never prevents the remaining
// sources from running and being persisted.
func (c *Collector) Run(ctx context.Context) {
	var alerts []model.Alert

	for _, src := range c.sources {
		log := c.log.WithField("source", src.Name())
		log.Info("starting source sync")

		batch, err := src.Collect(ctx)
		if err != nil {
			log.WithError(err).Error("source failed, continuing with remaining sources")
			continue
		}

		if !batch.Stored {
			if err := c.writer.Store(ctx, src.IndexBase(), batch.Readings); err != nil {
				log.WithError(err).Error("storing readings failed")
			}
		}

		if c.opts.SweepOnRun {
			if removed, err := c.sweeper.Sweep(ctx, src.IndexBase()); err != nil {
				log.WithError(err).Error("duplicate sweep failed")
			} else if removed > 0 {
				log.WithField("removed", removed).Info("duplicate sweep removed readings")
			}
		}

		alerts = append(alerts, c.analyzer.CheckBattery(batch.Readings)...)
		alerts = append(alerts, c.analyzer.CheckMissingData(ctx, src.IndexBase(), batch.Devices, src.EpochDefault())...)
	}

	if len(alerts) > 0 {
		if err := c.notifier.Send(ctx, alerts); err != nil {
			c.log.WithError(err).Error("alert notification failed")
		}
	}

	c.log.Info("run complete")
}
