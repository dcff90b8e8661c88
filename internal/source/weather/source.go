package weather

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

// Config holds the weather source settings.
type Config struct {
	Location   string
	IndexBase  string
	Epoch      time.Time
	Policy     source.Policy
	FlushEvery int
}

// Source syncs the weather vendor one calendar day per call, flushing partial
// results to the store as it pages so a crash or the call ceiling cannot lose
// fetched data. Its batches are therefore already stored when returned.
type Source struct {
	cfg      Config
	client   *Client
	resolver *store.Resolver
	writer   *store.Writer
	pager    *source.DayPager
	log      *logrus.Entry
}

// New creates the weather source. The writer is used for mid-pagination
// flushes as well as the final remainder.
func New(cfg Config, client *Client, resolver *store.Resolver, writer *store.Writer, log *logrus.Entry) *Source {
	s := &Source{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		writer:   writer,
		log:      log,
	}
	s.pager = source.NewDayPager(cfg.Policy, cfg.FlushEvery, s.flush, log)
	return s
}

func (s *Source) Name() string { return "weather" }

func (s *Source) IndexBase() string { return s.cfg.IndexBase }

func (s *Source) EpochDefault() time.Time { return s.cfg.Epoch }

func (s *Source) flush(ctx context.Context, readings []model.Reading) error {
	return s.writer.Store(ctx, s.cfg.IndexBase, readings)
}

// Collect pages from the observation watermark up to today. Daily summaries
// ride along with the observations of their day.
func (s *Source) Collect(ctx context.Context) (source.Batch, error) {
	device := model.Device{
		UUID:     model.WeatherSeriesKey,
		Name:     "Weather",
		Kind:     model.DeviceWeatherStation,
		Location: s.cfg.Location,
	}
	batch := source.Batch{Devices: []model.Device{device}, Stored: true}

	from, err := s.resolver.Resolve(ctx, s.cfg.IndexBase, model.WeatherSeriesKey, s.cfg.Epoch)
	if err != nil {
		s.log.WithError(err).Error("watermark resolution failed, abandoning series")
		return batch, nil
	}

	readings, err := s.pager.Sync(ctx, model.WeatherSeriesKey, from, func(ctx context.Context, day, _ time.Time) ([]model.Reading, error) {
		history, err := s.client.History(ctx, day)
		if err != nil {
			return nil, err
		}
		return Normalize(history), nil
	})
	if err != nil {
		// Everything fetched before the failure is already flushed; the
		// watermark resumes from it next run.
		s.log.WithError(err).Error("fetch failed, abandoning series for this run")
	}

	if len(readings) > 0 {
		s.log.WithFields(logrus.Fields{"count": len(readings), "latest": model.MaxTimestamp(readings)}).Info("found readings")
	}
	batch.Readings = readings
	return batch, nil
}
