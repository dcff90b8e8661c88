package wirelesstag

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

// Config holds the wireless tag source settings.
type Config struct {
	Username  string
	Password  string
	IndexBase string
	Epoch     time.Time
	Policy    source.Policy
}

// tagAPI is the slice of the vendor client the source drives.
type tagAPI interface {
	SignIn(ctx context.Context, email, password string) error
	Tags(ctx context.Context) ([]TagInfo, error)
	RawData(ctx context.Context, uuid string, from, to time.Time) ([]DataPoint, error)
}

// Source syncs every registered tag as an independent series.
type Source struct {
	cfg        Config
	client     tagAPI
	resolver   *store.Resolver
	controller *source.Controller
	now        func() time.Time
	log        *logrus.Entry
}

// New creates the wireless tag source.
func New(cfg Config, client tagAPI, resolver *store.Resolver, log *logrus.Entry) *Source {
	return &Source{
		cfg:        cfg,
		client:     client,
		resolver:   resolver,
		controller: source.NewController(cfg.Policy, log),
		now:        time.Now,
		log:        log,
	}
}

func (s *Source) Name() string { return "wirelesstag" }

func (s *Source) IndexBase() string { return s.cfg.IndexBase }

func (s *Source) EpochDefault() time.Time { return s.cfg.Epoch }

// Collect signs in, enumerates the registered tags and syncs each one from
// its own watermark. A failed series is logged and skipped; the remaining
// tags still sync.
func (s *Source) Collect(ctx context.Context) (source.Batch, error) {
	if err := s.client.SignIn(ctx, s.cfg.Username, s.cfg.Password); err != nil {
		return source.Batch{}, err
	}

	tags, err := s.client.Tags(ctx)
	if err != nil {
		return source.Batch{}, errors.Wrap(err, "enumerating tags")
	}

	var batch source.Batch
	for _, tag := range tags {
		device := model.Device{UUID: tag.UUID, Name: tag.Name, Kind: model.DeviceTag}
		batch.Devices = append(batch.Devices, device)

		log := s.log.WithField("series", tag.UUID)

		from, err := s.resolver.Resolve(ctx, s.cfg.IndexBase, tag.UUID, s.cfg.Epoch)
		if err != nil {
			log.WithError(err).Error("watermark resolution failed, abandoning series")
			continue
		}

		fetchedAt := s.now().UTC()
		readings, err := s.controller.Sync(ctx, tag.UUID, from, func(ctx context.Context, from, to time.Time) ([]model.Reading, error) {
			points, err := s.client.RawData(ctx, tag.UUID, from, to)
			if err != nil {
				return nil, err
			}
			return Normalize(device, points, tag.BatteryRemaining, fetchedAt), nil
		})
		if err != nil {
			log.WithError(err).Error("fetch failed, abandoning series for this run")
			continue
		}

		if len(readings) > 0 {
			log.WithFields(logrus.Fields{"count": len(readings), "latest": model.MaxTimestamp(readings)}).Info("found readings")
		}
		batch.Readings = append(batch.Readings, readings...)
	}

	return batch, nil
}
