package hive

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

// Config holds the hub source settings.
type Config struct {
	Username  string
	Password  string
	IndexBase string
	Epoch     time.Time
	Policy    source.Policy
}

// Source syncs the hub's temperature channel, joined with its battery
// channel, as a single series identified by the temperature channel UUID.
type Source struct {
	cfg        Config
	client     *Client
	resolver   *store.Resolver
	controller *source.Controller
	log        *logrus.Entry
}

// New creates the hub source.
func New(cfg Config, client *Client, resolver *store.Resolver, log *logrus.Entry) *Source {
	return &Source{
		cfg:        cfg,
		client:     client,
		resolver:   resolver,
		controller: source.NewController(cfg.Policy, log),
		log:        log,
	}
}

func (s *Source) Name() string { return "hive" }

func (s *Source) IndexBase() string { return s.cfg.IndexBase }

func (s *Source) EpochDefault() time.Time { return s.cfg.Epoch }

// Collect signs in, discovers the temperature and battery channels, then
// syncs from the series watermark. The live battery percentage is back-filled
// onto the most recent synthesized reading once the sync has produced data.
func (s *Source) Collect(ctx context.Context) (source.Batch, error) {
	if err := s.client.SignIn(ctx, s.cfg.Username, s.cfg.Password); err != nil {
		return source.Batch{}, err
	}

	channels, err := s.client.Channels(ctx)
	if err != nil {
		return source.Batch{}, err
	}
	tempCh, ok := ChannelByType(channels, ChannelTemperature)
	if !ok {
		return source.Batch{}, errors.New("hub exposes no temperature channel")
	}
	battCh, hasBattery := ChannelByType(channels, ChannelBattery)

	device := model.Device{UUID: tempCh.UUID(), Name: "Hive", Kind: model.DeviceHub}
	batch := source.Batch{Devices: []model.Device{device}}

	from, err := s.resolver.Resolve(ctx, s.cfg.IndexBase, device.UUID, s.cfg.Epoch)
	if err != nil {
		s.log.WithError(err).Error("watermark resolution failed, abandoning series")
		return batch, nil
	}

	readings, err := s.controller.Sync(ctx, device.UUID, from, func(ctx context.Context, from, to time.Time) ([]model.Reading, error) {
		temps, err := s.client.Values(ctx, tempCh.ID, from, to)
		if err != nil {
			return nil, err
		}
		batteries := map[int64]float64{}
		if hasBattery {
			if batteries, err = s.client.Values(ctx, battCh.ID, from, to); err != nil {
				return nil, err
			}
		}
		return Normalize(device, temps, batteries), nil
	})
	if err != nil {
		s.log.WithError(err).Error("fetch failed, abandoning series for this run")
		return batch, nil
	}

	if len(readings) > 0 {
		// The current battery level only describes the newest point.
		if percent, ok, err := s.client.LiveBattery(ctx); err != nil {
			s.log.WithError(err).Warn("live battery query failed")
		} else if ok {
			BackfillLiveBattery(readings, percent)
		}
		s.log.WithFields(logrus.Fields{"count": len(readings), "latest": model.MaxTimestamp(readings)}).Info("found readings")
	}

	batch.Readings = readings
	return batch, nil
}
