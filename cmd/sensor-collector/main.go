package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/collector"
	"github.com/homelab-sensors/sensor-collector/internal/config"
	"github.com/homelab-sensors/sensor-collector/internal/health"
	"github.com/homelab-sensors/sensor-collector/internal/notify"
	"github.com/homelab-sensors/sensor-collector/internal/scheduler"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/source/hive"
	"github.com/homelab-sensors/sensor-collector/internal/source/weather"
	"github.com/homelab-sensors/sensor-collector/internal/source/wirelesstag"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

func main() {
	settingsPath := config.DefaultSettingsPath
	if len(os.Args) > 1 {
		settingsPath = os.Args[1]
	}

	cfg, err := config.Load(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to initialise settings: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to initialise logging: %v\n", err)
		os.Exit(1)
	}

	es, err := store.NewElastic(cfg.ElasticServer, log.WithField("component", "store"))
	if err != nil {
		log.WithError(err).Error("unable to initialise store client")
		os.Exit(1)
	}

	resolver := store.NewResolver(es, log.WithField("component", "watermark"))
	writer := store.NewWriter(es, log.WithField("component", "writer"))
	sweeper := store.NewSweeper(es, log.WithField("component", "sweep"))

	throttle := time.Duration(cfg.ThrottleSecs) * time.Second
	caughtUp := time.Duration(cfg.CaughtUpWindowMins) * time.Minute

	var sources []source.Source

	if cfg.Hive != nil {
		slog := log.WithField("source", "hive")
		sources = append(sources, hive.New(hive.Config{
			Username:  cfg.Hive.Username,
			Password:  cfg.Hive.Password,
			IndexBase: cfg.IndexName,
			Epoch:     source.DefaultEpoch,
			Policy: source.Policy{
				Throttle:      throttle,
				MaxCalls:      cfg.MaxFetchCalls,
				CaughtUpUnder: caughtUp,
			},
		}, hive.NewClient(slog), resolver, slog))
	}

	if cfg.WirelessTag != nil {
		slog := log.WithField("source", "wirelesstag")
		sources = append(sources, wirelesstag.New(wirelesstag.Config{
			Username:  cfg.WirelessTag.Username,
			Password:  cfg.WirelessTag.Password,
			IndexBase: cfg.IndexName,
			Epoch:     source.DefaultEpoch,
			Policy: source.Policy{
				MaxWindow:     time.Duration(cfg.TagMaxWindowDays) * 24 * time.Hour,
				Throttle:      throttle,
				MaxCalls:      cfg.MaxFetchCalls,
				CaughtUpUnder: caughtUp,
			},
		}, wirelesstag.NewClient(cfg.WirelessTag.ServiceURL, slog), resolver, slog))
	}

	if cfg.Weather != nil {
		slog := log.WithField("source", "weather")
		sources = append(sources, weather.New(weather.Config{
			Location:  cfg.Weather.City,
			IndexBase: cfg.WeatherIndexName,
			Epoch:     cfg.Weather.Start(),
			Policy: source.Policy{
				Throttle: time.Duration(cfg.WeatherThrottleSecs) * time.Second,
				MaxCalls: cfg.WeatherMaxCalls,
			},
			FlushEvery: cfg.WeatherFlushEveryDays,
		}, weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Country, cfg.Weather.City, slog), resolver, writer, slog))
	}

	analyzer := health.NewAnalyzer(resolver, health.Thresholds{
		LowBatteryVolts:   *cfg.LowBatteryThreshold,
		LowBatteryPercent: *cfg.LowBatteryPercent,
		NoDataAfter:       time.Duration(*cfg.NoDataWarningMins) * time.Minute,
	}, log.WithField("component", "health"))

	var channels []notify.Notifier
	if cfg.Email != nil {
		channels = append(channels, notify.NewEmail(notify.EmailConfig{
			SMTPServer:  cfg.Email.SMTPServer,
			SMTPPort:    cfg.Email.SMTPPort,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			FromAddress: cfg.Email.FromAddress,
			ToAddress:   cfg.Email.ToAddress,
			ToName:      cfg.Email.ToName,
		}, log.WithField("component", "email")))
	}
	if cfg.Pushover != nil {
		channels = append(channels, notify.NewPush(cfg.Pushover.Token, cfg.Pushover.UserKey, log.WithField("component", "push")))
	}

	runner := collector.New(
		sources,
		writer,
		sweeper,
		analyzer,
		notify.NewFanout(log.WithField("component", "notify"), channels...),
		collector.Options{SweepOnRun: cfg.DedupeSweepOnRun},
		log.WithField("component", "collector"),
	)

	if cfg.RefreshPeriodMins > 0 {
		sched := scheduler.New(time.Duration(cfg.RefreshPeriodMins)*time.Minute, runner, log.WithField("component", "scheduler"))
		if err := sched.Start(); err != nil {
			log.WithError(err).Error("unable to start scheduler")
			os.Exit(1)
		}
		return
	}

	runner.Run(context.Background())
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if cfg.LogLocation != "" {
		f, err := os.OpenFile(cfg.LogLocation, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	return log, nil
}
