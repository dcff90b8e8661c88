package collector

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab-sensors/sensor-collector/internal/health"
	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/source"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

type fakeSource struct {
	name  string
	base  string
	batch source.Batch
	err   error
}

func (s *fakeSource) Name() string            { return s.name }
func (s *fakeSource) IndexBase() string       { return s.base }
func (s *fakeSource) EpochDefault() time.Time { return source.DefaultEpoch }
func (s *fakeSource) Collect(context.Context) (source.Batch, error) {
	return s.batch, s.err
}

type captureNotifier struct {
	alerts [][]model.Alert
}

func (n *captureNotifier) Send(_ context.Context, alerts []model.Alert) error {
	n.alerts = append(n.alerts, alerts)
	return nil
}

func lowBatteryReading(ts time.Time) model.Reading {
	volts := 0.8
	return model.NewSensor(&model.SensorReading{
		ReadingMeta: model.ReadingMeta{SeriesKey: "tag-1", Timestamp: ts},
		Device:      model.Device{UUID: "tag-1", Name: "Garage", Kind: model.DeviceTag},
		Battery:     &volts,
	})
}

func newRunFixture(mem *store.Memory) (*store.Writer, *store.Sweeper, *health.Analyzer) {
	log := testLog()
	thresholds := health.Thresholds{LowBatteryVolts: 1.0, LowBatteryPercent: 15, NoDataAfter: time.Hour}
	return store.NewWriter(mem, log),
		store.NewSweeper(mem, log),
		health.NewAnalyzer(store.NewResolver(mem, log), thresholds, log)
}

func TestRunStoresEachSourceBatch(t *testing.T) {
	mem := store.NewMemory()
	writer, sweeper, analyzer := newRunFixture(mem)
	notifier := &captureNotifier{}

	ts := time.Now().UTC().Add(-5 * time.Minute)
	src := &fakeSource{name: "tags", base: "sensors", batch: source.Batch{
		Readings: []model.Reading{lowBatteryReading(ts)},
		Devices:  []model.Device{{UUID: "tag-1", Name: "Garage", Kind: model.DeviceTag}},
	}}

	New([]source.Source{src}, writer, sweeper, analyzer, notifier, Options{}, testLog()).Run(context.Background())

	assert.Equal(t, 1, mem.Count("sensors"))
	// The low-voltage reading produces exactly one alert delivery.
	require.Len(t, notifier.alerts, 1)
	require.Len(t, notifier.alerts[0], 1)
	assert.Equal(t, "Garage", notifier.alerts[0][0].SubjectName)
}

func TestRunSkipsStoreForSelfFlushedBatches(t *testing.T) {
	mem := store.NewMemory()
	writer, sweeper, analyzer := newRunFixture(mem)

	ts := time.Now().UTC()
	temp := 17.0
	src := &fakeSource{name: "weather", base: "weather", batch: source.Batch{
		Readings: []model.Reading{model.NewWeather(&model.WeatherReading{
			ReadingMeta: model.ReadingMeta{SeriesKey: model.WeatherSeriesKey, Timestamp: ts},
			Temperature: temp,
		})},
		Stored: true,
	}}

	New([]source.Source{src}, writer, sweeper, analyzer, &captureNotifier{}, Options{}, testLog()).Run(context.Background())

	assert.Equal(t, 0, mem.Count("weather"))
}

func TestRunContinuesPastFailedSource(t *testing.T) {
	mem := store.NewMemory()
	writer, sweeper, analyzer := newRunFixture(mem)

	ts := time.Now().UTC()
	broken := &fakeSource{name: "hive", base: "sensors", err: errors.New("sign-in rejected")}
	working := &fakeSource{name: "tags", base: "sensors", batch: source.Batch{
		Readings: []model.Reading{lowBatteryReading(ts)},
	}}

	New([]source.Source{broken, working}, writer, sweeper, analyzer, &captureNotifier{}, Options{}, testLog()).Run(context.Background())

	assert.Equal(t, 1, mem.Count("sensors"))
}

func TestRunSweepsWhenConfigured(t *testing.T) {
	mem := store.NewMemory()
	writer, sweeper, analyzer := newRunFixture(mem)

	ts := time.Date(2023, 8, 14, 9, 0, 0, 0, time.UTC)
	mem.Seed("sensors-2023", store.Hit{ID: "legacy-1", SeriesKey: "tag-9", Timestamp: ts})
	mem.Seed("sensors-2023", store.Hit{ID: "legacy-2", SeriesKey: "tag-9", Timestamp: ts})

	src := &fakeSource{name: "tags", base: "sensors"}
	New([]source.Source{src}, writer, sweeper, analyzer, &captureNotifier{}, Options{SweepOnRun: true}, testLog()).Run(context.Background())

	assert.Equal(t, 1, mem.Count("sensors"))
}

func TestRunQuietWhenHealthy(t *testing.T) {
	mem := store.NewMemory()
	writer, sweeper, analyzer := newRunFixture(mem)
	notifier := &captureNotifier{}

	src := &fakeSource{name: "tags", base: "sensors"}
	New([]source.Source{src}, writer, sweeper, analyzer, notifier, Options{}, testLog()).Run(context.Background())

	assert.Empty(t, notifier.alerts)
}
