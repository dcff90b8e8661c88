package health

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "test")
}

var defaultThresholds = Thresholds{
	LowBatteryVolts:   1.0,
	LowBatteryPercent: 15,
	NoDataAfter:       60 * time.Minute,
}

func newTestAnalyzer(mem *store.Memory) *Analyzer {
	return NewAnalyzer(store.NewResolver(mem, testLog()), defaultThresholds, testLog())
}

func sensorReading(device model.Device, ts time.Time, volts *float64, percent *int) model.Reading {
	return model.NewSensor(&model.SensorReading{
		ReadingMeta:       model.ReadingMeta{SeriesKey: device.UUID, Timestamp: ts},
		Device:            device,
		Battery:           volts,
		BatteryPercentage: percent,
	})
}

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

var (
	tagDevice = model.Device{UUID: "tag-1", Name: "Garage", Kind: model.DeviceTag}
	hubDevice = model.Device{UUID: "hub-1", Name: "Hallway", Kind: model.DeviceHub}
)

func TestCheckBatteryFlagsLowVoltage(t *testing.T) {
	a := newTestAnalyzer(store.NewMemory())
	latest := time.Date(2023, 8, 14, 10, 30, 0, 0, time.UTC)

	alerts := a.CheckBattery([]model.Reading{
		sensorReading(tagDevice, latest.Add(-10*time.Minute), f64(0.8), nil),
		sensorReading(tagDevice, latest, f64(1.2), nil),
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, "Garage", alerts[0].SubjectName)
	assert.Equal(t, "Low battery - 0.80v (last reading: 14-Aug-2023 10:30:00)", alerts[0].Text)
}

func TestCheckBatteryHealthyDeviceRaisesNothing(t *testing.T) {
	a := newTestAnalyzer(store.NewMemory())
	ts := time.Date(2023, 8, 14, 10, 0, 0, 0, time.UTC)

	alerts := a.CheckBattery([]model.Reading{
		sensorReading(tagDevice, ts, f64(2.9), i(80)),
	})
	assert.Empty(t, alerts)
}

func TestCheckBatteryIgnoresZeroVoltage(t *testing.T) {
	a := newTestAnalyzer(store.NewMemory())
	ts := time.Date(2023, 8, 14, 10, 0, 0, 0, time.UTC)

	alerts := a.CheckBattery([]model.Reading{
		sensorReading(tagDevice, ts, f64(0), nil),
	})
	assert.Empty(t, alerts)
}

func TestCheckBatteryVoltageRuleSkipsHubDevices(t *testing.T) {
	a := newTestAnalyzer(store.NewMemory())
	ts := time.Date(2023, 8, 14, 10, 0, 0, 0, time.UTC)

	alerts := a.CheckBattery([]model.Reading{
		sensorReading(hubDevice, ts, f64(0.5), nil),
	})
	assert.Empty(t, alerts)
}

func TestCheckBatteryFlagsLowPercentageOnHub(t *testing.T) {
	a := newTestAnalyzer(store.NewMemory())
	ts := time.Date(2023, 8, 14, 10, 0, 0, 0, time.UTC)

	alerts := a.CheckBattery([]model.Reading{
		sensorReading(hubDevice, ts, nil, i(10)),
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, "Hallway", alerts[0].SubjectName)
	assert.Contains(t, alerts[0].Text, "10%")
}

func TestCheckMissingDataFlagsSilentDevice(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2023, 8, 14, 12, 0, 0, 0, time.UTC)
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	// tag-1 last persisted 90 minutes ago, hub-1 ten minutes ago.
	mem.Seed("sensors-2023", store.Hit{ID: "a", SeriesKey: "tag-1", Timestamp: now.Add(-90 * time.Minute)})
	mem.Seed("sensors-2023", store.Hit{ID: "b", SeriesKey: "hub-1", Timestamp: now.Add(-10 * time.Minute)})

	a := newTestAnalyzer(mem)
	a.now = func() time.Time { return now }

	alerts := a.CheckMissingData(context.Background(), "sensors", []model.Device{tagDevice, hubDevice}, epoch)

	require.Len(t, alerts, 1)
	assert.Equal(t, "Garage", alerts[0].SubjectName)
	// The resolved watermark sits one second past the last persisted reading.
	assert.Equal(t, "No data for 89 minutes.", alerts[0].Text)
}

func TestCheckMissingDataUsesEpochForUnknownDevice(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2023, 8, 14, 12, 0, 0, 0, time.UTC)
	epoch := now.Add(-30 * time.Minute)

	a := newTestAnalyzer(mem)
	a.now = func() time.Time { return now }

	// Never-persisted device falls back to the epoch; a recent epoch keeps
	// a freshly provisioned device from alerting immediately.
	alerts := a.CheckMissingData(context.Background(), "sensors", []model.Device{tagDevice}, epoch)
	assert.Empty(t, alerts)
}
