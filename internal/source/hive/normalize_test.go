package hive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab-sensors/sensor-collector/internal/common"
	"github.com/homelab-sensors/sensor-collector/internal/model"
)

var hubDevice = model.Device{
	UUID:     "hub-1234",
	Name:     "Hallway",
	Kind:     model.DeviceHub,
	Location: "hallway",
}

func TestNormalizeJoinsChannelsOnTimestamp(t *testing.T) {
	t1 := time.Date(2023, 8, 14, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	temps := map[int64]float64{
		common.ToEpochMillis(t1): 20.5,
		common.ToEpochMillis(t2): 20.7,
	}
	batteries := map[int64]float64{
		common.ToEpochMillis(t1): 2.85,
	}

	readings := Normalize(hubDevice, temps, batteries)
	require.Len(t, readings, 2)

	first := readings[0].Sensor
	assert.Equal(t, t1, first.Timestamp)
	assert.Equal(t, 20.5, *first.Temperature)
	require.NotNil(t, first.Battery)
	assert.Equal(t, 2.85, *first.Battery)

	second := readings[1].Sensor
	assert.Equal(t, t2, second.Timestamp)
	assert.Equal(t, 20.7, *second.Temperature)
	assert.Nil(t, second.Battery)
}

func TestNormalizeIgnoresBatteryOnlyTimestamps(t *testing.T) {
	t1 := time.Date(2023, 8, 14, 9, 0, 0, 0, time.UTC)

	readings := Normalize(hubDevice, nil, map[int64]float64{common.ToEpochMillis(t1): 2.85})
	assert.Empty(t, readings)
}

func TestNormalizeOrdersReadingsByTimestamp(t *testing.T) {
	base := time.Date(2023, 8, 14, 9, 0, 0, 0, time.UTC)
	temps := map[int64]float64{
		common.ToEpochMillis(base.Add(10 * time.Minute)): 21.0,
		common.ToEpochMillis(base):                       20.0,
		common.ToEpochMillis(base.Add(5 * time.Minute)):  20.5,
	}

	readings := Normalize(hubDevice, temps, nil)
	require.Len(t, readings, 3)
	for i := 1; i < len(readings); i++ {
		assert.True(t, readings[i-1].Meta().Timestamp.Before(readings[i].Meta().Timestamp))
	}
}

func TestBackfillLiveBatteryTargetsMostRecentReading(t *testing.T) {
	base := time.Date(2023, 8, 14, 9, 0, 0, 0, time.UTC)
	temps := map[int64]float64{
		common.ToEpochMillis(base):                       20.0,
		common.ToEpochMillis(base.Add(5 * time.Minute)):  20.5,
		common.ToEpochMillis(base.Add(10 * time.Minute)): 21.0,
	}

	readings := Normalize(hubDevice, temps, nil)
	BackfillLiveBattery(readings, 37)

	require.Len(t, readings, 3)
	assert.Nil(t, readings[0].Sensor.BatteryPercentage)
	assert.Nil(t, readings[1].Sensor.BatteryPercentage)
	require.NotNil(t, readings[2].Sensor.BatteryPercentage)
	assert.Equal(t, 37, *readings[2].Sensor.BatteryPercentage)
}

func TestBackfillLiveBatteryNoReadings(t *testing.T) {
	assert.NotPanics(t, func() { BackfillLiveBattery(nil, 37) })
}

func TestChannelByTypeMatchesPrefixCaseInsensitively(t *testing.T) {
	channels := []Channel{
		{ID: "Temperature@hub-1234"},
		{ID: "battery@hub-1234"},
	}

	ch, ok := ChannelByType(channels, ChannelTemperature)
	require.True(t, ok)
	assert.Equal(t, "hub-1234", ch.UUID())

	_, ok = ChannelByType(channels, "motion")
	assert.False(t, ok)
}
