package hive

import (
	"sort"

	"github.com/homelab-sensors/sensor-collector/internal/common"
	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// Normalize joins the temperature and battery channels on their epoch-millis
// timestamps. A reading is materialized only for timestamps present in the
// temperature channel; battery attaches where the battery channel has the
// same timestamp and stays nil otherwise. Pure mapping, no I/O.
func Normalize(device model.Device, temps, batteries map[int64]float64) []model.Reading {
	epochs := make([]int64, 0, len(temps))
	for epoch := range temps {
		epochs = append(epochs, epoch)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })

	readings := make([]model.Reading, 0, len(epochs))
	for _, epoch := range epochs {
		temp := temps[epoch]
		r := &model.SensorReading{
			ReadingMeta: model.ReadingMeta{SeriesKey: device.UUID, Timestamp: common.FromEpochMillis(epoch)},
			Device:      device,
			Temperature: &temp,
		}
		if b, ok := batteries[epoch]; ok {
			batt := b
			r.Battery = &batt
		}
		readings = append(readings, model.NewSensor(r))
	}
	return readings
}

// BackfillLiveBattery attaches the hub's current battery percentage to the
// single most recent reading in the batch. The live value is not a time
// series and must not be applied to historical points.
func BackfillLiveBattery(readings []model.Reading, percent int) {
	var latest *model.SensorReading
	for _, r := range readings {
		if r.Kind != model.KindSensor {
			continue
		}
		if latest == nil || r.Sensor.Timestamp.After(latest.Timestamp) {
			latest = r.Sensor
		}
	}
	if latest != nil {
		latest.BatteryPercentage = &percent
	}
}
