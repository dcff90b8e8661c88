package wirelesstag

import (
	"time"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// batteryValidity bounds how far back the tag list's instantaneous battery
// fraction may be applied as a percentage. Older data points keep a nil
// percentage because the reading does not describe their state.
const batteryValidity = 24 * time.Hour

// Normalize maps raw tag data points onto sensor readings for the device.
// Pure mapping, no I/O.
func Normalize(device model.Device, points []DataPoint, batteryRemaining float64, fetchedAt time.Time) []model.Reading {
	percent := int(batteryRemaining*100 + 0.5)

	readings := make([]model.Reading, 0, len(points))
	for _, p := range points {
		ts := p.Time.UTC()
		r := &model.SensorReading{
			ReadingMeta: model.ReadingMeta{SeriesKey: device.UUID, Timestamp: ts},
			Device:      device,
			Temperature: f64(p.TempDegC),
			Humidity:    f64(p.Cap),
			Lux:         f64(p.Lux),
			Battery:     f64(p.BatteryVolts),
		}
		if fetchedAt.Sub(ts) <= batteryValidity {
			pc := percent
			r.BatteryPercentage = &pc
		}
		readings = append(readings, model.NewSensor(r))
	}
	return readings
}

func f64(v float64) *float64 {
	return &v
}
