package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
	"github.com/homelab-sensors/sensor-collector/internal/store"
)

const timestampLayout = "02-Jan-2006 15:04:05"

// Thresholds configure the health checks.
type Thresholds struct {
	// LowBatteryVolts flags devices whose battery voltage dips below it.
	// The voltage check does not apply to hub devices, whose voltage
	// semantics differ.
	LowBatteryVolts float64

	// LowBatteryPercent flags devices whose battery percentage dips below it.
	LowBatteryPercent int

	// NoDataAfter flags devices silent for longer than this.
	NoDataAfter time.Duration
}

// Analyzer derives health alerts from an ingested batch and the persisted
// watermarks.
type Analyzer struct {
	resolver   *store.Resolver
	thresholds Thresholds
	now        func() time.Time
	log        *logrus.Entry
}

// NewAnalyzer creates an analyzer using the given watermark resolver.
func NewAnalyzer(resolver *store.Resolver, thresholds Thresholds, log *logrus.Entry) *Analyzer {
	return &Analyzer{resolver: resolver, thresholds: thresholds, now: time.Now, log: log}
}

type batteryStats struct {
	device     model.Device
	minVolts   *float64
	minPercent *int
}

// CheckBattery flags every device whose lowest observed battery voltage or
// percentage in the batch sits below the configured thresholds. Alert text
// carries the lowest value seen and the most recent timestamp of the whole
// batch.
func (a *Analyzer) CheckBattery(readings []model.Reading) []model.Alert {
	a.log.Debug("checking battery status for devices")

	perDevice := make(map[string]*batteryStats)
	var order []string

	for _, r := range readings {
		if r.Kind != model.KindSensor {
			continue
		}
		sensor := r.Sensor

		st, ok := perDevice[sensor.Device.UUID]
		if !ok {
			st = &batteryStats{device: sensor.Device}
			perDevice[sensor.Device.UUID] = st
			order = append(order, sensor.Device.UUID)
		}

		// A zero voltage means the tag did not report, not a dead cell.
		if v := sensor.Battery; v != nil && *v > 0 {
			if st.minVolts == nil || *v < *st.minVolts {
				st.minVolts = v
			}
		}
		if p := sensor.BatteryPercentage; p != nil {
			if st.minPercent == nil || *p < *st.minPercent {
				st.minPercent = p
			}
		}
	}

	lastReading := model.MaxTimestamp(readings)

	var alerts []model.Alert
	sort.Strings(order)
	for _, uuid := range order {
		st := perDevice[uuid]

		lowVolts := st.device.Kind != model.DeviceHub &&
			st.minVolts != nil && *st.minVolts < a.thresholds.LowBatteryVolts
		lowPercent := st.minPercent != nil && *st.minPercent < a.thresholds.LowBatteryPercent

		if !lowVolts && !lowPercent {
			continue
		}

		var text string
		if lowVolts {
			text = fmt.Sprintf("Low battery - %.2fv (last reading: %s)", *st.minVolts, lastReading.Format(timestampLayout))
		} else {
			text = fmt.Sprintf("Low battery - %d%% (last reading: %s)", *st.minPercent, lastReading.Format(timestampLayout))
		}

		a.log.WithFields(logrus.Fields{"device": st.device.Name, "alert": text}).Warn("low battery detected")
		alerts = append(alerts, model.Alert{SubjectName: st.device.Name, Text: text})
	}

	return alerts

}

// CheckMissingData re-resolves each device's watermark after the write and
// flags devices silent for longer than the threshold. It deliberately
// re-queries the store instead of reasoning from in-memory state, since the
// watermark must reflect what was actually persisted.
func (a *Analyzer) CheckMissingData(ctx context.Context, indexBase string, devices []model.Device, epoch time.Time) []model.Alert {
	a.log.Debug("checking for missing data from devices")

	var alerts []model.Alert
	for _, device := range devices {
		watermark, err := a.resolver.Resolve(ctx, indexBase, device.UUID, epoch)
		if err != nil {
			a.log.WithError(err).WithField("device", device.Name).Error("watermark re-query failed")
			continue
		}

		silent := a.now().UTC().Sub(watermark)
		a.log.WithFields(logrus.Fields{"device": device.Name, "minutes": int(silent.Minutes())}).Debug("device last updated")

		if silent > a.thresholds.NoDataAfter {
			alerts = append(alerts, model.Alert{
				SubjectName: device.Name,
				Text:        fmt.Sprintf("No data for %d minutes.", int(silent.Minutes())),
			})
		}
	}
	return alerts
}
