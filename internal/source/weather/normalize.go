package weather

import (
	"fmt"
	"strconv"
	"time"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// Normalize maps one day of vendor history onto weather readings and daily
// summaries. Numeric fields that fail to parse default to 0.0 rather than
// failing the batch; records with an unparseable date are dropped. Pure
// mapping, no I/O.
func Normalize(h *History) []model.Reading {
	readings := make([]model.Reading, 0, len(h.Observations)+len(h.DailySummary))

	for _, obs := range h.Observations {
		ts, ok := parseDate(obs.Date, obs.Date.Hour, obs.Date.Min)
		if !ok {
			continue
		}

		r := &model.WeatherReading{
			ReadingMeta:   model.ReadingMeta{SeriesKey: model.WeatherSeriesKey, Timestamp: ts},
			Temperature:   safeParse(obs.Tempm),
			Humidity:      safeParse(obs.Hum),
			WindSpeed:     safeParse(obs.Wspdm),
			WindDirection: obs.Wdire,
			Thunder:       obs.Thunder == "1",
			Fog:           obs.Fog == "1",
			Hail:          obs.Hail == "1",
		}
		if obs.Rain == "1" {
			r.Rainfall = safeParse(obs.Precipm)
		}
		if obs.Snow == "1" {
			r.Snowfall = safeParse(obs.Precipm)
		}
		readings = append(readings, model.NewWeather(r))
	}

	for _, sum := range h.DailySummary {
		ts, ok := parseDate(sum.Date, "00", "00")
		if !ok {
			continue
		}

		readings = append(readings, model.NewWeatherSummary(&model.WeatherSummary{
			ReadingMeta:     model.ReadingMeta{SeriesKey: model.WeatherSummarySeriesKey, Timestamp: ts},
			MaxTempC:        safeParse(sum.Maxtempm),
			MinTempC:        safeParse(sum.Mintempm),
			MaxHumidity:     safeParse(sum.Maxhumidity),
			MinHumidity:     safeParse(sum.Minhumidity),
			MaxWindSpeedKMH: safeParse(sum.Maxwspdm),
			MinWindSpeedKMH: safeParse(sum.Minwspdm),
			RainfallMM:      safeParse(sum.Precipm),
			SnowfallMM:      safeParse(sum.Snowfallm),
		}))
	}

	return readings
}

func parseDate(d Date, hour, min string) (time.Time, bool) {
	full := fmt.Sprintf("%s/%s/%s %s:%s:00", d.Year, d.Mon, d.Mday, hour, min)
	ts, err := time.ParseInLocation("2006/01/02 15:04:05", full, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func safeParse(input string) float64 {
	v, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0.0
	}
	return v
}
