package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

func obsDate(hour, min string) Date {
	return Date{Year: "2023", Mon: "08", Mday: "14", Hour: hour, Min: min}
}

func TestNormalizeMapsObservations(t *testing.T) {
	h := &History{
		Observations: []Observation{{
			Date:    obsDate("09", "20"),
			Tempm:   "17.8",
			Hum:     "81",
			Wspdm:   "14.8",
			Wdire:   "WSW",
			Rain:    "1",
			Precipm: "0.5",
			Thunder: "0",
			Fog:     "0",
			Hail:    "0",
			Snow:    "0",
		}},
	}

	readings := Normalize(h)
	require.Len(t, readings, 1)
	require.Equal(t, model.KindWeather, readings[0].Kind)

	r := readings[0].Weather
	assert.Equal(t, model.WeatherSeriesKey, r.SeriesKey)
	assert.Equal(t, time.Date(2023, 8, 14, 9, 20, 0, 0, time.UTC), r.Timestamp)
	assert.Equal(t, 17.8, r.Temperature)
	assert.Equal(t, 81.0, r.Humidity)
	assert.Equal(t, 14.8, r.WindSpeed)
	assert.Equal(t, "WSW", r.WindDirection)
	assert.Equal(t, 0.5, r.Rainfall)
	assert.Equal(t, 0.0, r.Snowfall)
	assert.False(t, r.Thunder)
}

func TestNormalizePrecipGatedByRainAndSnowFlags(t *testing.T) {
	h := &History{
		Observations: []Observation{{
			Date:    obsDate("10", "00"),
			Tempm:   "1.2",
			Snow:    "1",
			Precipm: "3.0",
		}},
	}

	readings := Normalize(h)
	require.Len(t, readings, 1)

	r := readings[0].Weather
	assert.Equal(t, 0.0, r.Rainfall)
	assert.Equal(t, 3.0, r.Snowfall)
}

func TestNormalizeUnparseableNumbersDefaultToZero(t *testing.T) {
	h := &History{
		Observations: []Observation{{
			Date:  obsDate("11", "00"),
			Tempm: "",
			Hum:   "N/A",
		}},
	}

	readings := Normalize(h)
	require.Len(t, readings, 1)
	assert.Equal(t, 0.0, readings[0].Weather.Temperature)
	assert.Equal(t, 0.0, readings[0].Weather.Humidity)
}

func TestNormalizeDropsUnparseableDates(t *testing.T) {
	h := &History{
		Observations: []Observation{
			{Date: Date{Year: "2023", Mon: "13", Mday: "99", Hour: "09", Min: "00"}, Tempm: "10"},
			{Date: obsDate("09", "00"), Tempm: "10"},
		},
	}

	readings := Normalize(h)
	assert.Len(t, readings, 1)
}

func TestNormalizeMapsDailySummaryAtMidnight(t *testing.T) {
	h := &History{
		DailySummary: []DailySummary{{
			Date:        obsDate("23", "59"),
			Maxtempm:    "21.4",
			Mintempm:    "12.1",
			Maxhumidity: "93",
			Minhumidity: "55",
			Maxwspdm:    "31.5",
			Minwspdm:    "0",
			Precipm:     "1.2",
			Snowfallm:   "0.0",
		}},
	}

	readings := Normalize(h)
	require.Len(t, readings, 1)
	require.Equal(t, model.KindWeatherSummary, readings[0].Kind)

	s := readings[0].Summary
	assert.Equal(t, model.WeatherSummarySeriesKey, s.SeriesKey)
	assert.Equal(t, time.Date(2023, 8, 14, 0, 0, 0, 0, time.UTC), s.Timestamp)
	assert.Equal(t, 21.4, s.MaxTempC)
	assert.Equal(t, 12.1, s.MinTempC)
	assert.Equal(t, 93.0, s.MaxHumidity)
	assert.Equal(t, 1.2, s.RainfallMM)
}

func TestNormalizeSeparatesObservationAndSummarySeries(t *testing.T) {
	h := &History{
		Observations: []Observation{{Date: obsDate("00", "00"), Tempm: "9.0"}},
		DailySummary: []DailySummary{{Date: obsDate("00", "00"), Maxtempm: "15.0"}},
	}

	readings := Normalize(h)
	require.Len(t, readings, 2)
	assert.NotEqual(t, readings[0].Meta().SeriesKey, readings[1].Meta().SeriesKey)
	assert.Equal(t, readings[0].Meta().Timestamp, readings[1].Meta().Timestamp)
}
