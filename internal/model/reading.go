package model

import (
	"encoding/json"
	"time"
)

// Kind discriminates the reading variants carried by Reading.
type Kind string

const (
	KindSensor         Kind = "sensor"
	KindWeather        Kind = "weather"
	KindWeatherSummary Kind = "weather-summary"
)

// Fixed series keys for the weather source. Observations and daily summaries
// use distinct keys so a summary at midnight can never collide with an
// observation at the same instant.
const (
	WeatherSeriesKey        = "weather-obs"
	WeatherSummarySeriesKey = "weather-daily"
)

// ReadingMeta holds the fields shared by every reading variant. The store and
// dedup layers operate on these fields only. Timestamp is always UTC and all
// ordering and uniqueness comparisons are made on it. Ingested is stamped by
// the writer immediately before a batch is sent, and RecordID is assigned by
// the store on read-back.
type ReadingMeta struct {
	SeriesKey string    `json:"seriesKey"`
	Timestamp time.Time `json:"timestamp"`
	Ingested  time.Time `json:"ingestionTimestamp"`
	RecordID  string    `json:"-"`
}

// SensorReading is a single point from the tag or hub source.
type SensorReading struct {
	ReadingMeta
	Device            Device   `json:"device"`
	Temperature       *float64 `json:"temperature,omitempty"`
	Humidity          *float64 `json:"humidity,omitempty"`
	Lux               *float64 `json:"lux,omitempty"`
	Battery           *float64 `json:"battery,omitempty"`
	BatteryPercentage *int     `json:"batteryPercentage,omitempty"`
}

// LuxAdjusted floors lux at 1 so the value can be plotted on a log scale.
// A reading without lux reports 1.
func (r *SensorReading) LuxAdjusted() float64 {
	if r.Lux == nil || *r.Lux < 1 {
		return 1
	}
	return *r.Lux
}

// MarshalJSON includes the derived luxAdjusted field in the persisted document.
func (r SensorReading) MarshalJSON() ([]byte, error) {
	type alias SensorReading
	return json.Marshal(struct {
		alias
		LuxAdjusted float64 `json:"luxAdjusted"`
	}{alias(r), r.LuxAdjusted()})
}

// WeatherReading is a single upstream weather observation.
type WeatherReading struct {
	ReadingMeta
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Rainfall      float64 `json:"rainfall"`
	Snowfall      float64 `json:"snowfall"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection string  `json:"windDirection"`
	Thunder       bool    `json:"thunder"`
	Fog           bool    `json:"fog"`
	Hail          bool    `json:"hail"`
}

// WeatherSummary is the daily aggregate published by the weather vendor.
type WeatherSummary struct {
	ReadingMeta
	MaxTempC        float64 `json:"maxTempC"`
	MinTempC        float64 `json:"minTempC"`
	MaxHumidity     float64 `json:"maxRH"`
	MinHumidity     float64 `json:"minRH"`
	MaxWindSpeedKMH float64 `json:"maxWindSpeedKMH"`
	MinWindSpeedKMH float64 `json:"minWindSpeedKMH"`
	RainfallMM      float64 `json:"rainfallMM"`
	SnowfallMM      float64 `json:"snowfallMM"`
}

// Reading is the tagged union handed between the normalizers, the windowed
// fetch controller and the store writer. Exactly one variant pointer is set,
// matching Kind.
type Reading struct {
	Kind    Kind
	Sensor  *SensorReading
	Weather *WeatherReading
	Summary *WeatherSummary
}

// NewSensor wraps a sensor reading in the union.
func NewSensor(r *SensorReading) Reading {
	return Reading{Kind: KindSensor, Sensor: r}
}

// NewWeather wraps a weather observation in the union.
func NewWeather(r *WeatherReading) Reading {
	return Reading{Kind: KindWeather, Weather: r}
}

// NewWeatherSummary wraps a daily summary in the union.
func NewWeatherSummary(r *WeatherSummary) Reading {
	return Reading{Kind: KindWeatherSummary, Summary: r}
}

// Meta returns the shared fields of whichever variant is populated.
func (r Reading) Meta() *ReadingMeta {
	switch r.Kind {
	case KindSensor:
		return &r.Sensor.ReadingMeta
	case KindWeather:
		return &r.Weather.ReadingMeta
	case KindWeatherSummary:
		return &r.Summary.ReadingMeta
	}
	return nil
}

// Document returns the concrete variant for persistence.
func (r Reading) Document() interface{} {
	switch r.Kind {
	case KindSensor:
		return r.Sensor
	case KindWeather:
		return r.Weather
	case KindWeatherSummary:
		return r.Summary
	}
	return nil
}

// Alert is an ephemeral health notification produced within one run and
// never persisted.
type Alert struct {
	SubjectName string
	Text        string
}

// MaxTimestamp returns the most recent timestamp in the batch, or the zero
// time for an empty batch.
func MaxTimestamp(readings []Reading) time.Time {
	var max time.Time
	for _, r := range readings {
		if ts := r.Meta().Timestamp; ts.After(max) {
			max = ts
		}
	}
	return max
}
