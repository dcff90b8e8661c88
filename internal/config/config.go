package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultSettingsPath is used when no path argument is given.
const DefaultSettingsPath = "Settings.json"

// WirelessTagConfig configures the wireless tag source. A nil block disables
// the source.
type WirelessTagConfig struct {
	ServiceURL string `json:"serviceUrl" validate:"required,url"`
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// HiveConfig configures the home-automation hub source.
type HiveConfig struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// WeatherConfig configures the weather history source.
type WeatherConfig struct {
	APIKey  string `json:"apiKey" validate:"required"`
	Country string `json:"country" validate:"required"`
	City    string `json:"city" validate:"required"`

	// StartDate is the series epoch used before anything is persisted,
	// formatted 2006-01-02.
	StartDate string `json:"startDate" validate:"required"`

	parsedStart time.Time
}

// Start returns the parsed series epoch.
func (w *WeatherConfig) Start() time.Time {
	return w.parsedStart
}

// EmailConfig configures the SMTP alert channel.
type EmailConfig struct {
	SMTPServer  string `json:"smtpServer" validate:"required"`
	SMTPPort    int    `json:"smtpPort" validate:"required"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"fromAddress" validate:"required,email"`
	ToAddress   string `json:"toAddress" validate:"required,email"`
	ToName      string `json:"toName"`
}

// PushoverConfig configures the push alert channel.
type PushoverConfig struct {
	Token   string `json:"token" validate:"required"`
	UserKey string `json:"userKey" validate:"required"`
}

// Config is the full settings file. Missing optional blocks disable the
// corresponding source or alert channel.
type Config struct {
	IndexName        string `json:"indexname" validate:"required"`
	WeatherIndexName string `json:"weatherIndexname"`
	ElasticServer    string `json:"elasticserver" validate:"required,url"`

	RefreshPeriodMins int `json:"refreshPeriodMins" validate:"min=0"`

	// Health thresholds. Absent fields take the defaults; explicit zeroes
	// are honored, so a zero battery threshold disables that check.
	LowBatteryThreshold *float64 `json:"lowBatteryThreshold"`
	LowBatteryPercent   *int     `json:"lowBatteryPercent"`
	NoDataWarningMins   *int     `json:"noDataWarningMins"`

	DedupeSweepOnRun bool `json:"dedupeSweepOnRun"`

	// Fetch policy knobs. The defaults mirror the vendor limits; they are
	// configurable rather than semantic. Zero selects the default, as none
	// of them has a meaningful zero setting.
	CaughtUpWindowMins    int `json:"caughtUpWindowMins"`
	TagMaxWindowDays      int `json:"tagMaxWindowDays"`
	MaxFetchCalls         int `json:"maxFetchCalls"`
	ThrottleSecs          int `json:"throttleSecs"`
	WeatherThrottleSecs   int `json:"weatherThrottleSecs"`
	WeatherMaxCalls       int `json:"weatherMaxCalls"`
	WeatherFlushEveryDays int `json:"weatherFlushEveryDays"`

	LogLevel    string `json:"logLevel"`
	LogLocation string `json:"logLocation"`

	WirelessTag *WirelessTagConfig `json:"wirelesstag"`
	Hive        *HiveConfig        `json:"hive"`
	Weather     *WeatherConfig     `json:"weather"`
	Email       *EmailConfig       `json:"email"`
	Pushover    *PushoverConfig    `json:"pushover"`
}

// Load reads and validates the settings file at path. Secrets may be
// overridden from the environment (optionally via a .env file) so the
// settings file can be committed without credentials.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env file is normal.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file %s", path)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing settings file %s", path)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	if cfg.Weather != nil {
		start, err := time.ParseInLocation("2006-01-02", cfg.Weather.StartDate, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid weather start date %q", cfg.Weather.StartDate)
		}
		cfg.Weather.parsedStart = start
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.WeatherIndexName == "" {
		c.WeatherIndexName = "weather"
	}
	if c.LowBatteryThreshold == nil {
		v := 1.0
		c.LowBatteryThreshold = &v
	}
	if c.LowBatteryPercent == nil {
		v := 15
		c.LowBatteryPercent = &v
	}
	if c.NoDataWarningMins == nil {
		v := 60
		c.NoDataWarningMins = &v
	}
	if c.CaughtUpWindowMins == 0 {
		c.CaughtUpWindowMins = 60
	}
	if c.TagMaxWindowDays == 0 {
		c.TagMaxWindowDays = 90
	}
	if c.MaxFetchCalls == 0 {
		c.MaxFetchCalls = 50
	}
	if c.ThrottleSecs == 0 {
		c.ThrottleSecs = 2
	}
	if c.WeatherThrottleSecs == 0 {
		c.WeatherThrottleSecs = 6
	}
	if c.WeatherMaxCalls == 0 {
		c.WeatherMaxCalls = 200
	}
	if c.WeatherFlushEveryDays == 0 {
		c.WeatherFlushEveryDays = 25
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WIRELESSTAG_PASSWORD"); v != "" && c.WirelessTag != nil {
		c.WirelessTag.Password = v
	}
	if v := os.Getenv("HIVE_PASSWORD"); v != "" && c.Hive != nil {
		c.Hive.Password = v
	}
	if v := os.Getenv("WEATHER_API_KEY"); v != "" && c.Weather != nil {
		c.Weather.APIKey = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" && c.Email != nil {
		c.Email.Password = v
	}
	if v := os.Getenv("PUSHOVER_TOKEN"); v != "" && c.Pushover != nil {
		c.Pushover.Token = v
	}
}
