package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const defaultBaseURL = "http://api.wunderground.com/api"

// Date is the vendor's exploded timestamp representation.
type Date struct {
	Year string `json:"year"`
	Mon  string `json:"mon"`
	Mday string `json:"mday"`
	Hour string `json:"hour"`
	Min  string `json:"min"`
}

// Observation is one point-in-time weather record. All numeric values arrive
// as strings and may be empty or unparseable.
type Observation struct {
	Date    Date   `json:"date"`
	Fog     string `json:"fog"`
	Rain    string `json:"rain"`
	Snow    string `json:"snow"`
	Hail    string `json:"hail"`
	Thunder string `json:"thunder"`
	Precipm string `json:"precipm"`
	Tempm   string `json:"tempm"`
	Wspdm   string `json:"wspdm"`
	Hum     string `json:"hum"`
	Wdire   string `json:"wdire"`
}

// DailySummary is the vendor's per-day aggregate record.
type DailySummary struct {
	Date        Date   `json:"date"`
	Snowfallm   string `json:"snowfallm"`
	Maxtempm    string `json:"maxtempm"`
	Mintempm    string `json:"mintempm"`
	Maxhumidity string `json:"maxhumidity"`
	Minhumidity string `json:"minhumidity"`
	Maxwspdm    string `json:"maxwspdm"`
	Minwspdm    string `json:"minwspdm"`
	Precipm     string `json:"precipm"`
}

// History is one day of observations plus its daily summary.
type History struct {
	Observations []Observation  `json:"observations"`
	DailySummary []DailySummary `json:"dailysummary"`
}

type historyPayload struct {
	History *History `json:"history"`
}

// Client talks to the weather vendor's history API. The vendor enforces a
// strict call-rate ceiling; pacing is the caller's responsibility.
type Client struct {
	http    *resty.Client
	country string
	city    string
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewClient creates a weather client for the given location.
func NewClient(apiKey, country, city string, log *logrus.Entry) *Client {
	return NewClientWithURL(defaultBaseURL, apiKey, country, city, log)
}

// NewClientWithURL creates a weather client against a specific endpoint.
func NewClientWithURL(baseURL, apiKey, country, city string, log *logrus.Entry) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL + "/" + apiKey).
			SetTimeout(30 * time.Second),
		country: country,
		city:    city,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "weather",
			MaxRequests: 2,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		log: log,
	}
}

// History fetches the observation history for one calendar day.
func (c *Client) History(ctx context.Context, day time.Time) (*History, error) {
	path := fmt.Sprintf("history_%s/q/%s/%s.json", day.UTC().Format("20060102"), c.country, c.city)

	var out historyPayload
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errors.Errorf("%s returned %s", path, resp.Status())
		}
		return nil, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "weather history for %s", day.Format("2006-01-02"))
	}

	if out.History == nil {
		// The vendor signals an exceeded API quota with an empty body.
		return nil, errors.Errorf("no history returned for %s, possible API limit breach", day.Format("2006-01-02"))
	}
	return out.History, nil
}
