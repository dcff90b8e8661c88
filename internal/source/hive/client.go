package hive

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/homelab-sensors/sensor-collector/internal/common"
)

const (
	defaultBaseURL = "https://api-prod.bgchprod.info:443/omnia"
	mediaType      = "application/vnd.alertme.zoo-6.5+json"

	// ChannelTemperature and ChannelBattery are the vendor channel types we
	// consume.
	ChannelTemperature = "temperature"
	ChannelBattery     = "battery"

	// thermostatNode exposes the hub's live battery level.
	thermostatNode = "Your Thermostat"
)

// Channel is one time-series channel of the hub. The id has the form
// "<type>@<uuid>".
type Channel struct {
	ID string `json:"id"`
}

// UUID is the device identity part of the channel id.
func (c Channel) UUID() string {
	if i := strings.Index(c.ID, "@"); i >= 0 {
		return c.ID[i+1:]
	}
	return c.ID
}

type channelValues struct {
	ID     string             `json:"id"`
	Values map[string]float64 `json:"values"`
}

type channelResponse struct {
	Channels []channelValues `json:"channels"`
}

type channelListResponse struct {
	Channels []Channel `json:"channels"`
}

type authResponse struct {
	Sessions []struct {
		SessionID string `json:"sessionId"`
	} `json:"sessions"`
}

type nodesResponse struct {
	Nodes []struct {
		Name     string `json:"name"`
		Features struct {
			BatteryDevice struct {
				BatteryLevel *struct {
					DisplayValue float64 `json:"displayValue"`
				} `json:"batteryLevel"`
			} `json:"battery_device_v1"`
		} `json:"features"`
	} `json:"nodes"`
}

// Client talks to the home-automation hub API. The session token handed out
// at sign-in is injected as a header on every later call.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewClient creates a hub client against the production endpoint.
func NewClient(log *logrus.Entry) *Client {
	return NewClientWithURL(defaultBaseURL, log)
}

// NewClientWithURL creates a hub client against a specific endpoint.
func NewClientWithURL(baseURL string, log *logrus.Entry) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", mediaType).
			SetHeader("Accept", mediaType).
			SetHeader("X-Omnia-Client", "Hive Web Dashboard"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "hive",
			MaxRequests: 2,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		log: log,
	}
}

func (c *Client) execute(fn func() (*resty.Response, error)) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errors.Errorf("%s returned %s", resp.Request.URL, resp.Status())
		}
		return nil, nil
	})
	return err
}

// SignIn opens a session and stores its token for the rest of the run.
func (c *Client) SignIn(ctx context.Context, username, password string) error {
	body := map[string]interface{}{
		"sessions": []map[string]string{
			{"username": username, "password": password, "caller": "WEB"},
		},
	}

	var out authResponse
	err := c.execute(func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("auth/sessions")
	})
	if err != nil {
		return errors.Wrap(err, "hive sign-in")
	}
	if len(out.Sessions) == 0 {
		return errors.New("hive sign-in returned no session")
	}

	c.http.SetHeader("X-Omnia-Access-Token", out.Sessions[0].SessionID)
	c.log.Debug("hive session established")
	return nil
}

// Channels lists the hub's time-series channels.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var out channelListResponse
	err := c.execute(func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).Get("channels")
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing hive channels")
	}
	return out.Channels, nil
}

// ChannelByType picks the first channel of the given type from the list.
func ChannelByType(channels []Channel, channelType string) (Channel, bool) {
	prefix := channelType + "@"
	for _, ch := range channels {
		if strings.HasPrefix(strings.ToLower(ch.ID), prefix) {
			return ch, true
		}
	}
	return Channel{}, false
}

// Values queries a channel for [from, to] in 5-minute averaged buckets and
// returns the samples keyed by epoch milliseconds.
func (c *Client) Values(ctx context.Context, channelID string, from, to time.Time) (map[int64]float64, error) {
	var out channelResponse
	err := c.execute(func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"start":     strconv.FormatInt(common.ToEpochMillis(from), 10),
				"end":       strconv.FormatInt(common.ToEpochMillis(to), 10),
				"rate":      "5",
				"timeUnit":  "MINUTES",
				"operation": "AVG",
			}).
			SetResult(&out).
			Get("channels/" + channelID)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "querying channel %s", channelID)
	}
	if len(out.Channels) == 0 {
		return nil, errors.New("no channels returned from hive call")
	}

	values := make(map[int64]float64, len(out.Channels[0].Values))
	for key, v := range out.Channels[0].Values {
		epoch, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		values[epoch] = v
	}
	return values, nil
}

// LiveBattery reads the thermostat's current battery percentage from the
// nodes endpoint. The second return is false when the node or the feature is
// absent.
func (c *Client) LiveBattery(ctx context.Context) (int, bool, error) {
	var out nodesResponse
	err := c.execute(func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetResult(&out).Get("nodes")
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "querying hive nodes")
	}

	for _, node := range out.Nodes {
		if node.Name != thermostatNode {
			continue
		}
		if lvl := node.Features.BatteryDevice.BatteryLevel; lvl != nil {
			return int(lvl.DisplayValue), true, nil
		}
	}
	return 0, false, nil
}
