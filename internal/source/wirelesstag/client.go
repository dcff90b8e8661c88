package wirelesstag

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// vendorTimeLayout is the timestamp format the tag API uses in request
// bodies and response payloads.
const vendorTimeLayout = "2006-01-02 15:04:05"

// vendorTime decodes the vendor's non-RFC3339 timestamps. RFC3339 values are
// accepted as a fallback.
type vendorTime struct {
	time.Time
}

func (t *vendorTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if parsed, err := time.ParseInLocation(vendorTimeLayout, s, time.UTC); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return errors.Errorf("unrecognised vendor timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

// TagInfo is one registered tag from the vendor's tag list. BatteryRemaining
// is the instantaneous battery fraction (0..1) at list time.
type TagInfo struct {
	SlaveID          int     `json:"slaveId"`
	Name             string  `json:"name"`
	UUID             string  `json:"uuid"`
	BatteryVolt      float64 `json:"batteryVolt"`
	BatteryRemaining float64 `json:"batteryRemaining"`
}

// DataPoint is one raw measurement from the temperature log endpoint.
type DataPoint struct {
	Time         vendorTime `json:"time"`
	TempDegC     float64    `json:"temp_degC"`
	Cap          float64    `json:"cap"`
	Lux          float64    `json:"lux"`
	BatteryVolts float64    `json:"battery_volts"`
}

type tagListResponse struct {
	D []TagInfo `json:"d"`
}

type rawDataResponse struct {
	D []DataPoint `json:"d"`
}

// Client talks to the wireless tag vendor API. The session cookie issued at
// sign-in is retained by the underlying cookie jar and replayed on every
// subsequent call.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewClient creates a client for the vendor endpoint at serviceURL.
func NewClient(serviceURL string, log *logrus.Entry) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(serviceURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "wirelesstag",
			MaxRequests: 2,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		log: log,
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().SetContext(ctx).SetBody(body)
		if out != nil {
			req.SetResult(out)
		}
		resp, err := req.Post(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, errors.Errorf("%s returned %s", path, resp.Status())
		}
		return nil, nil
	})
	return err
}

// SignIn authenticates against the vendor and primes the session cookie.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	if err := c.post(ctx, "ethAccount.asmx/SignIn", body, nil); err != nil {
		return errors.Wrap(err, "wireless tag sign-in")
	}
	c.log.Debug("wireless tag session established")
	return nil
}

// Tags fetches the registered tag list.
func (c *Client) Tags(ctx context.Context) ([]TagInfo, error) {
	var out tagListResponse
	if err := c.post(ctx, "ethClient.asmx/GetTagList", map[string]string{}, &out); err != nil {
		return nil, errors.Wrap(err, "querying tag list")
	}
	return out.D, nil
}

// RawData fetches the raw measurement log for one tag within [from, to].
func (c *Client) RawData(ctx context.Context, uuid string, from, to time.Time) ([]DataPoint, error) {
	body := map[string]string{
		"uuid":     uuid,
		"fromDate": from.UTC().Format(vendorTimeLayout),
		"toDate":   to.UTC().Format(vendorTimeLayout),
	}
	var out rawDataResponse
	if err := c.post(ctx, "ethLogShared.asmx/GetTemperatureRawDataByUUID", body, &out); err != nil {
		return nil, errors.Wrapf(err, "querying raw data for %s", uuid)
	}
	return out.D, nil
}
