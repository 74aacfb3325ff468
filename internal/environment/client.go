// Package environment fetches the outside conditions shown next to a
// check-in: the user's city, today's UV index and a pollen level.
package environment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/dermind/dermind/internal/config"
)

const (
	UnknownLocation = "Unknown"
	LocationError   = "Error detecting location"
	Unavailable     = "Unavailable"
)

// Clock returns the current time. Injected for testing.
type Clock func() time.Time

type Client struct {
	http        *retryablehttp.Client
	geocodeURL  string
	forecastURL string
	lat, lon    float64
	delay       time.Duration
	now         Clock

	mu      sync.Mutex
	uvDay   string
	uvValue float64
}

// NewClient creates a Client from the environment config section.
// RetryMax 0 means a single attempt.
func NewClient(cfg config.EnvironmentConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = slog.Default()

	return &Client{
		http:        rc,
		geocodeURL:  cfg.GeocodeURL,
		forecastURL: cfg.ForecastURL,
		lat:         cfg.Latitude,
		lon:         cfg.Longitude,
		delay:       cfg.SimulatedDelay,
		now:         time.Now,
	}
}

// WithClock overrides the clock used for the daily UV cache.
func (c *Client) WithClock(now Clock) *Client {
	c.now = now
	return c
}

func (c *Client) getJSON(ctx context.Context, base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", base, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", u.Host, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%s returned invalid JSON", u.Host)
	}
	return string(body), nil
}

// ReverseGeocode resolves coordinates to a city name. It never fails: an
// address without city, town or village yields "Unknown" and any transport
// or decode error yields "Error detecting location".
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	body, err := c.getJSON(ctx, c.geocodeURL, url.Values{
		"lat": {formatCoord(lat)},
		"lon": {formatCoord(lon)},
	})
	if err != nil {
		slog.Warn("reverse geocode failed", "error", err)
		return LocationError
	}
	for _, path := range []string{"address.city", "address.town", "address.village"} {
		if v := gjson.Get(body, path).String(); v != "" {
			return v
		}
	}
	return UnknownLocation
}

// UVIndex returns today's maximum UV index at the configured coordinates.
// The value is cached for the rest of the calendar day.
func (c *Client) UVIndex(ctx context.Context) (float64, bool) {
	today := c.now().Format("2006-01-02")

	c.mu.Lock()
	if c.uvDay == today {
		v := c.uvValue
		c.mu.Unlock()
		return v, true
	}
	c.mu.Unlock()

	body, err := c.getJSON(ctx, c.forecastURL, url.Values{
		"latitude":  {formatCoord(c.lat)},
		"longitude": {formatCoord(c.lon)},
		"daily":     {"uv_index_max"},
		"timezone":  {"auto"},
	})
	if err != nil {
		slog.Warn("uv forecast failed", "error", err)
		return 0, false
	}
	res := gjson.Get(body, "daily.uv_index_max.0")
	if res.Type != gjson.Number {
		slog.Warn("uv forecast missing daily.uv_index_max")
		return 0, false
	}

	c.mu.Lock()
	c.uvDay, c.uvValue = today, res.Float()
	c.mu.Unlock()
	return res.Float(), true
}

// Pollen has no data source yet and always reports "High".
func (c *Client) Pollen() string {
	return "High"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
