// Package worldbank reads indicator observations from the World Bank API
// (api.worldbank.org/v2).
package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/developmentseed/climatescope-data/internal/logging"
)

// DefaultBaseURL is the public v2 endpoint.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// ErrNoData is returned when no year within the fallback window has a
// value.
var ErrNoData = errors.New("worldbank: no data")

// Observation is one value of an indicator for a country and year.
type Observation struct {
	Country       string  // ISO code as requested
	CountryName   string
	Indicator     string
	IndicatorName string
	Year          int
	Value         float64
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	BaseURL           string
	RequestsPerSecond float64 // <= 0 disables throttling
	Timeout           time.Duration
	MaxFallbackYears  int
}

// Client queries the API one (country, indicator, year) at a time.
type Client struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxFallback int
	backoffs    []time.Duration
}

// New returns a Client for opts.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		client:      &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		maxFallback: opts.MaxFallbackYears,
		backoffs:    []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// responsePage is the first element of every response.
type responsePage struct {
	Page    int `json:"page"`
	Total   int `json:"total"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type responseRow struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Latest returns the value for year, stepping back one year at a time up
// to the configured fallback when a year has no value.
func (c *Client) Latest(ctx context.Context, iso, indicator string, year int) (Observation, error) {
	log := logging.WithPrefix("worldbank")
	for y := year; y >= year-c.maxFallback; y-- {
		obs, err := c.Get(ctx, iso, indicator, y)
		if err == nil {
			if y != year {
				log.Debug("fell back to earlier year", "iso", iso, "indicator", indicator, "asked", year, "year", y)
			}
			return obs, nil
		}
		if !errors.Is(err, ErrNoData) {
			return Observation{}, err
		}
	}
	return Observation{}, fmt.Errorf("%s %s %d-%d: %w", iso, indicator, year-c.maxFallback, year, ErrNoData)
}

// Get returns the value of indicator for iso in exactly year.
func (c *Client) Get(ctx context.Context, iso, indicator string, year int) (Observation, error) {
	u := fmt.Sprintf("%s/country/%s/indicator/%s?date=%d&format=json",
		c.baseURL, url.PathEscape(strings.ToLower(iso)), url.PathEscape(indicator), year)

	body, err := c.doWithRetry(ctx, u)
	if err != nil {
		return Observation{}, err
	}

	rows, err := parseResponse(body)
	if err != nil {
		return Observation{}, fmt.Errorf("worldbank: %s %s %d: %w", iso, indicator, year, err)
	}
	for _, r := range rows {
		if r.Value == nil || r.Date != strconv.Itoa(year) {
			continue
		}
		return Observation{
			Country:       iso,
			CountryName:   r.Country.Value,
			Indicator:     r.Indicator.ID,
			IndicatorName: r.Indicator.Value,
			Year:          year,
			Value:         *r.Value,
		}, nil
	}
	return Observation{}, ErrNoData
}

// parseResponse decodes the [page, rows] pair. An API error arrives as a
// single-element array carrying a message.
func parseResponse(body []byte) ([]responseRow, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("parse response: empty array")
	}

	var page responsePage
	if err := json.Unmarshal(parts[0], &page); err != nil {
		return nil, fmt.Errorf("parse response page: %w", err)
	}
	if len(page.Message) > 0 {
		m := page.Message[0]
		return nil, fmt.Errorf("api error %s: %s", m.ID, m.Value)
	}
	if len(parts) < 2 {
		return nil, nil
	}

	var rows []responseRow
	if err := json.Unmarshal(parts[1], &rows); err != nil {
		return nil, fmt.Errorf("parse response rows: %w", err)
	}
	return rows, nil
}

// doWithRetry GETs u, retrying on HTTP 429 or 5xx with backoff.
func (c *Client) doWithRetry(ctx context.Context, u string) ([]byte, error) {
	maxRetries := len(c.backoffs)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("worldbank: rate limiter wait failed: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("worldbank: failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("worldbank: request cancelled: %w", ctx.Err())
			}
			return nil, fmt.Errorf("worldbank: request failed: %w", err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("worldbank: failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		lastErr = fmt.Errorf("worldbank: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if !retryable {
			return nil, lastErr
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("worldbank: request cancelled during retry: %w", ctx.Err())
			case <-time.After(c.backoffs[attempt]):
			}
		}
	}

	return nil, fmt.Errorf("worldbank: all retries exhausted: %w", lastErr)
}
