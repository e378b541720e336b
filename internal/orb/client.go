// Package orb is a client library for the Orb sensor local data API. It
// fetches typed datasets (scores, responsiveness, web responsiveness, speed
// tests, Wi-Fi link metrics), supports incremental polling keyed by a caller
// id the sensor tracks server-side, and fetches multiple datasets
// concurrently with per-dataset failure isolation.
package orb

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one Orb sensor. Its configuration is immutable; create a
// new client to talk to a different sensor or to reset the delivery cursor
// with a fresh caller id.
type Client struct {
	cfg   Config
	doer  Doer
	clock Clock
}

// New creates a client. Zero-value config fields get defaults; an empty
// CallerID becomes a freshly generated UUID, so the first fetch returns the
// full backlog.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:   cfg,
		doer:  &http.Client{Timeout: cfg.Timeout},
		clock: systemClock{},
	}, nil
}

func (c *Client) Host() string           { return c.cfg.Host }
func (c *Client) Port() int              { return c.cfg.Port }
func (c *Client) CallerID() string       { return c.cfg.CallerID }
func (c *Client) ClientID() string       { return c.cfg.ClientID }
func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// BaseURL returns the sensor API root, e.g. "http://localhost:7080".
func (c *Client) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.cfg.scheme(), c.cfg.Host, c.cfg.Port)
}

// GetDataset fetches one dataset by name and decodes it into typed records.
func (c *Client) GetDataset(ctx context.Context, dataset string, opts FetchOptions) ([]Record, error) {
	d, ok := datasetTable[dataset]
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown dataset %q", dataset)}
	}
	body, err := c.fetchRaw(ctx, dataset, FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return d.decode(body)
}

// GetDatasetJSONL fetches one dataset as newline-delimited JSON, returned
// unparsed.
func (c *Client) GetDatasetJSONL(ctx context.Context, dataset string, opts FetchOptions) (string, error) {
	body, err := c.fetchRaw(ctx, dataset, FormatJSONL, opts)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetScores1m fetches the 1-minute Scores dataset: the Orb Score, its
// component scores (responsiveness, reliability, speed), and underlying
// measures.
func (c *Client) GetScores1m(ctx context.Context, opts FetchOptions) ([]ScoreRecord, error) {
	body, err := c.fetchRaw(ctx, "scores_1m", FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return decodeBatch[ScoreRecord]("scores_1m", body, scoreRequired)
}

// GetResponsiveness fetches the Responsiveness dataset at the given
// granularity: lag, latency, jitter, and packet loss.
func (c *Client) GetResponsiveness(ctx context.Context, granularity Granularity, opts FetchOptions) ([]ResponsivenessRecord, error) {
	if !granularity.valid() {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid granularity %q", granularity)}
	}
	dataset := "responsiveness_" + string(granularity)
	body, err := c.fetchRaw(ctx, dataset, FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return decodeBatch[ResponsivenessRecord](dataset, body, responsivenessRequired)
}

// GetWebResponsiveness fetches the Web Responsiveness dataset: TTFB for web
// page loads and DNS resolver response time.
func (c *Client) GetWebResponsiveness(ctx context.Context, opts FetchOptions) ([]WebResponsivenessRecord, error) {
	body, err := c.fetchRaw(ctx, "web_responsiveness_results", FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return decodeBatch[WebResponsivenessRecord]("web_responsiveness_results", body, webResponsivenessRequired)
}

// GetSpeedResults fetches the Speed dataset: content speed test results.
func (c *Client) GetSpeedResults(ctx context.Context, opts FetchOptions) ([]SpeedRecord, error) {
	body, err := c.fetchRaw(ctx, "speed_results", FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return decodeBatch[SpeedRecord]("speed_results", body, speedRequired)
}

// GetWifiLink fetches the Wi-Fi link dataset at the given granularity:
// signal strength and PHY rates of the measuring interface.
func (c *Client) GetWifiLink(ctx context.Context, granularity Granularity, opts FetchOptions) ([]WifiLinkRecord, error) {
	if !granularity.valid() {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid granularity %q", granularity)}
	}
	dataset := "wifi_link_" + string(granularity)
	body, err := c.fetchRaw(ctx, dataset, FormatJSON, opts)
	if err != nil {
		return nil, err
	}
	return decodeBatch[WifiLinkRecord](dataset, body, wifiLinkRequired)
}
