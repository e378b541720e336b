package orb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// inject counting fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchOptions carries per-call overrides for a single dataset fetch.
type FetchOptions struct {
	// CallerID overrides the client's default caller id for this call only.
	// A different caller id means a different server-side delivery cursor.
	CallerID string
	// Params are passed through to the query string verbatim. The server is
	// authoritative for their meaning; only a collision with the reserved
	// "id" key is rejected.
	Params map[string]string
}

// endpointURL builds the fully qualified dataset URL.
func (c *Client) endpointURL(dataset string, format Format) string {
	return fmt.Sprintf("%s/api/v2/datasets/%s.%s", c.BaseURL(), dataset, format)
}

func buildQuery(callerID string, params map[string]string) (url.Values, error) {
	q := url.Values{"id": []string{callerID}}
	for k, v := range params {
		if k == "id" {
			return nil, &ConfigError{Reason: `extra param "id" collides with the caller id key`}
		}
		q.Set(k, v)
	}
	return q, nil
}

// fetchRaw performs exactly one GET with the configured timeout and returns
// the undecoded body. Non-2xx responses become *StatusError, network
// failures *TransportError. No retry happens here: the server-side cursor
// only advances on a successful response, so retry policy belongs to the
// poller, not to a single fetch.
func (c *Client) fetchRaw(ctx context.Context, dataset string, format Format, opts FetchOptions) ([]byte, error) {
	if _, ok := datasetTable[dataset]; !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown dataset %q", dataset)}
	}
	caller := opts.CallerID
	if caller == "" {
		caller = c.cfg.CallerID
	}
	q, err := buildQuery(caller, opts.Params)
	if err != nil {
		return nil, err
	}
	endpoint := c.endpointURL(dataset, format) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", dataset, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.ClientID)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
