package orb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Observer is notified with each non-empty batch the poller fetches, before
// the batch is delivered to the consumer. Notify may block; the poller calls
// it synchronously.
type Observer interface {
	Notify(ctx context.Context, dataset string, batch []Record)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, dataset string, batch []Record)

func (f ObserverFunc) Notify(ctx context.Context, dataset string, batch []Record) {
	f(ctx, dataset, batch)
}

// PollOptions configures one Poll invocation.
type PollOptions struct {
	// Dataset is the dataset name to poll. Must be known; validated before
	// the loop starts.
	Dataset string
	// Interval is the wait between cycles. Must be positive.
	Interval time.Duration
	// MaxIterations bounds the number of cycles; 0 polls until the context
	// is cancelled.
	MaxIterations int
	// Observer, if set, is notified with each non-empty batch.
	Observer Observer
	// Params are passed through to every fetch's query string.
	Params map[string]string
}

// Poll repeatedly fetches one dataset at a fixed interval using the client's
// default caller id, so each successful cycle yields only records appended
// since the previous one. Every successful cycle's batch is delivered on the
// returned channel, empty batches included, letting the consumer tell
// "checked, nothing new" from "not checked yet". A failed cycle delivers
// nothing: the error is logged and swallowed, and since the server-side
// cursor only advances on success, the next successful cycle still returns
// whatever was missed.
//
// Configuration problems (unknown dataset, non-positive interval, reserved
// param key) are reported synchronously, before any network call. The
// channel is closed when MaxIterations cycles have run or the context is
// cancelled; cancellation takes effect at the next suspension point and
// never interrupts an in-flight fetch.
func (c *Client) Poll(ctx context.Context, opts PollOptions) (<-chan []Record, error) {
	d, ok := datasetTable[opts.Dataset]
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown dataset %q", opts.Dataset)}
	}
	if opts.Interval <= 0 {
		return nil, &ConfigError{Reason: fmt.Sprintf("poll interval %s must be positive", opts.Interval)}
	}
	if _, err := buildQuery(c.cfg.CallerID, opts.Params); err != nil {
		return nil, err
	}

	ch := make(chan []Record)
	go c.pollLoop(ctx, d, opts, ch)
	return ch, nil
}

func (c *Client) pollLoop(ctx context.Context, d descriptor, opts PollOptions, ch chan<- []Record) {
	defer close(ch)

	fetchOpts := FetchOptions{Params: opts.Params}
	for iteration := 0; ; {
		body, err := c.fetchRaw(ctx, opts.Dataset, FormatJSON, fetchOpts)
		var batch []Record
		if err == nil {
			batch, err = d.decode(body)
		}
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			log.Warn().
				Err(err).
				Str("dataset", opts.Dataset).
				Int("iteration", iteration).
				Msg("poll cycle failed, will retry next interval")
		default:
			if opts.Observer != nil && len(batch) > 0 {
				opts.Observer.Notify(ctx, opts.Dataset, batch)
			}
			select {
			case ch <- batch:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-c.clock.After(opts.Interval):
		case <-ctx.Done():
			return
		}

		iteration++
		if opts.MaxIterations > 0 && iteration >= opts.MaxIterations {
			return
		}
	}
}
