package orb

import (
	"context"
	"encoding/json"
	"sync"
)

// Slot holds the outcome of one dataset fetch inside an aggregate: either
// the record list or the error that replaced it. It marshals to a JSON array
// on success or to {"error": "..."} on failure.
type Slot[T Record] struct {
	Records []T
	Err     error
}

func (s Slot[T]) MarshalJSON() ([]byte, error) {
	if s.Err != nil {
		return json.Marshal(map[string]string{"error": s.Err.Error()})
	}
	if s.Records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Records)
}

// AllDatasets is the aggregate result of GetAllDatasets. The base datasets
// are always present; the extra granularity slots are nil unless requested.
type AllDatasets struct {
	Scores1m          Slot[ScoreRecord]              `json:"scores_1m"`
	Responsiveness1m  Slot[ResponsivenessRecord]     `json:"responsiveness_1m"`
	Responsiveness15s *Slot[ResponsivenessRecord]    `json:"responsiveness_15s,omitempty"`
	Responsiveness1s  *Slot[ResponsivenessRecord]    `json:"responsiveness_1s,omitempty"`
	WebResponsiveness Slot[WebResponsivenessRecord]  `json:"web_responsiveness_results"`
	SpeedResults      Slot[SpeedRecord]              `json:"speed_results"`
	WifiLink1m        Slot[WifiLinkRecord]           `json:"wifi_link_1m"`
	WifiLink15s       *Slot[WifiLinkRecord]          `json:"wifi_link_15s,omitempty"`
	WifiLink1s        *Slot[WifiLinkRecord]          `json:"wifi_link_1s,omitempty"`
}

// AllDatasetsOptions selects what GetAllDatasets fetches.
type AllDatasetsOptions struct {
	FetchOptions
	// IncludeAllResponsiveness adds the 1s and 15s responsiveness
	// granularities to the always-fetched 1m.
	IncludeAllResponsiveness bool
	// IncludeAllWifiLink adds the 1s and 15s Wi-Fi link granularities to the
	// always-fetched 1m.
	IncludeAllWifiLink bool
}

// GetAllDatasets fetches all requested datasets concurrently. Each fetch
// succeeds or fails on its own: a failure fills that dataset's slot with the
// error and leaves every other slot untouched, so the call itself never
// fails. Total latency is bounded by the slowest fetch, not the sum.
func (c *Client) GetAllDatasets(ctx context.Context, opts AllDatasetsOptions) AllDatasets {
	var (
		out AllDatasets
		wg  sync.WaitGroup
	)

	if opts.IncludeAllResponsiveness {
		out.Responsiveness15s = &Slot[ResponsivenessRecord]{}
		out.Responsiveness1s = &Slot[ResponsivenessRecord]{}
	}
	if opts.IncludeAllWifiLink {
		out.WifiLink15s = &Slot[WifiLinkRecord]{}
		out.WifiLink1s = &Slot[WifiLinkRecord]{}
	}

	// Each goroutine writes to its own slot, so no lock is needed; the
	// WaitGroup is the only synchronization point.
	wg.Add(1)
	go func() {
		defer wg.Done()
		out.Scores1m.Records, out.Scores1m.Err = c.GetScores1m(ctx, opts.FetchOptions)
	}()

	fetchResponsiveness := func(g Granularity, slot *Slot[ResponsivenessRecord]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot.Records, slot.Err = c.GetResponsiveness(ctx, g, opts.FetchOptions)
		}()
	}
	fetchResponsiveness(Granularity1m, &out.Responsiveness1m)
	if opts.IncludeAllResponsiveness {
		fetchResponsiveness(Granularity15s, out.Responsiveness15s)
		fetchResponsiveness(Granularity1s, out.Responsiveness1s)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		out.WebResponsiveness.Records, out.WebResponsiveness.Err = c.GetWebResponsiveness(ctx, opts.FetchOptions)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		out.SpeedResults.Records, out.SpeedResults.Err = c.GetSpeedResults(ctx, opts.FetchOptions)
	}()

	fetchWifiLink := func(g Granularity, slot *Slot[WifiLinkRecord]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot.Records, slot.Err = c.GetWifiLink(ctx, g, opts.FetchOptions)
		}()
	}
	fetchWifiLink(Granularity1m, &out.WifiLink1m)
	if opts.IncludeAllWifiLink {
		fetchWifiLink(Granularity15s, out.WifiLink15s)
		fetchWifiLink(Granularity1s, out.WifiLink1s)
	}

	wg.Wait()
	return out
}
