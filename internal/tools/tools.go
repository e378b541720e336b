// Package tools exposes the orb client's operations as callable tools for an
// AI-agent runtime. Each tool carries its JSON-schema parameter specification
// together with the handler invoked when the runtime calls it. The
// tool-invocation protocol itself is the runtime's concern; this package only
// supplies the capability set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"orblocal/internal/orb"
)

// Tool is one callable operation ready for registration with an agent
// runtime.
type Tool struct {
	// Name is the tool's unique identifier.
	Name string
	// Description is the runtime-facing explanation of what the tool does.
	Description string
	// Schema is the JSON Schema of the tool's arguments object.
	Schema json.RawMessage
	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result. Implementations are safe for concurrent use and
	// respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Registry holds the tools built around one client, preserving registration
// order for listings.
type Registry struct {
	order []string
	tools map[string]Tool
}

// datasetArgs are the arguments shared by the per-dataset tools.
type datasetArgs struct {
	CallerID    string            `json:"caller_id,omitempty"`
	Granularity string            `json:"granularity,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

type allDatasetsArgs struct {
	CallerID                 string            `json:"caller_id,omitempty"`
	IncludeAllResponsiveness bool              `json:"include_all_responsiveness,omitempty"`
	IncludeAllWifiLink       bool              `json:"include_all_wifi_link,omitempty"`
	Params                   map[string]string `json:"params,omitempty"`
}

const statefulPollingNote = " By default the session caller id is reused, so the first call " +
	"returns all available data and later calls return only new records; pass caller_id to " +
	"override that behavior."

var datasetSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"caller_id": {"type": "string", "description": "Override the session caller id used to track polling state"},
		"params": {"type": "object", "additionalProperties": {"type": "string"}, "description": "Extra query parameters passed through to the sensor"}
	}
}`)

var granularitySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"caller_id": {"type": "string", "description": "Override the session caller id used to track polling state"},
		"granularity": {"type": "string", "enum": ["1s", "15s", "1m"], "description": "Time bucket size (default 1m)"},
		"params": {"type": "object", "additionalProperties": {"type": "string"}, "description": "Extra query parameters passed through to the sensor"}
	}
}`)

var allDatasetsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"caller_id": {"type": "string", "description": "Override the session caller id used to track polling state"},
		"include_all_responsiveness": {"type": "boolean", "description": "Also fetch the 1s and 15s responsiveness granularities"},
		"include_all_wifi_link": {"type": "boolean", "description": "Also fetch the 1s and 15s Wi-Fi link granularities"},
		"params": {"type": "object", "additionalProperties": {"type": "string"}, "description": "Extra query parameters passed through to the sensor"}
	}
}`)

// NewRegistry builds the tool set around a client.
func NewRegistry(client *orb.Client) *Registry {
	r := &Registry{tools: make(map[string]Tool)}

	r.add(Tool{
		Name: "get_scores_1m",
		Description: "Retrieve the 1-minute Scores dataset from the Orb sensor: the Orb Score " +
			"(0-100, higher is better) with its responsiveness, reliability, and speed component " +
			"scores and underlying measures." + statefulPollingNote,
		Schema: datasetSchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a datasetArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			records, err := client.GetScores1m(ctx, fetchOptions(a))
			if err != nil {
				return "", err
			}
			return encodeResult(records)
		},
	})

	r.add(Tool{
		Name: "get_responsiveness",
		Description: "Retrieve the Responsiveness dataset from the Orb sensor: lag, latency, " +
			"jitter, and packet loss for the internet path and the local router, in 1s, 15s, or " +
			"1m buckets." + statefulPollingNote,
		Schema: granularitySchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a datasetArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			records, err := client.GetResponsiveness(ctx, granularity(a), fetchOptions(a))
			if err != nil {
				return "", err
			}
			return encodeResult(records)
		},
	})

	r.add(Tool{
		Name: "get_web_responsiveness",
		Description: "Retrieve the Web Responsiveness dataset from the Orb sensor: time to first " +
			"byte for web page loads and DNS resolver response time, measured once per minute." +
			statefulPollingNote,
		Schema: datasetSchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a datasetArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			records, err := client.GetWebResponsiveness(ctx, fetchOptions(a))
			if err != nil {
				return "", err
			}
			return encodeResult(records)
		},
	})

	r.add(Tool{
		Name: "get_speed_results",
		Description: "Retrieve the Speed dataset from the Orb sensor: download and upload speed " +
			"test results, conducted once per hour by default." + statefulPollingNote,
		Schema: datasetSchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a datasetArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			records, err := client.GetSpeedResults(ctx, fetchOptions(a))
			if err != nil {
				return "", err
			}
			return encodeResult(records)
		},
	})

	r.add(Tool{
		Name: "get_wifi_link",
		Description: "Retrieve the Wi-Fi link dataset from the Orb sensor: signal strength and " +
			"PHY rates of the measuring interface, in 1s, 15s, or 1m buckets." + statefulPollingNote,
		Schema: granularitySchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a datasetArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			records, err := client.GetWifiLink(ctx, granularity(a), fetchOptions(a))
			if err != nil {
				return "", err
			}
			return encodeResult(records)
		},
	})

	r.add(Tool{
		Name: "get_all_datasets",
		Description: "Retrieve all datasets from the Orb sensor concurrently. Each dataset slot " +
			"in the result holds either its records or an error for that dataset alone; one " +
			"failing dataset never fails the call." + statefulPollingNote,
		Schema: allDatasetsSchema,
		Handler: func(ctx context.Context, args string) (string, error) {
			var a allDatasetsArgs
			if err := decodeArgs(args, &a); err != nil {
				return "", err
			}
			result := client.GetAllDatasets(ctx, orb.AllDatasetsOptions{
				FetchOptions:             orb.FetchOptions{CallerID: a.CallerID, Params: a.Params},
				IncludeAllResponsiveness: a.IncludeAllResponsiveness,
				IncludeAllWifiLink:       a.IncludeAllWifiLink,
			})
			return encodeResult(result)
		},
	})

	r.add(Tool{
		Name: "get_client_info",
		Description: "Inspect the Orb client configuration: host, port, base URL, caller id, " +
			"client id, and timeout. Useful for verifying which sensor is being queried and " +
			"which caller id tracks the polling state.",
		Schema: json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler: func(ctx context.Context, args string) (string, error) {
			return encodeResult(map[string]any{
				"host":            client.Host(),
				"port":            client.Port(),
				"base_url":        client.BaseURL(),
				"caller_id":       client.CallerID(),
				"client_id":       client.ClientID(),
				"timeout_seconds": client.Timeout().Seconds(),
			})
		},
	})

	return r
}

func (r *Registry) add(t Tool) {
	r.order = append(r.order, t.Name)
	r.tools[t.Name] = t
}

// List returns the registered tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call invokes a tool by name with JSON-encoded args ("" means no args).
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Handler(ctx, args)
}

func decodeArgs(args string, v any) error {
	if args == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("decode tool args: %w", err)
	}
	return nil
}

func encodeResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}

func fetchOptions(a datasetArgs) orb.FetchOptions {
	return orb.FetchOptions{CallerID: a.CallerID, Params: a.Params}
}

func granularity(a datasetArgs) orb.Granularity {
	if a.Granularity == "" {
		return orb.Granularity1m
	}
	return orb.Granularity(a.Granularity)
}
