package orb

import "sort"

// Granularity is the time-bucket width of an aggregated dataset.
type Granularity string

const (
	Granularity1s  Granularity = "1s"
	Granularity15s Granularity = "15s"
	Granularity1m  Granularity = "1m"
)

func (g Granularity) valid() bool {
	switch g {
	case Granularity1s, Granularity15s, Granularity1m:
		return true
	}
	return false
}

// Format selects the response encoding of a dataset fetch.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// descriptor maps a logical dataset name to its decoding rules. The REST
// path segment is the dataset name itself.
type descriptor struct {
	required []string
	decode   func(body []byte) ([]Record, error)
}

var datasetTable = map[string]descriptor{
	"scores_1m": {
		required: scoreRequired,
		decode:   decodeAs[ScoreRecord]("scores_1m", scoreRequired),
	},
	"responsiveness_1s": {
		required: responsivenessRequired,
		decode:   decodeAs[ResponsivenessRecord]("responsiveness_1s", responsivenessRequired),
	},
	"responsiveness_15s": {
		required: responsivenessRequired,
		decode:   decodeAs[ResponsivenessRecord]("responsiveness_15s", responsivenessRequired),
	},
	"responsiveness_1m": {
		required: responsivenessRequired,
		decode:   decodeAs[ResponsivenessRecord]("responsiveness_1m", responsivenessRequired),
	},
	"web_responsiveness_results": {
		required: webResponsivenessRequired,
		decode:   decodeAs[WebResponsivenessRecord]("web_responsiveness_results", webResponsivenessRequired),
	},
	"speed_results": {
		required: speedRequired,
		decode:   decodeAs[SpeedRecord]("speed_results", speedRequired),
	},
	"wifi_link_1s": {
		required: wifiLinkRequired,
		decode:   decodeAs[WifiLinkRecord]("wifi_link_1s", wifiLinkRequired),
	},
	"wifi_link_15s": {
		required: wifiLinkRequired,
		decode:   decodeAs[WifiLinkRecord]("wifi_link_15s", wifiLinkRequired),
	},
	"wifi_link_1m": {
		required: wifiLinkRequired,
		decode:   decodeAs[WifiLinkRecord]("wifi_link_1m", wifiLinkRequired),
	},
}

func decodeAs[T Record](dataset string, required []string) func([]byte) ([]Record, error) {
	return func(body []byte) ([]Record, error) {
		rs, err := decodeBatch[T](dataset, body, required)
		if err != nil {
			return nil, err
		}
		return widen(rs), nil
	}
}

// DatasetNames returns the known dataset names, sorted.
func DatasetNames() []string {
	names := make([]string, 0, len(datasetTable))
	for name := range datasetTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
