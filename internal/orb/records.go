package orb

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Record is implemented by every dataset record type.
type Record interface {
	// RecordTime returns the record timestamp (epoch milliseconds on the
	// wire) as a time.Time.
	RecordTime() time.Time
}

// ScoreRecord is one row of the scores_1m dataset: the Orb Score, its
// component scores, and the underlying measures for a one-minute interval.
type ScoreRecord struct {
	// Identifiers
	OrbID        string  `json:"orb_id"`
	OrbName      *string `json:"orb_name,omitempty"`
	DeviceName   *string `json:"device_name,omitempty"`
	OrbVersion   string  `json:"orb_version"`
	Timestamp    int64   `json:"timestamp"`
	ScoreVersion string  `json:"score_version"`

	// Measures
	OrbScore            float64 `json:"orb_score"`
	ResponsivenessScore float64 `json:"responsiveness_score"`
	ReliabilityScore    float64 `json:"reliability_score"`
	SpeedScore          float64 `json:"speed_score"`
	SpeedAgeMs          int64   `json:"speed_age_ms"`
	LagAvgUs            float64 `json:"lag_avg_us"`
	DownloadAvgKbps     int64   `json:"download_avg_kbps"`
	UploadAvgKbps       int64   `json:"upload_avg_kbps"`
	UnresponsiveMs      float64 `json:"unresponsive_ms"`
	MeasuredMs          float64 `json:"measured_ms"`
	LagCount            int64   `json:"lag_count"`
	SpeedCount          int64   `json:"speed_count"`

	// Dimensions
	NetworkType    int      `json:"network_type"`
	NetworkState   *int     `json:"network_state,omitempty"`
	CountryCode    *string  `json:"country_code,omitempty"`
	CityName       *string  `json:"city_name,omitempty"`
	ISPName        *string  `json:"isp_name,omitempty"`
	PublicIP       *string  `json:"public_ip,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	LocationSource *int     `json:"location_source,omitempty"`

	// Extra holds fields the server sent that this library does not know
	// about. They survive a marshal round trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// ResponsivenessRecord is one row of the responsiveness_{1s,15s,1m}
// datasets: lag, latency, jitter, and packet loss, for both the internet
// path and the local router.
type ResponsivenessRecord struct {
	// Identifiers
	OrbID      string  `json:"orb_id"`
	OrbName    *string `json:"orb_name,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
	OrbVersion string  `json:"orb_version"`
	Timestamp  int64   `json:"timestamp"`

	// Measures
	LagAvgUs               int64   `json:"lag_avg_us"`
	LatencyAvgUs           int64   `json:"latency_avg_us"`
	JitterAvgUs            int64   `json:"jitter_avg_us"`
	LatencyCount           float64 `json:"latency_count"`
	LatencyLostCount       int64   `json:"latency_lost_count"`
	PacketLossPct          float64 `json:"packet_loss_pct"`
	LagCount               int64   `json:"lag_count"`
	RouterLagAvgUs         int64   `json:"router_lag_avg_us"`
	RouterLatencyAvgUs     int64   `json:"router_latency_avg_us"`
	RouterJitterAvgUs      int64   `json:"router_jitter_avg_us"`
	RouterLatencyCount     float64 `json:"router_latency_count"`
	RouterLatencyLostCount int64   `json:"router_latency_lost_count"`
	RouterPacketLossPct    float64 `json:"router_packet_loss_pct"`
	RouterLagCount         int64   `json:"router_lag_count"`

	// Dimensions
	NetworkType    int      `json:"network_type"`
	NetworkState   *int     `json:"network_state,omitempty"`
	NetworkName    *string  `json:"network_name,omitempty"`
	Pingers        *string  `json:"pingers,omitempty"`
	CountryCode    *string  `json:"country_code,omitempty"`
	CityName       *string  `json:"city_name,omitempty"`
	ISPName        *string  `json:"isp_name,omitempty"`
	PublicIP       *string  `json:"public_ip,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	LocationSource *int     `json:"location_source,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// WebResponsivenessRecord is one row of the web_responsiveness_results
// dataset: time to first byte for a web page load and DNS resolver response
// time, measured once per minute.
type WebResponsivenessRecord struct {
	// Identifiers
	OrbID      string  `json:"orb_id"`
	OrbName    *string `json:"orb_name,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
	OrbVersion string  `json:"orb_version"`
	Timestamp  int64   `json:"timestamp"`

	// Measures
	TTFBUs int64 `json:"ttfb_us"`
	DNSUs  int64 `json:"dns_us"`

	// Dimensions
	NetworkType    int      `json:"network_type"`
	NetworkState   *int     `json:"network_state,omitempty"`
	NetworkName    *string  `json:"network_name,omitempty"`
	WebURL         *string  `json:"web_url,omitempty"`
	CountryCode    *string  `json:"country_code,omitempty"`
	CityName       *string  `json:"city_name,omitempty"`
	ISPName        *string  `json:"isp_name,omitempty"`
	PublicIP       *string  `json:"public_ip,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	LocationSource *int     `json:"location_source,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SpeedEngine names the engine that produced a speed result. The sensor has
// delivered it both as an integer code (0=orb, 1=iperf) and as an engine
// name, so it decodes from either wire shape; known codes map to their
// names, unknown codes keep their decimal form.
type SpeedEngine string

const (
	SpeedEngineOrb   SpeedEngine = "orb"
	SpeedEngineIperf SpeedEngine = "iperf"
)

func (e *SpeedEngine) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = SpeedEngine(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("speed_test_engine: %w", err)
	}
	switch n {
	case 0:
		*e = SpeedEngineOrb
	case 1:
		*e = SpeedEngineIperf
	default:
		*e = SpeedEngine(strconv.Itoa(n))
	}
	return nil
}

// SpeedRecord is one row of the speed_results dataset: a single content
// speed test result.
type SpeedRecord struct {
	// Identifiers
	OrbID      string  `json:"orb_id"`
	OrbName    *string `json:"orb_name,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
	OrbVersion string  `json:"orb_version"`
	Timestamp  int64   `json:"timestamp"`

	// Measures
	DownloadKbps int64 `json:"download_kbps"`
	UploadKbps   int64 `json:"upload_kbps"`

	// Dimensions
	NetworkType     int          `json:"network_type"`
	NetworkState    *int         `json:"network_state,omitempty"`
	NetworkName     *string      `json:"network_name,omitempty"`
	SpeedTestEngine *SpeedEngine `json:"speed_test_engine,omitempty"`
	SpeedTestServer *string      `json:"speed_test_server,omitempty"`
	CountryCode     *string      `json:"country_code,omitempty"`
	CityName        *string      `json:"city_name,omitempty"`
	ISPName         *string      `json:"isp_name,omitempty"`
	PublicIP        *string      `json:"public_ip,omitempty"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	LocationSource  *int         `json:"location_source,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// WifiLinkRecord is one row of the wifi_link_{1s,15s,1m} datasets: signal
// and PHY rate metrics of the Wi-Fi link the sensor is measuring over. Only
// produced when the active interface is Wi-Fi.
type WifiLinkRecord struct {
	// Identifiers
	OrbID      string  `json:"orb_id"`
	OrbName    *string `json:"orb_name,omitempty"`
	DeviceName *string `json:"device_name,omitempty"`
	OrbVersion string  `json:"orb_version"`
	Timestamp  int64   `json:"timestamp"`

	// Measures
	RSSIAvgDbm    float64 `json:"rssi_avg_dbm"`
	TxRateAvgKbps int64   `json:"tx_rate_avg_kbps"`
	RxRateAvgKbps int64   `json:"rx_rate_avg_kbps"`
	SampleCount   int64   `json:"sample_count"`

	// Dimensions; signal details are platform-dependent and may be absent.
	NetworkType    int      `json:"network_type"`
	NoiseAvgDbm    *float64 `json:"noise_avg_dbm,omitempty"`
	NetworkName    *string  `json:"network_name,omitempty"`
	BSSID          *string  `json:"bssid,omitempty"`
	Channel        *int     `json:"channel,omitempty"`
	FrequencyMhz   *int     `json:"frequency_mhz,omitempty"`
	PhyMode        *string  `json:"phy_mode,omitempty"`
	CountryCode    *string  `json:"country_code,omitempty"`
	CityName       *string  `json:"city_name,omitempty"`
	ISPName        *string  `json:"isp_name,omitempty"`
	PublicIP       *string  `json:"public_ip,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	LocationSource *int     `json:"location_source,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (r ScoreRecord) RecordTime() time.Time             { return time.UnixMilli(r.Timestamp) }
func (r ResponsivenessRecord) RecordTime() time.Time    { return time.UnixMilli(r.Timestamp) }
func (r WebResponsivenessRecord) RecordTime() time.Time { return time.UnixMilli(r.Timestamp) }
func (r SpeedRecord) RecordTime() time.Time             { return time.UnixMilli(r.Timestamp) }
func (r WifiLinkRecord) RecordTime() time.Time          { return time.UnixMilli(r.Timestamp) }

// Required fields per dataset kind. A batch containing a record without one
// of these fails as a whole.
var (
	scoreRequired = []string{
		"orb_id", "orb_version", "timestamp", "score_version",
		"orb_score", "responsiveness_score", "reliability_score", "speed_score",
		"speed_age_ms", "lag_avg_us", "download_avg_kbps", "upload_avg_kbps",
		"unresponsive_ms", "measured_ms", "lag_count", "speed_count",
		"network_type",
	}
	responsivenessRequired = []string{
		"orb_id", "orb_version", "timestamp",
		"lag_avg_us", "latency_avg_us", "jitter_avg_us",
		"latency_count", "latency_lost_count", "packet_loss_pct", "lag_count",
		"router_lag_avg_us", "router_latency_avg_us", "router_jitter_avg_us",
		"router_latency_count", "router_latency_lost_count", "router_packet_loss_pct",
		"router_lag_count", "network_type",
	}
	webResponsivenessRequired = []string{
		"orb_id", "orb_version", "timestamp", "ttfb_us", "dns_us", "network_type",
	}
	speedRequired = []string{
		"orb_id", "orb_version", "timestamp", "download_kbps", "upload_kbps", "network_type",
	}
	wifiLinkRequired = []string{
		"orb_id", "orb_version", "timestamp",
		"rssi_avg_dbm", "tx_rate_avg_kbps", "rx_rate_avg_kbps", "sample_count",
		"network_type",
	}
)

// Declared json field names per record type, used to split unknown keys into
// the Extra bag.
var (
	scoreFields             = jsonFieldNames(ScoreRecord{})
	responsivenessFields    = jsonFieldNames(ResponsivenessRecord{})
	webResponsivenessFields = jsonFieldNames(WebResponsivenessRecord{})
	speedFields             = jsonFieldNames(SpeedRecord{})
	wifiLinkFields          = jsonFieldNames(WifiLinkRecord{})
)

func (r *ScoreRecord) UnmarshalJSON(b []byte) error {
	type plain ScoreRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ScoreRecord(p)
	return setExtra(b, scoreFields, &r.Extra)
}

func (r ScoreRecord) MarshalJSON() ([]byte, error) {
	type plain ScoreRecord
	return marshalWithExtra(plain(r), r.Extra)
}

func (r *ResponsivenessRecord) UnmarshalJSON(b []byte) error {
	type plain ResponsivenessRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ResponsivenessRecord(p)
	return setExtra(b, responsivenessFields, &r.Extra)
}

func (r ResponsivenessRecord) MarshalJSON() ([]byte, error) {
	type plain ResponsivenessRecord
	return marshalWithExtra(plain(r), r.Extra)
}

func (r *WebResponsivenessRecord) UnmarshalJSON(b []byte) error {
	type plain WebResponsivenessRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = WebResponsivenessRecord(p)
	return setExtra(b, webResponsivenessFields, &r.Extra)
}

func (r WebResponsivenessRecord) MarshalJSON() ([]byte, error) {
	type plain WebResponsivenessRecord
	return marshalWithExtra(plain(r), r.Extra)
}

func (r *SpeedRecord) UnmarshalJSON(b []byte) error {
	type plain SpeedRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = SpeedRecord(p)
	return setExtra(b, speedFields, &r.Extra)
}

func (r SpeedRecord) MarshalJSON() ([]byte, error) {
	type plain SpeedRecord
	return marshalWithExtra(plain(r), r.Extra)
}

func (r *WifiLinkRecord) UnmarshalJSON(b []byte) error {
	type plain WifiLinkRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = WifiLinkRecord(p)
	return setExtra(b, wifiLinkFields, &r.Extra)
}

func (r WifiLinkRecord) MarshalJSON() ([]byte, error) {
	type plain WifiLinkRecord
	return marshalWithExtra(plain(r), r.Extra)
}

// jsonFieldNames collects the json tag names of a struct's fields.
func jsonFieldNames(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		for j := 0; j < len(tag); j++ {
			if tag[j] == ',' {
				tag = tag[:j]
				break
			}
		}
		names[tag] = struct{}{}
	}
	return names
}

// setExtra stores any keys of the raw object not declared on the record type
// into *extra. A record with no unknown keys gets a nil map.
func setExtra(b []byte, known map[string]struct{}, extra *map[string]json.RawMessage) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for k := range all {
		if _, ok := known[k]; ok {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		*extra = nil
		return nil
	}
	*extra = all
	return nil
}

// marshalWithExtra marshals the declared fields and merges the Extra bag
// back into the object.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for k, v := range extra {
		all[k] = v
	}
	return json.Marshal(all)
}

// decodeBatch validates and decodes a JSON array of records. Validation is
// fail-fast: the first record missing a required field (absent or null)
// rejects the whole batch. Server delivery order is preserved.
func decodeBatch[T Record](dataset string, body []byte, required []string) ([]T, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", dataset, err)
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(item, &keys); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", dataset, i, err)
		}
		for _, f := range required {
			v, ok := keys[f]
			if !ok || string(v) == "null" {
				return nil, &SchemaError{Dataset: dataset, Index: i, Field: f}
			}
		}
		var rec T
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", dataset, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func widen[T Record](rs []T) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}
