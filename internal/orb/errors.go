package orb

import "fmt"

// ConfigError reports an invalid configuration value or poll target. It is
// returned synchronously, before any network request is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "orb: invalid configuration: " + e.Reason
}

// TransportError reports a network-level failure (connection refused, DNS,
// timeout). The fetch did not complete, so the server-side cursor for the
// caller id is unchanged.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("orb: request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response from the sensor, carrying the
// status code and response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orb: unexpected status %d: %s", e.StatusCode, e.Body)
}

// SchemaError reports a record in an otherwise successful response that is
// missing a required field. The whole batch is rejected; a partial record
// list would be indistinguishable from records the server has not yet
// delivered.
type SchemaError struct {
	Dataset string
	Index   int
	Field   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("orb: %s record %d: missing required field %q", e.Dataset, e.Index, e.Field)
}
