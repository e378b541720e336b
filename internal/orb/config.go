package orb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the library version, stamped into the default User-Agent.
const Version = "0.2.0"

const (
	DefaultHost    = "localhost"
	DefaultPort    = 7080
	DefaultTimeout = 30 * time.Second
)

// Config holds the client configuration. It is read-only for the lifetime of
// the client; per-call overrides go through FetchOptions instead.
type Config struct {
	// Host is the hostname or IP of the Orb sensor.
	Host string
	// Port is the local data API port.
	Port int
	// CallerID is the opaque token the sensor uses to track which records
	// have already been delivered to this caller. If empty, a random UUID is
	// generated, meaning the first fetch returns the full backlog and
	// subsequent fetches return only new records.
	CallerID string
	// ClientID identifies this application to the sensor, sent as the
	// User-Agent header.
	ClientID string
	// Timeout applies to each individual fetch.
	Timeout time.Duration
	// UseHTTPS selects https instead of http.
	UseHTTPS bool
}

// withDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.CallerID == "" {
		c.CallerID = uuid.NewString()
	}
	if c.ClientID == "" {
		c.ClientID = "orblocal/" + Version
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Reason: fmt.Sprintf("port %d out of range", c.Port)}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("timeout %s must be positive", c.Timeout)}
	}
	return nil
}

// scheme returns the URL scheme for this configuration.
func (c Config) scheme() string {
	if c.UseHTTPS {
		return "https"
	}
	return "http"
}
