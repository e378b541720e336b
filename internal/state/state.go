// Package state manages the in-memory status of the background poller.
// It is concurrency-safe and queried by the web command's /status endpoint.
package state

import (
	"sync"
	"time"
)

// Status summarizes the background poll loop.
type Status struct {
	Dataset          string    `json:"dataset"`
	CallerID         string    `json:"caller_id"`
	StartedAt        time.Time `json:"started_at"`
	BatchesDelivered int       `json:"batches_delivered"`
	LastBatchSize    int       `json:"last_batch_size"`
	LastDelivery     time.Time `json:"last_delivery,omitzero"`
	RecordsTotal     int       `json:"records_total"`
}

var (
	mu     sync.RWMutex
	latest Status
)

// Update stores the provided status in memory.
func Update(s Status) {
	mu.Lock()
	defer mu.Unlock()
	latest = s
}

// RecordBatch folds one delivered batch into the stored status.
func RecordBatch(size int, at time.Time) {
	mu.Lock()
	defer mu.Unlock()
	latest.BatchesDelivered++
	latest.LastBatchSize = size
	latest.LastDelivery = at
	latest.RecordsTotal += size
}

// Get returns the latest status.
func Get() Status {
	mu.RLock()
	defer mu.RUnlock()
	return latest
}

// Reset clears the stored status.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	latest = Status{}
}
