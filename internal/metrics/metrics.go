// Package metrics provides metrics collection for the capture engine.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates capture metrics.
type Collector struct {
	// Counters
	exchangesTotal    atomic.Int64
	endpointsTotal    atomic.Int64
	schemasMerged     atomic.Int64
	recoveredPayloads atomic.Int64
	archiveEntries    atomic.Int64
	bytesTotal        atomic.Int64
	errorsTotal       atomic.Int64

	// statusMu guards the status code breakdown and the reset-able
	// start time.
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex
	startTime   time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordExchange records one observed exchange.
func (c *Collector) RecordExchange(status int, bodyBytes int) {
	c.exchangesTotal.Add(1)
	c.bytesTotal.Add(int64(bodyBytes))

	c.statusMu.RLock()
	counter, ok := c.statusCodes[status]
	c.statusMu.RUnlock()
	if !ok {
		c.statusMu.Lock()
		counter, ok = c.statusCodes[status]
		if !ok {
			counter = &atomic.Int64{}
			c.statusCodes[status] = counter
		}
		c.statusMu.Unlock()
	}
	counter.Add(1)
}

// RecordEndpoint records the first sighting of a templated endpoint.
func (c *Collector) RecordEndpoint() {
	c.endpointsTotal.Add(1)
}

// RecordMerge records one schema merge pass.
func (c *Collector) RecordMerge() {
	c.schemasMerged.Add(1)
}

// RecordRecovery records a payload that needed the repair pass.
func (c *Collector) RecordRecovery() {
	c.recoveredPayloads.Add(1)
}

// RecordArchiveEntry records one archive append.
func (c *Collector) RecordArchiveEntry() {
	c.archiveEntries.Add(1)
}

// RecordError records a swallowed error.
func (c *Collector) RecordError() {
	c.errorsTotal.Add(1)
}

// Snapshot is a point-in-time view of the collector.
type Snapshot struct {
	Exchanges         int64         `json:"exchanges"`
	Endpoints         int64         `json:"endpoints"`
	SchemasMerged     int64         `json:"schemas_merged"`
	RecoveredPayloads int64         `json:"recovered_payloads"`
	ArchiveEntries    int64         `json:"archive_entries"`
	Bytes             int64         `json:"bytes"`
	Errors            int64         `json:"errors"`
	StatusCodes       map[int]int64 `json:"status_codes"`
	Uptime            time.Duration `json:"uptime"`
}

// Snapshot returns a consistent copy of the current values.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Exchanges:         c.exchangesTotal.Load(),
		Endpoints:         c.endpointsTotal.Load(),
		SchemasMerged:     c.schemasMerged.Load(),
		RecoveredPayloads: c.recoveredPayloads.Load(),
		ArchiveEntries:    c.archiveEntries.Load(),
		Bytes:             c.bytesTotal.Load(),
		Errors:            c.errorsTotal.Load(),
		StatusCodes:       make(map[int]int64),
	}

	c.statusMu.RLock()
	s.Uptime = time.Since(c.startTime)
	for code, counter := range c.statusCodes {
		s.StatusCodes[code] = counter.Load()
	}
	c.statusMu.RUnlock()

	return s
}

// Reset zeroes all counters.
func (c *Collector) Reset() {
	c.exchangesTotal.Store(0)
	c.endpointsTotal.Store(0)
	c.schemasMerged.Store(0)
	c.recoveredPayloads.Store(0)
	c.archiveEntries.Store(0)
	c.bytesTotal.Store(0)
	c.errorsTotal.Store(0)

	c.statusMu.Lock()
	c.statusCodes = make(map[int]*atomic.Int64)
	c.startTime = time.Now()
	c.statusMu.Unlock()
}
