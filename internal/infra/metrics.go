package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	eventsDropped   atomic.Uint64
	decisionsIssued atomic.Uint64
	ordersFilled    atomic.Uint64
	errorsTotal     atomic.Uint64

	// Gauges
	activeStreams atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records a processed feed event.
func (m *Metrics) RecordEvent() {
	m.eventsProcessed.Add(1)
}

// RecordDrop records a discarded event (malformed or inbox overflow).
func (m *Metrics) RecordDrop() {
	m.eventsDropped.Add(1)
}

// RecordDecision records an issued order action.
func (m *Metrics) RecordDecision() {
	m.decisionsIssued.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordOrderFilled records a fill on one of our orders.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// IncrementStreams increments the open stream gauge by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
}

// DecrementStreams decrements the open stream gauge by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed uint64
	EventsDropped   uint64
	DecisionsIssued uint64
	OrdersFilled    uint64
	ErrorsTotal     uint64
	ActiveStreams   int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsProcessed: m.eventsProcessed.Load(),
		EventsDropped:   m.eventsDropped.Load(),
		DecisionsIssued: m.decisionsIssued.Load(),
		OrdersFilled:    m.ordersFilled.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		ActiveStreams:   m.activeStreams.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.eventsDropped.Store(0)
	m.decisionsIssued.Store(0)
	m.ordersFilled.Store(0)
	m.errorsTotal.Store(0)
	m.activeStreams.Store(0)
}
