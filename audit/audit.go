// Package audit emits the pipeline's auditable events: stake request
// transitions, observed deposits, committed distributions, and settlement
// outcomes. The pipeline only produces events; delivery (notification,
// ledger export) belongs to downstream consumers.
package audit

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies the kind of auditable event.
type EventType string

const (
	// EventDepositObserved is emitted for every deduplicated deposit event.
	EventDepositObserved EventType = "deposit.observed"

	// EventStakeConfirmed is emitted when a stake request transitions to confirmed.
	EventStakeConfirmed EventType = "stake.confirmed"

	// EventStakeExpired is emitted when a stake request passes its deadline unmatched.
	EventStakeExpired EventType = "stake.expired"

	// EventDistributionCommitted is emitted when a distribution is stamped and
	// handed to the payout executor.
	EventDistributionCommitted EventType = "distribution.committed"

	// EventSettlementRecorded is emitted for every settlement record written.
	EventSettlementRecorded EventType = "settlement.recorded"
)

// Event is one auditable fact. Ref identifies the subject (stake ID,
// distribution ID, or payment ID); Attrs carries type-specific detail.
type Event struct {
	Type  EventType
	At    time.Time
	Ref   string
	Attrs map[string]string
}

// Sink consumes audit events. Emit must not block for long; slow consumers
// should buffer internally.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MemorySink retains events in memory, for tests and for bounded inspection.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit appends the event.
func (s *MemorySink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of all emitted events in order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns all emitted events of the given type, in order.
func (s *MemorySink) ByType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ChanSink delivers events to a channel for asynchronous consumers. A full
// channel drops the event rather than stall the pipeline.
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a channel sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

// Events returns the delivery channel.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

// Emit delivers the event without blocking.
func (s *ChanSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink that logs each event at info level.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit logs the event.
func (s *LogSink) Emit(e Event) {
	attrs := make([]any, 0, 2+2*len(e.Attrs))
	attrs = append(attrs, "ref", e.Ref)
	for k, v := range e.Attrs {
		attrs = append(attrs, k, v)
	}
	s.log.Info(string(e.Type), attrs...)
}

// MultiSink fans out each event to every wrapped sink.
type MultiSink []Sink

// Emit forwards the event to all sinks in order.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
