// Package progress collects the structured log events the crawlers and
// coordinator emit as they work. It's the only structure shared between
// concurrently-running crawlers, so appends must be safe from multiple
// goroutines and must never block the crawl on a slow consumer.
package progress

import (
	"fmt"
	"sync"
	"time"
)

type Level int

const (
	Info Level = iota
	Success
	Progress
	Filtered
	Warning
	Error
)

func (lv Level) String() string {
	switch lv {
	case Info:
		return "info"
	case Success:
		return "success"
	case Progress:
		return "progress"
	case Filtered:
		return "filtered"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(lv))
}

// Event is one log line. Immutable once appended.
type Event struct {
	Message string
	Level   Level
	// Source names the crawler which emitted the event, or is empty
	// for coordinator-level events.
	Source string
	// Aggregate controls whether the event shows up in the
	// all-sources-combined view. Per-item noise (filtered items etc)
	// stays source-only.
	Aggregate bool
	When      time.Time
}

type Sink interface {
	Append(ev Event)
}

// NullSink swallows everything.
type NullSink struct{}

func (NullSink) Append(ev Event) {}

// MemSink is a mutex-guarded append-only event arena.
// Events are held in insertion order; if a cap is set the oldest
// events are shed once it's exceeded.
type MemSink struct {
	mu     sync.Mutex
	events []Event
	max    int
}

// NewMemSink creates a sink retaining at most max events
// (0 = unbounded).
func NewMemSink(max int) *MemSink {
	return &MemSink{max: max}
}

func (s *MemSink) Append(ev Event) {
	if ev.When.IsZero() {
		ev.When = time.Now()
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	if s.max > 0 && len(s.events) > s.max {
		// shed from the front, keeping insertion order
		n := len(s.events) - s.max
		s.events = append(s.events[:0:0], s.events[n:]...)
	}
	s.mu.Unlock()
}

// Events returns a snapshot of all retained events, in insertion order.
func (s *MemSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// SourceEvents returns the events for one source.
func (s *MemSink) SourceEvents(source string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, ev := range s.events {
		if ev.Source == source {
			out = append(out, ev)
		}
	}
	return out
}

// AggregateEvents returns the combined view - only events flagged for
// it. A reader gets every source's headline events interleaved in
// arrival order.
func (s *MemSink) AggregateEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, ev := range s.events {
		if ev.Aggregate {
			out = append(out, ev)
		}
	}
	return out
}

// Tee appends each event to every wrapped sink.
type Tee []Sink

func (t Tee) Append(ev Event) {
	for _, s := range t {
		s.Append(ev)
	}
}

// LogSink adapts a Printf-style logger (eg log.New(os.Stderr...)) into
// a Sink, for running with plain console output.
type LogSink struct {
	Out interface {
		Printf(format string, v ...interface{})
	}
}

func (s LogSink) Append(ev Event) {
	src := ev.Source
	if src == "" {
		src = "-"
	}
	s.Out.Printf("[%s] %s: %s\n", ev.Level, src, ev.Message)
}
