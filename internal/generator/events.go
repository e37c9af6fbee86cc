package generator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is a generation lifecycle record for history/telemetry consumers.
// Minimal and stable: id, name, backend and optional fields.
type Event struct {
	ID      string
	Name    string
	Backend string
	Time    time.Time
	Fields  map[string]any
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(name, backend string, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{ID: uuid.NewString(), Name: name, Backend: backend, Time: time.Now(), Fields: fields}
}

// EventPublisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Log.Debug().Str("event", e.Name).Str("event_id", e.ID)
	if e.Backend != "" {
		ev = ev.Str("backend", e.Backend)
	}
	ev.Fields(e.Fields).Msg("generator event")
}
