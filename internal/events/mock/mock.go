// Package mock provides an in-memory [events.Publisher] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/events"
)

// Publisher records every published event.
type Publisher struct {
	mu sync.Mutex

	// Err, when set, is returned from Publish after the event is recorded.
	Err error

	events []events.Event
	closed bool
}

var _ events.Publisher = (*Publisher)(nil)

// Publish implements events.Publisher.
func (p *Publisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.Err
}

// Close implements events.Publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfType returns the recorded events with type t.
func (p *Publisher) OfType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
