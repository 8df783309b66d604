// Copyright 2025 Certen Protocol
//
// Dispatcher fans batch domain events out to registered subscribers,
// grounded on the teacher's pkg/anchor/event_watcher.go handler
// registration/dispatch-by-type loop, adapted from on-chain log
// dispatch to in-process domain-event dispatch.

package events

import (
	"log"
	"sync"

	"github.com/certen/fair-sequencer/pkg/batch"
)

// Handler receives a single domain event.
type Handler func(batch.Event)

// Dispatcher holds per-event-name subscriber lists and a catch-all list.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wildcard []Handler
	logger   *log.Logger
}

// New constructs an empty dispatcher.
func New(logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[EventDispatcher] ", log.LstdFlags)
	}
	return &Dispatcher{handlers: make(map[string][]Handler), logger: logger}
}

// On registers a handler for a specific event name (e.g. "BatchFinalized").
func (d *Dispatcher) On(eventName string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventName] = append(d.handlers[eventName], h)
}

// OnAny registers a handler invoked for every dispatched event.
func (d *Dispatcher) OnAny(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wildcard = append(d.wildcard, h)
}

// Dispatch delivers a single event to its named subscribers and every
// wildcard subscriber. A panicking handler is recovered and logged so
// one bad subscriber cannot take down the caller's goroutine.
func (d *Dispatcher) Dispatch(e batch.Event) {
	d.mu.RLock()
	named := append([]Handler(nil), d.handlers[e.EventName()]...)
	wildcard := append([]Handler(nil), d.wildcard...)
	d.mu.RUnlock()

	for _, h := range named {
		d.invoke(h, e)
	}
	for _, h := range wildcard {
		d.invoke(h, e)
	}
}

func (d *Dispatcher) invoke(h Handler, e batch.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("event handler panicked on %s: %v", e.EventName(), r)
		}
	}()
	h(e)
}

// Drain pulls every buffered event off b and dispatches them in order.
// Use-cases call this after a successful Save so subscribers only ever
// observe durably persisted state changes.
func (d *Dispatcher) Drain(b *batch.Batch) {
	for _, e := range b.PullEvents() {
		d.Dispatch(e)
	}
}
