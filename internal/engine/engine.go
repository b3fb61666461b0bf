// Package engine runs the detection session as a single-owner event
// loop. One goroutine owns the session state and applies events
// through the reducer; every other component reads snapshots and
// communicates intent by dispatching future events.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

const defaultInboxSize = 100

// Clock supplies the current time, injectable for tests.
type Clock func() time.Time

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Reactor observes state transitions. React runs on the session
// goroutine after each applied event and must not block: anything slow
// (network, timers) belongs in a goroutine that re-enters the system
// by dispatching a new event.
type Reactor interface {
	Name() string
	React(ctx context.Context, prev, next watch.State)
}

// Engine is the session runtime.
//
// Engine is safe for concurrent use: Dispatch and State may be called
// from any goroutine while Run is active.
type Engine struct {
	mu       sync.RWMutex
	reducer  *watch.Reducer
	state    watch.State
	inbox    chan watch.Event
	reactors []Reactor
	order    []string
	clock    Clock
	started  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithInboxSize overrides the event buffer size.
func WithInboxSize(n int) Option {
	return func(e *Engine) { e.inbox = make(chan watch.Event, n) }
}

// New creates an engine with a fresh idle session.
func New(r *watch.Reducer, opts ...Option) *Engine {
	e := &Engine{
		reducer: r,
		state:   watch.NewState(),
		inbox:   make(chan watch.Event, defaultInboxSize),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a reactor. Reactors run in registration order after
// each applied event. Registration after Run has started is rejected.
func (e *Engine) Register(r Reactor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	for _, name := range e.order {
		if name == r.Name() {
			return fmt.Errorf("reactor %s already registered", r.Name())
		}
	}
	e.reactors = append(e.reactors, r)
	e.order = append(e.order, r.Name())
	return nil
}

// Dispatch enqueues an event without blocking. A full inbox is an
// error rather than a stall so a slow consumer can never deadlock a
// collaborator callback.
func (e *Engine) Dispatch(ev watch.Event) error {
	select {
	case e.inbox <- ev:
		return nil
	default:
		return fmt.Errorf("engine inbox is full")
	}
}

// State returns a snapshot of the current session state. The snapshot
// is stable: the reducer replaces rather than mutates shared slices
// and maps.
func (e *Engine) State() watch.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Run applies events in dispatch order until the context is canceled.
// Exactly one event is applied at a time; no reactor ever observes a
// partially applied mutation.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	reactors := make([]Reactor, len(e.reactors))
	copy(reactors, e.reactors)
	e.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.inbox:
			now := e.clock()

			e.mu.Lock()
			prev := e.state
			next := e.reducer.Apply(prev, now, ev)
			e.state = next
			e.mu.Unlock()

			for _, r := range reactors {
				r.React(ctx, prev, next)
			}
		}
	}
}

// Drain applies all currently queued events synchronously. It is a
// test helper for deterministic stepping without a running loop.
func (e *Engine) Drain(ctx context.Context) {
	for {
		select {
		case ev := <-e.inbox:
			now := e.clock()
			e.mu.Lock()
			prev := e.state
			next := e.reducer.Apply(prev, now, ev)
			e.state = next
			reactors := e.reactors
			e.mu.Unlock()
			for _, r := range reactors {
				r.React(ctx, prev, next)
			}
		default:
			return
		}
	}
}
