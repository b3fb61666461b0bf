package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sentinela-dev/sentinela/internal/sched"
	"github.com/sentinela-dev/sentinela/internal/watch"
)

// DefaultDetectedHold is how long a confirmed detection is surfaced
// before the session resumes watching.
const DefaultDetectedHold = 5 * time.Second

// PhaseReset reverts a detected session back to watching after a hold.
// The timer is canceled if the phase changes before it fires, so a
// stop or mode switch never races a stale reset.
type PhaseReset struct {
	dispatch Dispatcher
	hold     time.Duration

	mu    sync.Mutex
	timer *sched.Timer
}

// NewPhaseReset creates the reset reactor. A hold of zero uses the
// default.
func NewPhaseReset(d Dispatcher, hold time.Duration) *PhaseReset {
	if hold <= 0 {
		hold = DefaultDetectedHold
	}
	return &PhaseReset{dispatch: d, hold: hold}
}

func (p *PhaseReset) Name() string { return "phase-reset" }

func (p *PhaseReset) React(_ context.Context, prev, next watch.State) {
	if prev.Phase == next.Phase {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.timer.Cancel()
	p.timer = nil

	if next.Phase != watch.PhaseDetected {
		return
	}
	p.timer = sched.After(p.hold, func() {
		if err := p.dispatch.Dispatch(watch.DetectionReset{}); err != nil {
			log.Printf("phase-reset: dispatch: %v", err)
		}
	})
}

// Stop cancels any pending reset.
func (p *PhaseReset) Stop() {
	p.mu.Lock()
	p.timer.Cancel()
	p.timer = nil
	p.mu.Unlock()
}
