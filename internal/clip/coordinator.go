// Package clip correlates a rotating recording buffer with detection
// events. While a session is active, two overlapping segments record
// the live stream; when a detection confirms, the oldest segment is
// reserved, allowed to run a few seconds past the trigger for context,
// then finalized into a clip and attached back to the detection log
// entry via a dispatched event.
package clip

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sentinela-dev/sentinela/internal/sched"
	"github.com/sentinela-dev/sentinela/internal/watch"
)

// MIMEType is the single recording container used for clips.
const MIMEType = "video/webm"

// Defaults matching the observed production constants.
const (
	// DefaultRotation is how often a fresh segment starts recording.
	DefaultRotation = 5 * time.Second
	// DefaultPostDetection is how long the reserved segment keeps
	// recording after the detection before it is finalized.
	DefaultPostDetection = 4 * time.Second
	// maxSegments bounds the rotating buffer.
	maxSegments = 2
)

// Clip is a finalized recording.
type Clip struct {
	URL  string
	MIME string
}

// Segment is one in-flight recording of the live stream.
type Segment interface {
	// Finalize stops the recording and produces the clip.
	Finalize(ctx context.Context) (Clip, error)
	// Discard stops the recording and drops its data.
	Discard()
}

// Source starts recording segments. The frame capture side implements
// it; demo sessions typically provide no source at all.
type Source interface {
	StartSegment(ctx context.Context) (Segment, error)
}

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Coordinator owns the rotating segment buffer and the
// detection-to-clip handoff. All timers it starts are canceled when
// the condition that started them reverses.
type Coordinator struct {
	source   Source
	dispatch Dispatcher
	rotation time.Duration
	post     time.Duration

	mu           sync.Mutex
	segments     []Segment
	rotator      *sched.Interval
	pending      Segment
	pendingTimer *sched.Timer
}

// NewCoordinator creates the clip coordinator. Zero durations use the
// defaults.
func NewCoordinator(src Source, d Dispatcher, rotation, post time.Duration) *Coordinator {
	if rotation <= 0 {
		rotation = DefaultRotation
	}
	if post <= 0 {
		post = DefaultPostDetection
	}
	return &Coordinator{source: src, dispatch: d, rotation: rotation, post: post}
}

func (c *Coordinator) Name() string { return "clip-coordinator" }

func (c *Coordinator) React(ctx context.Context, prev, next watch.State) {
	if prev.Watching() != next.Watching() {
		if next.Watching() {
			c.startRotation(ctx)
		} else {
			c.Stop()
		}
	}

	// The auto-reset back to WATCHING deliberately leaves a pending
	// finalize running so the clip still attaches to its entry; only a
	// full stop drops it.
	if prev.Phase != watch.PhaseDetected && next.Phase == watch.PhaseDetected {
		c.reserve(ctx)
	}
}

// startRotation begins the two-segment buffer. Demo sessions have no
// source and simply never produce clips.
func (c *Coordinator) startRotation(ctx context.Context) {
	if c.source == nil {
		return
	}

	c.mu.Lock()
	if c.rotator != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.rotate(ctx)

	c.mu.Lock()
	c.rotator = sched.Every(c.rotation, func() { c.rotate(ctx) })
	c.mu.Unlock()
}

// rotate starts a fresh segment and discards the oldest beyond the
// buffer bound.
func (c *Coordinator) rotate(ctx context.Context) {
	seg, err := c.source.StartSegment(ctx)
	if err != nil {
		log.Printf("clip: start segment: %v", err)
		return
	}

	var evicted Segment
	c.mu.Lock()
	c.segments = append(c.segments, seg)
	if len(c.segments) > maxSegments {
		evicted = c.segments[0]
		c.segments = c.segments[1:]
	}
	c.mu.Unlock()

	if evicted != nil {
		evicted.Discard()
	}
}

// reserve takes the oldest in-flight segment for the detection that
// just confirmed and schedules its finalization after the
// post-detection window.
func (c *Coordinator) reserve(ctx context.Context) {
	c.mu.Lock()
	if c.pending != nil || len(c.segments) == 0 {
		c.mu.Unlock()
		return
	}
	seg := c.segments[0]
	c.segments = c.segments[1:]
	c.pending = seg
	c.pendingTimer = sched.After(c.post, func() { c.finalize(ctx, seg) })
	c.mu.Unlock()
}

func (c *Coordinator) finalize(ctx context.Context, seg Segment) {
	c.mu.Lock()
	if c.pending != seg {
		// Canceled while the timer was in flight.
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.pendingTimer = nil
	c.mu.Unlock()

	clip, err := seg.Finalize(ctx)
	if err != nil {
		log.Printf("clip: finalize: %v", err)
		return
	}
	if err := c.dispatch.Dispatch(watch.DetectionClip{VideoURL: clip.URL}); err != nil {
		log.Printf("clip: dispatch: %v", err)
	}
}

// Stop tears down the buffer: rotation halts, every segment is
// discarded, and a pending finalize is canceled.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	rotator := c.rotator
	c.rotator = nil
	segments := c.segments
	c.segments = nil
	pending := c.pending
	c.pending = nil
	c.pendingTimer.Cancel()
	c.pendingTimer = nil
	c.mu.Unlock()

	if rotator != nil {
		rotator.Stop()
	}
	for _, seg := range segments {
		seg.Discard()
	}
	if pending != nil {
		pending.Discard()
	}
}
