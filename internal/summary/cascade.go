// Package summary implements the tiered watch-log summarization
// cascade. Raw update entries roll into minute-level summaries, which
// roll into ten-minute summaries, and so on, keeping very long
// sessions compact without losing recent detail.
package summary

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sentinela-dev/sentinela/internal/watch"
	"github.com/sentinela-dev/sentinela/pkg/observability"
)

// Summarizer condenses an ordered list of event descriptions into one
// summary text. Implementations call the external summarization
// service.
type Summarizer interface {
	Summarize(ctx context.Context, events []string) (string, error)
}

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Cascade watches log growth and collapses eligible entries into
// higher-tier summaries. At most one summarization call is in flight
// at a time; a tier that becomes eligible while busy is picked up on
// the next log change or periodic re-check.
type Cascade struct {
	summarizer Summarizer
	dispatch   Dispatcher
	clock      func() time.Time

	mu    sync.Mutex
	busy  bool
	marks map[watch.SummaryLevel]time.Time
}

// NewCascade creates the cascade. clock may be nil for the wall clock.
func NewCascade(s Summarizer, d Dispatcher, clock func() time.Time) *Cascade {
	if clock == nil {
		clock = time.Now
	}
	c := &Cascade{
		summarizer: s,
		dispatch:   d,
		clock:      clock,
		marks:      make(map[watch.SummaryLevel]time.Time),
	}
	c.resetMarks(clock())
	return c
}

func (c *Cascade) Name() string { return "summary-cascade" }

// React re-anchors watermarks on session start and evaluates the
// cascade on every log-length change. The summarization call itself
// runs off the session goroutine.
func (c *Cascade) React(ctx context.Context, prev, next watch.State) {
	if !next.WatchingStart.IsZero() && !next.WatchingStart.Equal(prev.WatchingStart) {
		c.mu.Lock()
		c.resetMarks(next.WatchingStart)
		c.mu.Unlock()
	}
	if !next.Watching() || len(next.Logs) == len(prev.Logs) {
		return
	}
	go c.Evaluate(ctx, next)
}

// Evaluate runs one cascade pass against a state snapshot: pick the
// highest fired tier that has consumable entries, summarize them, and
// dispatch the replacement. Failures leave the log and watermarks
// untouched so the same entries are retried on the next trigger.
func (c *Cascade) Evaluate(ctx context.Context, st watch.State) {
	if !st.Watching() {
		return
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return
	}
	now := c.clock()
	level, sources := c.selectTier(now, st.Logs)
	if level == watch.LevelNone {
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	events := make([]string, 0, len(sources))
	ids := make([]string, 0, len(sources))
	newest := time.Time{}
	for _, e := range sources {
		events = append(events, sourceText(e))
		ids = append(ids, e.EntryID())
		if e.EntryTime().After(newest) {
			newest = e.EntryTime()
		}
	}

	start := c.clock()
	text, err := c.summarizer.Summarize(ctx, events)
	if err != nil {
		observability.RecordSummarization(level.String(), "error", c.clock().Sub(start))
		log.Printf("summary: level %s summarization failed: %v", level, err)
		return
	}
	observability.RecordSummarization(level.String(), "ok", c.clock().Sub(start))

	if err := c.dispatch.Dispatch(watch.LogSummarized{
		Summary:    text,
		ConsumedID: ids,
		Level:      level,
	}); err != nil {
		log.Printf("summary: dispatch: %v", err)
		return
	}

	// Advance the fired tier and every lower tier to the newest
	// consumed entry.
	c.mu.Lock()
	for _, l := range watch.Levels {
		if l <= level && newest.After(c.marks[l]) {
			c.marks[l] = newest
		}
	}
	c.mu.Unlock()
}

// selectTier returns the highest tier whose window has elapsed since
// its watermark and which has in-window source entries. A fired tier
// with nothing to consume falls through to the next lower tier so an
// idle high tier can never starve the minute tier. Caller holds c.mu.
func (c *Cascade) selectTier(now time.Time, logs []watch.Entry) (watch.SummaryLevel, []watch.Entry) {
	for i := len(watch.Levels) - 1; i >= 0; i-- {
		level := watch.Levels[i]
		window := level.Window()
		if now.Sub(c.marks[level]) < window {
			continue
		}
		sources := eligible(logs, level, now.Add(-window))
		if len(sources) > 0 {
			return level, sources
		}
	}
	return watch.LevelNone, nil
}

// eligible returns entries consumable by the tier, newest first. Tier
// one draws from raw updates; every higher tier draws from summaries
// of exactly the tier below it, a strict cascade.
func eligible(logs []watch.Entry, level watch.SummaryLevel, cutoff time.Time) []watch.Entry {
	var out []watch.Entry
	for _, e := range logs {
		if e.EntryTime().Before(cutoff) {
			continue
		}
		switch entry := e.(type) {
		case watch.UpdateEntry:
			if level == watch.LevelOneMinute {
				out = append(out, e)
			}
		case watch.SummaryEntry:
			if entry.Level == level-1 {
				out = append(out, e)
			}
		}
	}
	return out
}

func sourceText(e watch.Entry) string {
	switch entry := e.(type) {
	case watch.UpdateEntry:
		return entry.Reason
	case watch.SummaryEntry:
		return entry.Summary
	default:
		return ""
	}
}

// resetMarks anchors every tier's watermark. Caller holds c.mu (or is
// the constructor).
func (c *Cascade) resetMarks(at time.Time) {
	for _, l := range watch.Levels {
		c.marks[l] = at
	}
}

// markFor returns the tier's watermark, for tests.
func (c *Cascade) markFor(l watch.SummaryLevel) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks[l]
}
