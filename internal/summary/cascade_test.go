package summary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSummarizer struct {
	mu     sync.Mutex
	calls  [][]string
	text   string
	err    error
	block  chan struct{}
	inCall chan struct{}
}

func (f *fakeSummarizer) Summarize(_ context.Context, events []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, events)
	f.mu.Unlock()
	if f.inCall != nil {
		close(f.inCall)
	}
	if f.block != nil {
		<-f.block
	}
	return f.text, f.err
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stateDispatcher applies dispatched events straight through a reducer
// so tests can observe the resulting log.
type stateDispatcher struct {
	mu      sync.Mutex
	reducer *watch.Reducer
	state   watch.State
	now     time.Time
	events  []watch.Event
}

func (d *stateDispatcher) Dispatch(ev watch.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	d.state = d.reducer.Apply(d.state, d.now, ev)
	return nil
}

func (d *stateDispatcher) snapshot() watch.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func newFixture(text string, err error) (*fakeSummarizer, *stateDispatcher) {
	sum := &fakeSummarizer{text: text, err: err}
	disp := &stateDispatcher{reducer: watch.NewReducer(watch.Tuning{}), state: watch.NewState()}
	return sum, disp
}

// watchingWithUpdates starts a session at t0 and appends n
// sub-threshold updates one second apart.
func watchingWithUpdates(d *stateDispatcher, n int) {
	d.now = t0
	_ = d.Dispatch(watch.StartWatching{})
	for i := 0; i < n; i++ {
		d.now = t0.Add(time.Duration(i+1) * time.Second)
		_ = d.Dispatch(watch.DetectionUpdate{Confidence: 10, Reason: "quiet"})
	}
}

func TestTierOneCollapsesUpdates(t *testing.T) {
	sum, disp := newFixture("a quiet minute", nil)
	now := t0.Add(61 * time.Second)
	c := NewCascade(sum, disp, func() time.Time { return now })
	c.resetMarks(t0)

	watchingWithUpdates(disp, 60)
	require.Len(t, disp.snapshot().Logs, 61)

	disp.now = now
	c.Evaluate(context.Background(), disp.snapshot())

	st := disp.snapshot()
	require.Len(t, st.Logs, 2, "sixty updates collapse into one summary; start entry remains")
	entry, ok := st.Logs[0].(watch.SummaryEntry)
	require.True(t, ok)
	assert.Equal(t, watch.LevelOneMinute, entry.Level)
	assert.Equal(t, "a quiet minute", entry.Summary)

	require.Equal(t, 1, sum.callCount())
	assert.Len(t, sum.calls[0], 60)

	// Watermark advanced to the newest consumed entry.
	assert.Equal(t, t0.Add(60*time.Second), c.markFor(watch.LevelOneMinute))
}

func TestFailureLeavesLogAndWatermarkUntouched(t *testing.T) {
	sum, disp := newFixture("", errors.New("summarizer down"))
	now := t0.Add(61 * time.Second)
	c := NewCascade(sum, disp, func() time.Time { return now })
	c.resetMarks(t0)

	watchingWithUpdates(disp, 10)
	before := disp.snapshot()

	disp.now = now
	c.Evaluate(context.Background(), before)

	assert.Equal(t, before.Logs, disp.snapshot().Logs)
	assert.Equal(t, t0, c.markFor(watch.LevelOneMinute), "failed attempt must not advance the watermark")

	// Same entries succeed on the next trigger.
	sum.err = nil
	sum.text = "recovered"
	c.Evaluate(context.Background(), disp.snapshot())
	st := disp.snapshot()
	require.Len(t, st.Logs, 2)
	assert.Equal(t, "recovered", st.Logs[0].(watch.SummaryEntry).Summary)
}

func TestStrictCascadeConsumesOnlyTierBelow(t *testing.T) {
	sum, disp := newFixture("ten minute rollup", nil)
	now := t0.Add(11 * time.Minute)
	c := NewCascade(sum, disp, func() time.Time { return now })
	c.resetMarks(t0)

	disp.now = t0
	_ = disp.Dispatch(watch.StartWatching{})

	// A minute-level summary inside the ten-minute window.
	disp.now = t0.Add(10*time.Minute + 30*time.Second)
	_ = disp.Dispatch(watch.LogSummarized{Summary: "minute one", Level: watch.LevelOneMinute})

	// A raw update in the same window must not be consumed by tier two.
	_ = disp.Dispatch(watch.DetectionUpdate{Confidence: 10, Reason: "raw noise"})

	disp.now = now
	c.Evaluate(context.Background(), disp.snapshot())

	st := disp.snapshot()
	top, ok := st.Logs[0].(watch.SummaryEntry)
	require.True(t, ok)
	assert.Equal(t, watch.LevelTenMinutes, top.Level)

	require.Equal(t, 1, sum.callCount())
	assert.Equal(t, []string{"minute one"}, sum.calls[0], "tier two draws only from tier-one summaries")

	// The raw update survives for tier one.
	kinds := map[watch.Kind]int{}
	for _, e := range st.Logs {
		kinds[e.EntryKind()]++
	}
	assert.Equal(t, 1, kinds[watch.KindUpdate])
}

func TestEmptyHighTierFallsThrough(t *testing.T) {
	sum, disp := newFixture("late minute", nil)
	now := t0.Add(11 * time.Minute)
	c := NewCascade(sum, disp, func() time.Time { return now })
	c.resetMarks(t0)

	disp.now = t0
	_ = disp.Dispatch(watch.StartWatching{})
	// Updates only in the last minute; tier two fired but has no
	// tier-one summaries to consume.
	disp.now = t0.Add(10*time.Minute + 30*time.Second)
	_ = disp.Dispatch(watch.DetectionUpdate{Confidence: 10, Reason: "late"})

	disp.now = now
	c.Evaluate(context.Background(), disp.snapshot())

	st := disp.snapshot()
	top, ok := st.Logs[0].(watch.SummaryEntry)
	require.True(t, ok)
	assert.Equal(t, watch.LevelOneMinute, top.Level, "an idle high tier must not starve the minute tier")
}

func TestSingleFlight(t *testing.T) {
	sum, disp := newFixture("slow", nil)
	sum.block = make(chan struct{})
	sum.inCall = make(chan struct{})
	now := t0.Add(61 * time.Second)
	c := NewCascade(sum, disp, func() time.Time { return now })
	c.resetMarks(t0)

	watchingWithUpdates(disp, 5)
	disp.now = now

	done := make(chan struct{})
	go func() {
		c.Evaluate(context.Background(), disp.snapshot())
		close(done)
	}()
	<-sum.inCall

	// A second evaluation while busy is deferred, not queued.
	c.Evaluate(context.Background(), disp.snapshot())
	assert.Equal(t, 1, sum.callCount())

	close(sum.block)
	<-done
}

func TestEvaluateIgnoredWhileIdle(t *testing.T) {
	sum, disp := newFixture("x", nil)
	c := NewCascade(sum, disp, func() time.Time { return t0.Add(2 * time.Minute) })

	c.Evaluate(context.Background(), watch.NewState())
	assert.Zero(t, sum.callCount())
}

func TestReactReanchorsWatermarksOnSessionStart(t *testing.T) {
	sum, disp := newFixture("x", nil)
	c := NewCascade(sum, disp, func() time.Time { return t0 })

	prev := watch.NewState()
	disp.now = t0.Add(time.Hour)
	_ = disp.Dispatch(watch.StartWatching{})
	next := disp.snapshot()

	c.React(context.Background(), prev, next)
	assert.Equal(t, t0.Add(time.Hour), c.markFor(watch.LevelOneMinute))
	assert.Equal(t, t0.Add(time.Hour), c.markFor(watch.LevelTwoHours))
}
