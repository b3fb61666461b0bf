package notify

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

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// digestHarness starts a watching session with email and the
// one-minute digest tier enabled, and anchors the digest watermark to
// the session start via React.
func digestHarness(d *Digest) *harness {
	h := newHarness()
	prev := h.snapshot()
	h.at(t0, watch.NotificationToggle{Channel: watch.ChannelEmail})
	h.at(t0, watch.ToEmailAddressChange{Address: "ops@example.com"})
	h.at(t0, watch.EmailUpdateIntervalChange{Level: watch.LevelOneMinute})
	h.at(t0, watch.PromptChange{Prompt: "cat enters room"})
	h.at(t0, watch.StartWatching{})
	d.React(context.Background(), prev, h.snapshot())
	return h
}

func TestDigestSendsAfterWindow(t *testing.T) {
	mailer := &fakeMailer{}
	clock := &testClock{now: t0}
	d := NewDigest(mailer, clock.Now)
	h := digestHarness(d)

	h.at(t0.Add(70*time.Second), watch.LogSummarized{Summary: "a calm minute", Level: watch.LevelOneMinute})

	clock.Set(t0.Add(75 * time.Second))
	d.Evaluate(context.Background(), h.snapshot())

	require.Equal(t, 1, mailer.count())
	msg := mailer.last()
	assert.Contains(t, msg.Subject, "Still Watching (1m)")
	assert.Contains(t, msg.HTMLBody, "cat enters room")
	assert.Contains(t, msg.HTMLBody, "a calm minute")
	assert.Equal(t, "ops@example.com", msg.ToEmail)

	// Watermark advanced to the summary timestamp: the same summary
	// does not send again.
	clock.Set(t0.Add(80 * time.Second))
	d.Evaluate(context.Background(), h.snapshot())
	assert.Equal(t, 1, mailer.count())
}

func TestDigestWaitsForWindow(t *testing.T) {
	mailer := &fakeMailer{}
	clock := &testClock{now: t0}
	d := NewDigest(mailer, clock.Now)
	h := digestHarness(d)

	h.at(t0.Add(30*time.Second), watch.LogSummarized{Summary: "early", Level: watch.LevelOneMinute})

	clock.Set(t0.Add(45 * time.Second))
	d.Evaluate(context.Background(), h.snapshot())
	assert.Zero(t, mailer.count(), "window has not elapsed yet")
}

func TestDigestWaitsForQualifyingSummary(t *testing.T) {
	mailer := &fakeMailer{}
	clock := &testClock{now: t0.Add(2 * time.Minute)}
	d := NewDigest(mailer, clock.Now)
	h := digestHarness(d)

	// No summary at all.
	d.Evaluate(context.Background(), h.snapshot())
	assert.Zero(t, mailer.count())

	// A summary of the wrong tier does not qualify.
	h.at(t0.Add(90*time.Second), watch.LogSummarized{Summary: "rollup", Level: watch.LevelTenMinutes})
	d.Evaluate(context.Background(), h.snapshot())
	assert.Zero(t, mailer.count())
}

func TestDigestRequiresActiveWatchingAndInterval(t *testing.T) {
	mailer := &fakeMailer{}
	clock := &testClock{now: t0.Add(2 * time.Minute)}
	d := NewDigest(mailer, clock.Now)
	h := digestHarness(d)
	h.at(t0.Add(70*time.Second), watch.LogSummarized{Summary: "x", Level: watch.LevelOneMinute})

	noInterval := h.snapshot()
	noInterval.EmailUpdateInterval = watch.LevelNone
	d.Evaluate(context.Background(), noInterval)
	assert.Zero(t, mailer.count())

	idle := h.snapshot()
	idle.Phase = watch.PhaseIdle
	d.Evaluate(context.Background(), idle)
	assert.Zero(t, mailer.count())
}

func TestDigestRetriedAfterFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("mail down")}
	clock := &testClock{now: t0.Add(75 * time.Second)}
	d := NewDigest(mailer, clock.Now)
	h := digestHarness(d)
	h.at(t0.Add(70*time.Second), watch.LogSummarized{Summary: "a calm minute", Level: watch.LevelOneMinute})

	d.Evaluate(context.Background(), h.snapshot())
	require.Equal(t, 1, mailer.count())

	// Failure left the watermark alone, so the next pass retries.
	mailer.err = nil
	d.Evaluate(context.Background(), h.snapshot())
	assert.Equal(t, 2, mailer.count())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", formatDuration(30*time.Second))
	assert.Equal(t, "45m", formatDuration(45*time.Minute))
	assert.Equal(t, "2h 15m", formatDuration(2*time.Hour+15*time.Minute))
}
