package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sentinela-dev/sentinela/internal/watch"
	"github.com/sentinela-dev/sentinela/pkg/observability"
)

// Digest sends a recurring update email while a session is watching
// and a summary interval is selected. Each digest carries the newest
// summary of exactly the selected tier produced since the last send;
// if the cascade has not produced one yet, the digest waits.
type Digest struct {
	mailer Mailer
	clock  func() time.Time

	mu       sync.Mutex
	lastSent time.Time
	sending  bool
}

// NewDigest creates the digest scheduler. A nil clock uses the wall
// clock.
func NewDigest(m Mailer, clock func() time.Time) *Digest {
	if clock == nil {
		clock = time.Now
	}
	return &Digest{mailer: m, clock: clock}
}

func (d *Digest) Name() string { return "email-digest" }

// React re-anchors the send watermark on session start and evaluates
// on every log change.
func (d *Digest) React(ctx context.Context, prev, next watch.State) {
	if !next.WatchingStart.IsZero() && !next.WatchingStart.Equal(prev.WatchingStart) {
		d.mu.Lock()
		d.lastSent = next.WatchingStart
		d.mu.Unlock()
	}
	if len(next.Logs) == len(prev.Logs) {
		return
	}
	go d.Evaluate(ctx, next)
}

// Evaluate sends one digest if the selected tier's window has elapsed
// since the last send and a qualifying summary exists. Failures leave
// the watermark unadvanced and are retried on the next log change.
func (d *Digest) Evaluate(ctx context.Context, st watch.State) {
	if st.Phase != watch.PhaseWatching ||
		st.EmailUpdateInterval == watch.LevelNone ||
		!st.Notifications[watch.ChannelEmail] ||
		st.ToEmailAddress == "" ||
		st.WatchingStart.IsZero() {
		return
	}

	d.mu.Lock()
	if d.sending {
		d.mu.Unlock()
		return
	}
	now := d.clock()
	if now.Sub(d.lastSent) < st.EmailUpdateInterval.Window() {
		d.mu.Unlock()
		return
	}
	latest, ok := latestSummary(st.Logs, st.EmailUpdateInterval, d.lastSent)
	if !ok {
		d.mu.Unlock()
		return
	}
	d.sending = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.sending = false
		d.mu.Unlock()
	}()

	duration := formatDuration(now.Sub(st.WatchingStart))
	msg := Email{
		Subject: fmt.Sprintf("Sentinela Update - Still Watching (%s)", duration),
		HTMLBody: fmt.Sprintf(
			"<h2>Watching Session Update</h2>"+
				"<p><strong>Watching:</strong> %s</p>"+
				"<p><strong>Duration:</strong> %s</p>"+
				"<p><strong>Detections:</strong> %d</p>"+
				"<hr><h3>Recent Activity Summary:</h3><p>%s</p>",
			st.Prompt, duration, watch.CountDetections(st.Logs), latest.Summary),
		ToEmail: st.ToEmailAddress,
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		observability.RecordEmail("digest", "error")
		log.Printf("notify: digest failed: %v", err)
		return
	}
	observability.RecordEmail("digest", "ok")

	d.mu.Lock()
	d.lastSent = latest.EntryTime()
	d.mu.Unlock()
}

// latestSummary returns the newest summary entry of exactly the given
// level created after the watermark. Logs are newest-first, so the
// first match wins.
func latestSummary(logs []watch.Entry, level watch.SummaryLevel, after time.Time) (watch.SummaryEntry, bool) {
	for _, e := range logs {
		s, ok := e.(watch.SummaryEntry)
		if !ok || s.Level != level {
			continue
		}
		if s.EntryTime().After(after) {
			return s, true
		}
	}
	return watch.SummaryEntry{}, false
}

// formatDuration renders an elapsed session duration as "2h 15m" or
// "45m".
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	hours := minutes / 60
	minutes %= 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
