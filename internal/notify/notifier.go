// Package notify delivers detection alert emails and periodic digest
// emails. Delivery is exactly-once per detection entry: an id-keyed
// in-flight set guards concurrent evaluation, and the sent flag lives
// in the log entry itself.
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

// Email is the outbound message contract of the email collaborator.
type Email struct {
	Subject         string `json:"subject"`
	HTMLBody        string `json:"html_body"`
	ToEmail         string `json:"to_email"`
	VideoAttachment string `json:"video_attachment,omitempty"`
}

// Mailer delivers an email. Implementations call the external send
// endpoint.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Default delays around a detection clip.
const (
	// DefaultPostDetection is how long recording continues after a
	// detection before the clip is finalized.
	DefaultPostDetection = 4 * time.Second
	// DefaultClipGrace is the additional wait before an alert goes out
	// without a clip attachment.
	DefaultClipGrace = 5 * time.Second
)

// Notifier sends one alert email per detection entry. An alert waits
// for the clip to attach, or for the post-detection duration plus a
// grace period to elapse, whichever comes first; demo sessions send
// immediately since no clip is expected. Failed sends are retried on
// the next log change.
type Notifier struct {
	mailer        Mailer
	dispatch      Dispatcher
	clock         func() time.Time
	postDetection time.Duration
	grace         time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewNotifier creates the alert notifier. Zero durations use the
// defaults; a nil clock uses the wall clock.
func NewNotifier(m Mailer, d Dispatcher, clock func() time.Time, postDetection, grace time.Duration) *Notifier {
	if clock == nil {
		clock = time.Now
	}
	if postDetection <= 0 {
		postDetection = DefaultPostDetection
	}
	if grace <= 0 {
		grace = DefaultClipGrace
	}
	return &Notifier{
		mailer:        m,
		dispatch:      d,
		clock:         clock,
		postDetection: postDetection,
		grace:         grace,
		inflight:      make(map[string]struct{}),
	}
}

func (n *Notifier) Name() string { return "email-notifier" }

// React evaluates pending alerts on every log change. Clip attachments
// and sent flags replace entries without changing the log length, so
// the comparison is entry-wise, not length-only. The sends run off the
// session goroutine.
func (n *Notifier) React(ctx context.Context, prev, next watch.State) {
	if sameLogs(prev.Logs, next.Logs) &&
		prev.Notifications[watch.ChannelEmail] == next.Notifications[watch.ChannelEmail] &&
		prev.ToEmailAddress == next.ToEmailAddress {
		return
	}
	go n.Evaluate(ctx, next)
}

// Evaluate sends alerts for every detection entry that is due. Safe to
// call from any goroutine; entries already being sent are skipped.
func (n *Notifier) Evaluate(ctx context.Context, st watch.State) {
	if !st.Notifications[watch.ChannelEmail] || st.ToEmailAddress == "" {
		return
	}

	now := n.clock()
	for _, entry := range st.Logs {
		d, ok := entry.(watch.DetectionEntry)
		if !ok {
			continue
		}
		if d.EmailSent {
			// The sent flag reached the log, so a claim held since the
			// successful send can go.
			n.release(d.EntryID())
			continue
		}
		if !n.due(d, st.DemoMode, now) {
			continue
		}
		if !n.claim(d.EntryID()) {
			continue
		}
		if err := n.send(ctx, st.ToEmailAddress, d); err != nil {
			// Releasing only on failure keeps the retry path open while a
			// successful send stays claimed until a snapshot shows the
			// flag applied; the sent event sits in the engine inbox for a
			// moment and a re-check in that window must not send again.
			n.release(d.EntryID())
		}
	}
}

// due reports whether the alert should go out now: clip attached, demo
// session, or the clip wait expired.
func (n *Notifier) due(d watch.DetectionEntry, demoMode bool, now time.Time) bool {
	if d.VideoURL != "" || demoMode {
		return true
	}
	return now.Sub(d.EntryTime()) > n.postDetection+n.grace
}

func (n *Notifier) claim(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, busy := n.inflight[id]; busy {
		return false
	}
	n.inflight[id] = struct{}{}
	return true
}

func (n *Notifier) release(id string) {
	n.mu.Lock()
	delete(n.inflight, id)
	n.mu.Unlock()
}

func (n *Notifier) send(ctx context.Context, to string, d watch.DetectionEntry) error {
	msg := Email{
		Subject: "Sentinela Detection Alert!",
		HTMLBody: fmt.Sprintf(
			"<h2>Detection Alert</h2>"+
				"<p><strong>Time:</strong> %s</p>"+
				"<p><strong>Prompt:</strong> %s</p>"+
				"<p><strong>Confidence:</strong> %.0f%%</p>"+
				"<p><strong>Reason:</strong> %s</p>"+
				"<br><br><i>Sentinela is watching</i>",
			d.EntryTime().Format(time.RFC1123), d.Prompt, d.Confidence, d.Reason),
		ToEmail:         to,
		VideoAttachment: d.VideoURL,
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		// Retried on the next log change; no permanent failure state.
		observability.RecordEmail("alert", "error")
		log.Printf("notify: alert for %s failed: %v", d.EntryID(), err)
		return err
	}
	observability.RecordEmail("alert", "ok")
	if err := n.dispatch.Dispatch(watch.EmailNotificationSent{LogID: d.EntryID()}); err != nil {
		log.Printf("notify: dispatch: %v", err)
		return err
	}
	return nil
}

func sameLogs(a, b []watch.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
