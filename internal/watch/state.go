package watch

import "time"

// Phase is the detection session's current mode.
type Phase string

const (
	// PhaseIdle means no session is running.
	PhaseIdle Phase = "idle"
	// PhaseWatching means frames are being analyzed for the prompt.
	PhaseWatching Phase = "watching"
	// PhaseDetected means a detection was just confirmed; the session
	// auto-reverts to watching after a short hold.
	PhaseDetected Phase = "detected"
)

// Channel is a toggleable notification channel.
type Channel string

const (
	ChannelSound Channel = "sound"
	ChannelEmail Channel = "email"
)

// Demo describes one entry of the demo catalog.
type Demo struct {
	Name           string `json:"demo_name"`
	Prompt         string `json:"prompt"`
	File           string `json:"file"`
	TranslationKey string `json:"translation_key"`
}

// State is the canonical record of a watching session. It is owned
// exclusively by the reducer: collaborators read snapshots and
// communicate intent by dispatching events, never by mutation.
//
// The zero-ish value produced by NewState is a fresh idle session.
type State struct {
	Phase                 Phase
	Confidence            float64
	ConsecutiveDetections int

	// Reason is the last surfaced explanation. Updates are throttled
	// while watching; LastReasonUpdate gates the throttle.
	Reason           string
	LastReasonUpdate time.Time

	// WatchingStart anchors duration displays and summarization
	// watermarks. Zero while idle.
	WatchingStart time.Time

	// Logs is newest-first.
	Logs []Entry

	Notifications       map[Channel]bool
	EmailUpdateInterval SummaryLevel
	ToEmailAddress      string

	Prompt           string
	CurrentLanguage  string
	PreviousLanguage string
	LoadingText      bool
	Texts            map[string]string

	DemoMode    bool
	CurrentDemo *Demo
	Demos       []Demo

	PlaceholderIndex int
	FPS              int
	ImageQuality     float64

	// LastFrame holds the most recent captured frame as an opaque
	// payload for the inference transport.
	LastFrame []byte
	// FrameSeq increments on every video-frame event so readers can
	// tell a fresh frame from a re-delivered snapshot.
	FrameSeq uint64
}

// NewState returns a fresh idle session with defaults.
func NewState() State {
	return State{
		Phase: PhaseIdle,
		Notifications: map[Channel]bool{
			ChannelSound: true,
			ChannelEmail: false,
		},
		CurrentLanguage:  "en",
		PreviousLanguage: "en",
		Texts:            map[string]string{},
		FPS:              3,
		ImageQuality:     0.9,
	}
}

// Watching reports whether a session is active (watching or detected).
func (s State) Watching() bool {
	return s.Phase == PhaseWatching || s.Phase == PhaseDetected
}

// cloneNotifications copies the channel map before a toggle so older
// snapshots keep their view.
func cloneNotifications(m map[Channel]bool) map[Channel]bool {
	out := make(map[Channel]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
