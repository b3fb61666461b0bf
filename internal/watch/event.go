package watch

// Event is a session intent applied by the reducer. Events are plain
// values; the apply time is passed alongside so the reducer itself
// never reads the wall clock.
type Event interface {
	isEvent()
}

// Lifecycle events.

// StartWatching begins a camera watching session with the current
// prompt.
type StartWatching struct{}

// StopWatching ends the session manually.
type StopWatching struct{}

// DemoStart begins a watching session for a demo scenario.
type DemoStart struct {
	Demo Demo
}

// DemoModeSwitch toggles demo mode; switching while a session is
// active drops the session back to idle.
type DemoModeSwitch struct {
	DemoMode bool
}

// Detection events.

// DetectionUpdate carries one inference result.
type DetectionUpdate struct {
	Confidence float64
	Reason     string
}

// DetectionReset reverts a detected session back to watching. It is
// dispatched by a timer a few seconds after a detection.
type DetectionReset struct{}

// DetectionClip attaches a finalized video clip to the newest
// detection entry that does not have one yet.
type DetectionClip struct {
	VideoURL string
}

// Logging events.

// LogAdd appends an arbitrary entry, used by manual tooling.
type LogAdd struct {
	Kind       Kind
	Confidence float64
	Reason     string
	Prompt     string
}

// LogClear drops all log entries.
type LogClear struct{}

// LogSummarized replaces the consumed entries with one summary entry.
type LogSummarized struct {
	Summary    string
	ConsumedID []string
	Level      SummaryLevel
}

// Notification events.

// NotificationToggle flips one notification channel.
type NotificationToggle struct {
	Channel Channel
}

// EmailNotificationSent marks a detection entry as notified.
type EmailNotificationSent struct {
	LogID string
}

// EmailUpdateIntervalChange selects the digest tier (LevelNone
// disables digests).
type EmailUpdateIntervalChange struct {
	Level SummaryLevel
}

// ToEmailAddressChange sets the notification address.
type ToEmailAddressChange struct {
	Address string
}

// Config and UX events.

// PromptChange edits the detection prompt.
type PromptChange struct {
	Prompt string
}

// LanguageChange requests a language switch; only honored while idle.
type LanguageChange struct {
	Language string
}

// LanguageLoadStart marks a translation fetch in progress.
type LanguageLoadStart struct{}

// LanguageLoadSuccess installs a loaded translation map.
type LanguageLoadSuccess struct {
	Texts map[string]string
}

// LanguageLoadError reverts to the previous language after a failed
// translation fetch.
type LanguageLoadError struct {
	Err string
}

// PlaceholderRotate advances the rotating prompt placeholder.
type PlaceholderRotate struct {
	Count int
}

// FPSChange sets the frame capture rate.
type FPSChange struct {
	FPS int
}

// ImageQualityChange sets the frame encoding quality.
type ImageQualityChange struct {
	Quality float64
}

// InitLoad installs server-provided startup configuration.
type InitLoad struct {
	ToEmailAddress string
}

// DemosLoad installs the demo catalog.
type DemosLoad struct {
	Demos []Demo
}

// VideoFrame delivers a captured frame as an opaque payload.
type VideoFrame struct {
	Data []byte
}

func (StartWatching) isEvent()             {}
func (StopWatching) isEvent()              {}
func (DemoStart) isEvent()                 {}
func (DemoModeSwitch) isEvent()            {}
func (DetectionUpdate) isEvent()           {}
func (DetectionReset) isEvent()            {}
func (DetectionClip) isEvent()             {}
func (LogAdd) isEvent()                    {}
func (LogClear) isEvent()                  {}
func (LogSummarized) isEvent()             {}
func (NotificationToggle) isEvent()        {}
func (EmailNotificationSent) isEvent()     {}
func (EmailUpdateIntervalChange) isEvent() {}
func (ToEmailAddressChange) isEvent()      {}
func (PromptChange) isEvent()              {}
func (LanguageChange) isEvent()            {}
func (LanguageLoadStart) isEvent()         {}
func (LanguageLoadSuccess) isEvent()       {}
func (LanguageLoadError) isEvent()         {}
func (PlaceholderRotate) isEvent()         {}
func (FPSChange) isEvent()                 {}
func (ImageQualityChange) isEvent()        {}
func (InitLoad) isEvent()                  {}
func (DemosLoad) isEvent()                 {}
func (VideoFrame) isEvent()                {}
