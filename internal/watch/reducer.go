package watch

import "time"

// Tuning holds the detection constants. The observed production values
// are defaults, not literals, so deployments can trade sensitivity for
// noise.
type Tuning struct {
	// ConfidenceThreshold is the minimum confidence for an inference
	// result to count toward a detection.
	ConfidenceThreshold float64
	// ConsecutiveRequired is how many consecutive qualifying results
	// confirm a detection. Requiring more than one suppresses
	// single-frame false positives.
	ConsecutiveRequired int
	// ReasonHoldoff is the minimum spacing between surfaced reason
	// updates while watching. The detection-confirming update bypasses
	// the holdoff.
	ReasonHoldoff time.Duration
}

// DefaultTuning matches the observed production constants.
func DefaultTuning() Tuning {
	return Tuning{
		ConfidenceThreshold: 90,
		ConsecutiveRequired: 2,
		ReasonHoldoff:       2 * time.Second,
	}
}

// Reducer is the pure state-transition function for a watching
// session. Apply never panics and treats events that are invalid for
// the current phase as no-ops, which keeps the session robust to late
// or out-of-order async results.
type Reducer struct {
	tuning Tuning
}

// NewReducer returns a reducer with the given tuning. Zero fields fall
// back to the defaults.
func NewReducer(t Tuning) *Reducer {
	def := DefaultTuning()
	if t.ConfidenceThreshold <= 0 {
		t.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if t.ConsecutiveRequired <= 0 {
		t.ConsecutiveRequired = def.ConsecutiveRequired
	}
	if t.ReasonHoldoff <= 0 {
		t.ReasonHoldoff = def.ReasonHoldoff
	}
	return &Reducer{tuning: t}
}

// Tuning returns the effective tuning.
func (r *Reducer) Tuning() Tuning { return r.tuning }

// Apply applies one event to the state at the given time and returns
// the next state. The input state is never modified: slices and maps
// that change are replaced, so snapshots held by readers stay stable.
func (r *Reducer) Apply(s State, now time.Time, ev Event) State {
	switch e := ev.(type) {
	case StartWatching:
		return r.startSession(s, now, s.Prompt)

	case DemoStart:
		s.DemoMode = true
		demo := e.Demo
		s.CurrentDemo = &demo
		s.Prompt = demo.Prompt
		return r.startSession(s, now, demo.Prompt)

	case StopWatching:
		s.Phase = PhaseIdle
		s.Confidence = 0
		s.Logs = prepend(s.Logs, StopEntry{entryMeta: newMeta(now), Prompt: s.Prompt})
		return s

	case DemoModeSwitch:
		if s.Watching() {
			s.Phase = PhaseIdle
			s.Confidence = 0
		}
		s.DemoMode = e.DemoMode
		s.CurrentDemo = nil
		s.Prompt = ""
		s.Reason = ""
		return s

	case DetectionUpdate:
		return r.applyUpdate(s, now, e)

	case DetectionReset:
		if s.Phase == PhaseDetected {
			s.Phase = PhaseWatching
			s.Confidence = 0
			s.ConsecutiveDetections = 0
		}
		return s

	case DetectionClip:
		return attachClip(s, e.VideoURL)

	case EmailNotificationSent:
		return markEmailSent(s, e.LogID)

	case LogSummarized:
		if !s.Watching() {
			return s
		}
		return summarizeLogs(s, now, e)

	case LogAdd:
		if entry := buildEntry(now, e); entry != nil {
			s.Logs = prepend(s.Logs, entry)
		}
		return s

	case LogClear:
		s.Logs = nil
		return s

	case NotificationToggle:
		n := cloneNotifications(s.Notifications)
		n[e.Channel] = !n[e.Channel]
		s.Notifications = n
		return s

	case EmailUpdateIntervalChange:
		s.EmailUpdateInterval = e.Level
		return s

	case ToEmailAddressChange:
		s.ToEmailAddress = e.Address
		return s

	case PromptChange:
		s.Prompt = e.Prompt
		return s

	case LanguageChange:
		// Switching language mid-session would mix prompt languages.
		if s.Phase == PhaseIdle {
			s.PreviousLanguage = s.CurrentLanguage
			s.CurrentLanguage = e.Language
		}
		return s

	case LanguageLoadStart:
		s.LoadingText = true
		return s

	case LanguageLoadSuccess:
		s.Texts = e.Texts
		s.LoadingText = false
		return s

	case LanguageLoadError:
		s.LoadingText = false
		s.CurrentLanguage = s.PreviousLanguage
		return s

	case PlaceholderRotate:
		if e.Count > 0 {
			s.PlaceholderIndex = (s.PlaceholderIndex + 1) % e.Count
		}
		return s

	case FPSChange:
		s.FPS = e.FPS
		return s

	case ImageQualityChange:
		s.ImageQuality = e.Quality
		return s

	case InitLoad:
		s.ToEmailAddress = e.ToEmailAddress
		return s

	case DemosLoad:
		s.Demos = e.Demos
		return s

	case VideoFrame:
		s.LastFrame = e.Data
		s.FrameSeq++
		return s

	default:
		return s
	}
}

// startSession resets the session to a fresh watching sub-state with a
// single start entry.
func (r *Reducer) startSession(s State, now time.Time, prompt string) State {
	s.Phase = PhaseWatching
	s.Confidence = 0
	s.ConsecutiveDetections = 0
	s.Reason = ""
	s.LastReasonUpdate = time.Time{}
	s.LastFrame = nil
	s.WatchingStart = now
	s.Logs = []Entry{StartEntry{entryMeta: newMeta(now), Prompt: prompt}}
	return s
}

// applyUpdate runs the consecutive-detection debounce. Raw per-frame
// confidence is noisy; a detection is confirmed only after
// ConsecutiveRequired qualifying results in a row, and the surfaced
// reason is held for ReasonHoldoff between updates so the text does
// not flicker when the model restates itself every frame.
func (r *Reducer) applyUpdate(s State, now time.Time, e DetectionUpdate) State {
	if s.Phase != PhaseWatching || e.Reason == "" {
		return s
	}

	s.Confidence = e.Confidence

	if now.Sub(s.LastReasonUpdate) >= r.tuning.ReasonHoldoff {
		s.Reason = e.Reason
		s.LastReasonUpdate = now
	}

	if e.Confidence < r.tuning.ConfidenceThreshold {
		s.ConsecutiveDetections = 0
	} else {
		s.ConsecutiveDetections++
	}

	if s.ConsecutiveDetections < r.tuning.ConsecutiveRequired {
		s.Logs = prepend(s.Logs, UpdateEntry{
			entryMeta:  newMeta(now),
			Confidence: e.Confidence,
			Reason:     e.Reason,
			Prompt:     s.Prompt,
		})
		return s
	}

	// The confirming update always surfaces its reason.
	s.Phase = PhaseDetected
	s.Reason = e.Reason
	s.LastReasonUpdate = now
	s.Logs = prepend(s.Logs, DetectionEntry{
		entryMeta:  newMeta(now),
		Confidence: e.Confidence,
		Reason:     e.Reason,
		Prompt:     s.Prompt,
	})
	return s
}

// attachClip sets the clip URL on the newest detection entry that does
// not have one. Detections are rare under the debounce, so at most one
// entry is pending a clip in practice; first match wins.
func attachClip(s State, url string) State {
	for i, entry := range s.Logs {
		d, ok := entry.(DetectionEntry)
		if !ok || d.VideoURL != "" {
			continue
		}
		logs := make([]Entry, len(s.Logs))
		copy(logs, s.Logs)
		d.VideoURL = url
		logs[i] = d
		s.Logs = logs
		return s
	}
	return s
}

// markEmailSent flags a detection entry as notified. Applying the same
// event twice is a no-op beyond the flag already being set.
func markEmailSent(s State, logID string) State {
	for i, entry := range s.Logs {
		if entry.EntryID() != logID {
			continue
		}
		d, ok := entry.(DetectionEntry)
		if !ok {
			return s
		}
		logs := make([]Entry, len(s.Logs))
		copy(logs, s.Logs)
		d.EmailSent = true
		logs[i] = d
		s.Logs = logs
		return s
	}
	return s
}

// summarizeLogs replaces the consumed entries with a single summary
// entry; their information now lives only in the summary text.
func summarizeLogs(s State, now time.Time, e LogSummarized) State {
	consumed := make(map[string]struct{}, len(e.ConsumedID))
	for _, id := range e.ConsumedID {
		consumed[id] = struct{}{}
	}

	logs := make([]Entry, 0, len(s.Logs)+1)
	logs = append(logs, SummaryEntry{
		entryMeta: newMeta(now),
		Level:     e.Level,
		Summary:   e.Summary,
	})
	for _, entry := range s.Logs {
		if _, ok := consumed[entry.EntryID()]; !ok {
			logs = append(logs, entry)
		}
	}
	s.Logs = logs
	return s
}

func buildEntry(now time.Time, e LogAdd) Entry {
	switch e.Kind {
	case KindStart:
		return StartEntry{entryMeta: newMeta(now), Prompt: e.Prompt}
	case KindStop:
		return StopEntry{entryMeta: newMeta(now), Prompt: e.Prompt}
	case KindUpdate:
		return UpdateEntry{entryMeta: newMeta(now), Confidence: e.Confidence, Reason: e.Reason, Prompt: e.Prompt}
	case KindDetection:
		return DetectionEntry{entryMeta: newMeta(now), Confidence: e.Confidence, Reason: e.Reason, Prompt: e.Prompt}
	default:
		return nil
	}
}
