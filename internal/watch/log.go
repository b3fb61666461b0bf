package watch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of a watch log entry.
type Kind string

const (
	// KindStart marks the beginning of a watching session.
	KindStart Kind = "start"
	// KindStop marks a manual stop of a watching session.
	KindStop Kind = "stop"
	// KindUpdate records a single inference result below the detection gate.
	KindUpdate Kind = "update"
	// KindDetection records a confirmed detection.
	KindDetection Kind = "detection"
	// KindSummary records an aggregated summary of consumed entries.
	KindSummary Kind = "summary"
)

// SummaryLevel is one of the escalating time windows used to
// cascade-compress watch logs. Higher levels cover longer windows.
type SummaryLevel int

const (
	LevelNone          SummaryLevel = 0
	LevelOneMinute     SummaryLevel = 1
	LevelTenMinutes    SummaryLevel = 2
	LevelThirtyMinutes SummaryLevel = 3
	LevelOneHour       SummaryLevel = 4
	LevelTwoHours      SummaryLevel = 5
)

// Levels lists all summary levels in ascending order.
var Levels = []SummaryLevel{
	LevelOneMinute,
	LevelTenMinutes,
	LevelThirtyMinutes,
	LevelOneHour,
	LevelTwoHours,
}

// Window returns the time window covered by the level.
func (l SummaryLevel) Window() time.Duration {
	switch l {
	case LevelOneMinute:
		return time.Minute
	case LevelTenMinutes:
		return 10 * time.Minute
	case LevelThirtyMinutes:
		return 30 * time.Minute
	case LevelOneHour:
		return time.Hour
	case LevelTwoHours:
		return 2 * time.Hour
	default:
		return 0
	}
}

func (l SummaryLevel) String() string {
	switch l {
	case LevelOneMinute:
		return "1m"
	case LevelTenMinutes:
		return "10m"
	case LevelThirtyMinutes:
		return "30m"
	case LevelOneHour:
		return "1h"
	case LevelTwoHours:
		return "2h"
	default:
		return "none"
	}
}

// Entry is a single watch log entry. Each kind carries only its
// relevant fields; entries are immutable values, the reducer replaces
// an entry rather than mutating it in place.
type Entry interface {
	// EntryID returns the unique identifier of the entry.
	EntryID() string
	// EntryTime returns the creation time of the entry.
	EntryTime() time.Time
	// EntryKind returns the kind tag of the entry.
	EntryKind() Kind
}

type entryMeta struct {
	ID   string
	Time time.Time
}

func (m entryMeta) EntryID() string      { return m.ID }
func (m entryMeta) EntryTime() time.Time { return m.Time }

func newMeta(now time.Time) entryMeta {
	return entryMeta{ID: newEntryID(now), Time: now}
}

// newEntryID builds an identifier that sorts roughly by creation time
// and is unique enough to dedupe concurrent notification work.
func newEntryID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// StartEntry marks the beginning of a watching session.
type StartEntry struct {
	entryMeta
	Prompt string
}

func (StartEntry) EntryKind() Kind { return KindStart }

// StopEntry marks a manual stop.
type StopEntry struct {
	entryMeta
	Prompt string
}

func (StopEntry) EntryKind() Kind { return KindStop }

// UpdateEntry records one inference result that did not confirm a
// detection.
type UpdateEntry struct {
	entryMeta
	Confidence float64
	Reason     string
	Prompt     string
}

func (UpdateEntry) EntryKind() Kind { return KindUpdate }

// DetectionEntry records a confirmed detection. VideoURL and EmailSent
// are the only late mutations allowed on a log entry; both are applied
// by the reducer via dedicated events.
type DetectionEntry struct {
	entryMeta
	Confidence float64
	Reason     string
	Prompt     string
	VideoURL   string
	EmailSent  bool
}

func (DetectionEntry) EntryKind() Kind { return KindDetection }

// SummaryEntry holds the condensed text of consumed lower entries.
type SummaryEntry struct {
	entryMeta
	Level   SummaryLevel
	Summary string
}

func (SummaryEntry) EntryKind() Kind { return KindSummary }

// CountDetections returns the number of detection entries in the log.
func CountDetections(logs []Entry) int {
	n := 0
	for _, e := range logs {
		if e.EntryKind() == KindDetection {
			n++
		}
	}
	return n
}

// prepend returns a new slice with e in front of logs. The input slice
// is never modified, keeping reducer output free of aliasing.
func prepend(logs []Entry, e Entry) []Entry {
	out := make([]Entry, 0, len(logs)+1)
	out = append(out, e)
	return append(out, logs...)
}
