package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelWindows(t *testing.T) {
	tests := []struct {
		level  SummaryLevel
		window time.Duration
	}{
		{LevelOneMinute, time.Minute},
		{LevelTenMinutes, 10 * time.Minute},
		{LevelThirtyMinutes, 30 * time.Minute},
		{LevelOneHour, time.Hour},
		{LevelTwoHours, 2 * time.Hour},
		{LevelNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.window, tt.level.Window())
		})
	}
}

func TestLevelsAscending(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		assert.Greater(t, Levels[i].Window(), Levels[i-1].Window())
	}
}

func TestCountDetections(t *testing.T) {
	now := time.Now()
	logs := []Entry{
		DetectionEntry{entryMeta: newMeta(now), Confidence: 95},
		UpdateEntry{entryMeta: newMeta(now), Confidence: 10},
		DetectionEntry{entryMeta: newMeta(now), Confidence: 92},
		StartEntry{entryMeta: newMeta(now)},
	}
	assert.Equal(t, 2, CountDetections(logs))
	assert.Equal(t, 0, CountDetections(nil))
}

func TestEntryIDsUnique(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newEntryID(now)
		assert.False(t, seen[id], "entry ids must not collide")
		seen[id] = true
	}
}

func TestPrependLeavesInputIntact(t *testing.T) {
	now := time.Now()
	a := UpdateEntry{entryMeta: newMeta(now), Reason: "a"}
	b := UpdateEntry{entryMeta: newMeta(now), Reason: "b"}

	logs := []Entry{a}
	out := prepend(logs, b)

	assert.Len(t, out, 2)
	assert.Equal(t, b.EntryID(), out[0].EntryID())
	assert.Len(t, logs, 1, "input slice must be untouched")
}
