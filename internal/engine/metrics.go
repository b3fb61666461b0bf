package engine

import (
	"context"

	"github.com/sentinela-dev/sentinela/internal/watch"
	"github.com/sentinela-dev/sentinela/pkg/observability"
)

// MetricsReactor publishes session gauges and counters from state
// transitions.
type MetricsReactor struct{}

func NewMetricsReactor() *MetricsReactor { return &MetricsReactor{} }

func (*MetricsReactor) Name() string { return "metrics" }

func (*MetricsReactor) React(_ context.Context, prev, next watch.State) {
	if prev.Phase != next.Phase {
		observability.SetSessionPhase(phaseValue(next.Phase))
		if next.Phase == watch.PhaseDetected {
			observability.RecordDetection()
		}
	}
	if len(prev.Logs) != len(next.Logs) {
		observability.SetLogEntries(len(next.Logs))
	}
}

func phaseValue(p watch.Phase) int {
	switch p {
	case watch.PhaseWatching:
		return 1
	case watch.PhaseDetected:
		return 2
	default:
		return 0
	}
}
