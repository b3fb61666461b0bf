package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

func TestDefaultConfigSeedsTuning(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	tuning := watch.NewReducer(watch.Tuning{
		ConfidenceThreshold: cfg.Detection.ConfidenceThreshold,
		ConsecutiveRequired: cfg.Detection.ConsecutiveRequired,
		ReasonHoldoff:       cfg.Detection.ReasonHoldoff.Std(),
	}).Tuning()

	assert.Equal(t, float64(90), tuning.ConfidenceThreshold)
	assert.Equal(t, 2, tuning.ConsecutiveRequired)
	assert.Equal(t, 2*time.Second, tuning.ReasonHoldoff)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "sentinela v")
}
