package pairchat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStopGateRefusesShortConversation(t *testing.T) {
	remaining, err := CheckStopGate(Thresholds{Low: 5, High: 10}, 2, 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooShort))
	assert.Equal(t, 5, remaining)
}

func TestCheckStopGateAllowsWhenOneSideReachedLow(t *testing.T) {
	remaining, err := CheckStopGate(Thresholds{Low: 5, High: 10}, 5, 1)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestComputeProgressLevels(t *testing.T) {
	th := Thresholds{Low: 5, High: 10}
	tests := []struct {
		name        string
		self, other int
		level       ProgressLevel
		canStop     bool
		remaining   int
	}{
		{"fresh", 0, 0, ProgressTooShort, false, 9},
		{"almost", 4, 4, ProgressTooShort, false, 1},
		{"enough", 5, 4, ProgressEnough, true, 0},
		{"too long", 10, 9, ProgressTooLong, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeProgress(th, tt.self, tt.other)
			assert.Equal(t, tt.level, p.Level)
			assert.Equal(t, tt.canStop, p.CanStop)
			assert.Equal(t, tt.remaining, p.Remaining)
		})
	}
}

func TestComputeProgressPercent(t *testing.T) {
	p := ComputeProgress(Thresholds{Low: 5, High: 10}, 10, 10)
	assert.InDelta(t, 90.0, p.Percent, 1e-9)
	assert.Equal(t, "red", p.Level.Color())
}
