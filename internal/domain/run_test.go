package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunState_ForwardPath(t *testing.T) {
	var state RunState
	for _, next := range runOrder {
		assert.True(t, state.CanTransition(next), "%q -> %q", state, next)
		state = next
	}
	assert.True(t, state.IsTerminal())
	assert.False(t, state.CanTransition(RunFailed))
}

func TestRunState_SkippingIsRejected(t *testing.T) {
	assert.False(t, RunCollected.CanTransition(RunRanked))
	assert.False(t, RunRanked.CanTransition(RunCoalesced))
	assert.False(t, RunState("").CanTransition(RunNormalized))
}

func TestRunState_FailedFromAnyActiveState(t *testing.T) {
	for _, st := range runOrder[:len(runOrder)-1] {
		assert.True(t, st.CanTransition(RunFailed), string(st))
	}
	assert.False(t, RunFailed.CanTransition(RunCollected))
}

func TestTier_Weight(t *testing.T) {
	assert.Greater(t, TierHigh.Weight(), TierMedium.Weight())
	assert.Greater(t, TierMedium.Weight(), TierLow.Weight())
	assert.Equal(t, 0, Tier("critical").Weight())
	assert.False(t, Tier("critical").IsValid())
}
