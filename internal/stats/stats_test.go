package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", AgentState(99).String())
}

func TestSetStateAndState(t *testing.T) {
	var s BridgeStats
	assert.Equal(t, StateInitializing, s.State())

	s.SetState(StateActive)
	assert.Equal(t, StateActive, s.State())
}

func TestSnapshotReflectsCounters(t *testing.T) {
	var s BridgeStats
	s.SetState(StateReady)
	s.RTPPacketsReceived.Add(3)
	s.AudioBytesFromAI.Add(128)

	snap := s.Snapshot()
	assert.Equal(t, "ready", snap.State)
	assert.Equal(t, uint64(3), snap.RTPPacketsReceived)
	assert.Equal(t, uint64(128), snap.AudioBytesFromAI)
}
