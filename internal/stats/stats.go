// Package stats holds the bridge's agent-state enum and monotonic counters.
package stats

import (
	"sync/atomic"
	"time"
)

// AgentState is the coarse lifecycle state of the bridge.
type AgentState int

const (
	StateInitializing AgentState = iota
	StateConnecting
	StateReady
	StateActive
	StatePaused
	StateStopping
	StateStopped
	StateError
)

func (s AgentState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// BridgeStats holds monotonic atomic counters, which the bridge's RTP
// receive goroutine, audio pumps and AI callbacks each update directly,
// plus the lifecycle state and start time.
type BridgeStats struct {
	RTPPacketsReceived atomic.Uint64
	RTPPacketsSent     atomic.Uint64
	RTPBytesReceived   atomic.Uint64
	RTPBytesSent       atomic.Uint64
	AudioChunksToAI    atomic.Uint64
	AudioChunksFromAI  atomic.Uint64
	AudioBytesToAI     atomic.Uint64
	AudioBytesFromAI   atomic.Uint64
	AIInterruptions    atomic.Uint64
	AITurnCompletions  atomic.Uint64
	ParticipantsSeen   atomic.Uint64
	DecodeErrors       atomic.Uint64
	EncodeErrors       atomic.Uint64
	JanusErrors        atomic.Uint64
	AIErrors           atomic.Uint64
	SilenceFiltered    atomic.Uint64

	state     atomic.Int32
	StartedAt time.Time
}

// SetState updates the lifecycle state.
func (s *BridgeStats) SetState(st AgentState) {
	s.state.Store(int32(st))
}

// State returns the current lifecycle state.
func (s *BridgeStats) State() AgentState {
	return AgentState(s.state.Load())
}

// Snapshot is an immutable, JSON-friendly view of BridgeStats for the CLI's
// "get" verb and internal/bridge's GetStatus.
type Snapshot struct {
	State              string    `json:"state"`
	StartedAt          time.Time `json:"started_at"`
	RTPPacketsReceived uint64    `json:"rtp_packets_received"`
	RTPPacketsSent     uint64    `json:"rtp_packets_sent"`
	RTPBytesReceived   uint64    `json:"rtp_bytes_received"`
	RTPBytesSent       uint64    `json:"rtp_bytes_sent"`
	AudioChunksToAI    uint64    `json:"audio_chunks_to_ai"`
	AudioChunksFromAI  uint64    `json:"audio_chunks_from_ai"`
	AudioBytesToAI     uint64    `json:"audio_bytes_to_ai"`
	AudioBytesFromAI   uint64    `json:"audio_bytes_from_ai"`
	AIInterruptions    uint64    `json:"ai_interruptions"`
	AITurnCompletions  uint64    `json:"ai_turn_completions"`
	ParticipantsSeen   uint64    `json:"participants_seen"`
	DecodeErrors       uint64    `json:"decode_errors"`
	EncodeErrors       uint64    `json:"encode_errors"`
	JanusErrors        uint64    `json:"janus_errors"`
	AIErrors           uint64    `json:"ai_errors"`
	SilenceFiltered    uint64    `json:"silence_filtered"`
}

// Snapshot takes a point-in-time copy of every counter.
func (s *BridgeStats) Snapshot() Snapshot {
	return Snapshot{
		State:              s.State().String(),
		StartedAt:          s.StartedAt,
		RTPPacketsReceived: s.RTPPacketsReceived.Load(),
		RTPPacketsSent:     s.RTPPacketsSent.Load(),
		RTPBytesReceived:   s.RTPBytesReceived.Load(),
		RTPBytesSent:       s.RTPBytesSent.Load(),
		AudioChunksToAI:    s.AudioChunksToAI.Load(),
		AudioChunksFromAI:  s.AudioChunksFromAI.Load(),
		AudioBytesToAI:     s.AudioBytesToAI.Load(),
		AudioBytesFromAI:   s.AudioBytesFromAI.Load(),
		AIInterruptions:    s.AIInterruptions.Load(),
		AITurnCompletions:  s.AITurnCompletions.Load(),
		ParticipantsSeen:   s.ParticipantsSeen.Load(),
		DecodeErrors:       s.DecodeErrors.Load(),
		EncodeErrors:       s.EncodeErrors.Load(),
		JanusErrors:        s.JanusErrors.Load(),
		AIErrors:           s.AIErrors.Load(),
		SilenceFiltered:    s.SilenceFiltered.Load(),
	}
}
