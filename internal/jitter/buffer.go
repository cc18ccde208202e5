// Package jitter reorders out-of-order RTP packets by sequence number,
// tolerating a bounded amount of loss before skipping ahead.
package jitter

import (
	"sync"
	"sync/atomic"

	"github.com/andrija/agentbridge/internal/rtpcodec"
)

const (
	defaultMaxPackets    = 50
	defaultSkipThreshold = 16
)

// Buffer reorders RTP packets by 16-bit sequence number with wraparound.
type Buffer struct {
	maxPackets    int
	skipThreshold int

	mu            sync.Mutex
	packets       map[uint16]rtpcodec.Packet
	nextSequence  int32 // -1 means "uninitialized"

	PacketsIn      atomic.Uint64
	PacketsOut     atomic.Uint64
	PacketsDropped atomic.Uint64
}

// NewBuffer builds a Buffer. maxPackets bounds memory before a forced
// resync; skipThreshold bounds how many consecutive missing sequence
// numbers will be skipped over before Get gives up and returns nothing.
func NewBuffer(maxPackets, skipThreshold int) *Buffer {
	if maxPackets <= 0 {
		maxPackets = defaultMaxPackets
	}
	if skipThreshold <= 0 {
		skipThreshold = defaultSkipThreshold
	}
	return &Buffer{
		maxPackets:    maxPackets,
		skipThreshold: skipThreshold,
		packets:       make(map[uint16]rtpcodec.Packet),
		nextSequence:  -1,
	}
}

// Put stores a packet, keyed by its sequence number.
func (b *Buffer) Put(pkt rtpcodec.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.PacketsIn.Add(1)
	b.packets[pkt.SequenceNumber] = pkt

	if b.nextSequence < 0 {
		b.nextSequence = int32(pkt.SequenceNumber)
	}

	if len(b.packets) > b.maxPackets {
		b.forceOutputLocked()
	}
}

// Get returns the next in-sequence packet if available. If the expected
// sequence number is missing, it looks ahead up to skipThreshold slots and
// skips over the gap, counting the skipped packets as dropped. Returns
// false if nothing is ready yet.
func (b *Buffer) Get() (rtpcodec.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nextSequence < 0 {
		return rtpcodec.Packet{}, false
	}

	seq := uint16(b.nextSequence)
	if pkt, ok := b.packets[seq]; ok {
		delete(b.packets, seq)
		b.nextSequence = int32(seq + 1)
		b.PacketsOut.Add(1)
		return pkt, true
	}

	for i := 1; i <= b.skipThreshold; i++ {
		checkSeq := seq + uint16(i)
		if pkt, ok := b.packets[checkSeq]; ok {
			b.PacketsDropped.Add(uint64(i))
			delete(b.packets, checkSeq)
			b.nextSequence = int32(checkSeq + 1)
			b.PacketsOut.Add(1)
			return pkt, true
		}
	}

	return rtpcodec.Packet{}, false
}

// forceOutputLocked resyncs to the numerically lowest buffered sequence
// number when the buffer has grown past its cap. The comparison is not
// wraparound-aware; overflow is rare enough that a plain reset suffices.
// Caller must hold mu.
func (b *Buffer) forceOutputLocked() {
	if len(b.packets) == 0 {
		return
	}
	var min uint16
	first := true
	for seq := range b.packets {
		if first || seq < min {
			min = seq
			first = false
		}
	}
	b.nextSequence = int32(min)
}

// Clear drops all buffered packets and resets sequence tracking.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = make(map[uint16]rtpcodec.Packet)
	b.nextSequence = -1
}

// Size returns the number of currently buffered packets.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}
