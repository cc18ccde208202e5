package jitter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrija/agentbridge/internal/rtpcodec"
)

func pkt(seq uint16) rtpcodec.Packet {
	return rtpcodec.Packet{SequenceNumber: seq, Payload: []byte{byte(seq)}}
}

func TestBufferReordersOutOfOrderPackets(t *testing.T) {
	b := NewBuffer(50, 16)

	// The first packet put sets the starting sequence; 3 then arrives
	// ahead of 2.
	b.Put(pkt(1))
	b.Put(pkt(3))
	b.Put(pkt(2))

	p1, ok := b.Get()
	require := assert.New(t)
	require.True(ok)
	require.Equal(uint16(1), p1.SequenceNumber)

	p2, ok := b.Get()
	require.True(ok)
	require.Equal(uint16(2), p2.SequenceNumber)

	p3, ok := b.Get()
	require.True(ok)
	require.Equal(uint16(3), p3.SequenceNumber)
}

func TestBufferReturnsFalseWhenNextMissing(t *testing.T) {
	b := NewBuffer(50, 16)
	b.Put(pkt(5))

	p5, ok := b.Get()
	assert.True(t, ok, "the first packet put sets the starting sequence and is ready at once")
	assert.Equal(t, uint16(5), p5.SequenceNumber)

	_, ok = b.Get()
	assert.False(t, ok, "sequence 6 never arrived, nothing should be ready")
}

func TestBufferSkipsLostPacketsWithinThreshold(t *testing.T) {
	b := NewBuffer(50, 16)
	b.Put(pkt(0))
	b.Put(pkt(5))

	p0, ok := b.Get()
	assert.True(t, ok)
	assert.Equal(t, uint16(0), p0.SequenceNumber)

	p5, ok := b.Get()
	assert.True(t, ok, "should skip ahead to seq 5 within threshold")
	assert.Equal(t, uint16(5), p5.SequenceNumber)
	assert.Equal(t, uint64(4), b.PacketsDropped.Load())
}

func TestBufferDoesNotSkipBeyondThreshold(t *testing.T) {
	b := NewBuffer(50, 4)
	b.Put(pkt(0))
	b.Put(pkt(10))

	_, ok := b.Get()
	assert.True(t, ok) // seq 0

	_, ok = b.Get()
	assert.False(t, ok, "gap of 10 exceeds skip threshold of 4")
}

func TestBufferForcesOutputOnOverflow(t *testing.T) {
	b := NewBuffer(3, 16)
	b.Put(pkt(100))
	b.Put(pkt(200))
	b.Put(pkt(300))
	b.Put(pkt(50)) // 4th packet triggers overflow resync to min key

	assert.Equal(t, int32(50), b.nextSequence)
}

func TestBufferClearResetsState(t *testing.T) {
	b := NewBuffer(50, 16)
	b.Put(pkt(1))
	b.Clear()

	assert.Equal(t, 0, b.Size())
	_, ok := b.Get()
	assert.False(t, ok)
}

func TestBufferSequenceWraparound(t *testing.T) {
	b := NewBuffer(50, 16)
	b.Put(pkt(65535))

	p, ok := b.Get()
	assert.True(t, ok)
	assert.Equal(t, uint16(65535), p.SequenceNumber)
	assert.Equal(t, int32(0), b.nextSequence, "sequence should wrap to 0 after 65535")
}
