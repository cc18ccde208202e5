package rtpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBytesRoundTrip(t *testing.T) {
	orig := Packet{
		Version:        2,
		Marker:         true,
		PayloadType:    111,
		SequenceNumber: 4242,
		Timestamp:      987654321,
		SSRC:           0xC0FFEE,
		Payload:        []byte{1, 2, 3, 4, 5},
	}

	raw, err := orig.Bytes()
	require.NoError(t, err)

	parsed, ok := Parse(raw)
	require.True(t, ok)

	assert.Equal(t, orig.Marker, parsed.Marker)
	assert.Equal(t, orig.PayloadType, parsed.PayloadType)
	assert.Equal(t, orig.SequenceNumber, parsed.SequenceNumber)
	assert.Equal(t, orig.Timestamp, parsed.Timestamp)
	assert.Equal(t, orig.SSRC, parsed.SSRC)
	assert.Equal(t, orig.Payload, parsed.Payload)
}

func TestParseBytesRoundTripWithCSRCExtensionAndPadding(t *testing.T) {
	raw := []byte{
		// V=2, P=1, X=1, CC=1; M=0, PT=96
		0xB1, 0x60,
		0x00, 0x2A, // sequence 42
		0x00, 0x00, 0x00, 0x64, // timestamp 100
		0x00, 0x00, 0x00, 0x07, // ssrc 7
		0x11, 0x22, 0x33, 0x44, // one CSRC entry
		0x12, 0x34, 0x00, 0x01, // extension profile 0x1234, length 1 word
		0xDE, 0xAD, 0xBE, 0xEF, // extension payload
		0x01, 0x02, 0x03, // payload
		0x00, 0x02, // two bytes of padding, length in the final byte
	}

	parsed, ok := Parse(raw)
	require.True(t, ok)

	assert.True(t, parsed.Padding)
	assert.True(t, parsed.Extension)
	assert.Equal(t, uint8(1), parsed.CSRCCount())
	assert.Equal(t, []uint32{0x11223344}, parsed.CSRC)
	assert.Equal(t, uint16(0x1234), parsed.ExtensionProfile)
	assert.Equal(t, uint8(96), parsed.PayloadType)
	assert.Equal(t, uint16(42), parsed.SequenceNumber)
	assert.Equal(t, uint32(100), parsed.Timestamp)
	assert.Equal(t, uint32(7), parsed.SSRC)
	assert.Equal(t, uint8(2), parsed.PaddingSize)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, parsed.Payload, "padding-length byte should be honored on parse")
	assert.False(t, parsed.ReceivedAt.IsZero())

	reRaw, err := parsed.Bytes()
	require.NoError(t, err)

	reParsed, ok := Parse(reRaw)
	require.True(t, ok)
	assert.Equal(t, parsed.Padding, reParsed.Padding)
	assert.Equal(t, parsed.Extension, reParsed.Extension)
	assert.Equal(t, parsed.CSRC, reParsed.CSRC)
	assert.Equal(t, parsed.ExtensionProfile, reParsed.ExtensionProfile)
	assert.Equal(t, parsed.PaddingSize, reParsed.PaddingSize)
	assert.Equal(t, parsed.Payload, reParsed.Payload)
}

func TestParseCopiesPayloadOutOfReceiveBuffer(t *testing.T) {
	orig := Packet{Version: 2, PayloadType: 111, SequenceNumber: 1, Payload: []byte{0xAA, 0xBB}}
	raw, err := orig.Bytes()
	require.NoError(t, err)

	parsed, ok := Parse(raw)
	require.True(t, ok)

	for i := range raw {
		raw[i] = 0
	}
	assert.Equal(t, []byte{0xAA, 0xBB}, parsed.Payload)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, ok := Parse([]byte{0x00, 0x01})
	assert.False(t, ok)
}

func TestParseRejectsNonV2Header(t *testing.T) {
	// A well-formed, full-length RTP header but with version bits set to 1
	// instead of 2 (first byte 0x40 instead of 0x80).
	raw := []byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, ok := Parse(raw)
	assert.False(t, ok)
}

func TestBuilderSequenceAndTimestampAdvance(t *testing.T) {
	b := NewBuilder(0x1234, 111, 48000)

	p1 := b.Next([]byte{0xAA}, true, 960)
	p2 := b.Next([]byte{0xBB}, false, 960)
	p3 := b.Next([]byte{0xCC}, false, 960)

	assert.Equal(t, uint16(0), p1.SequenceNumber)
	assert.Equal(t, uint16(1), p2.SequenceNumber)
	assert.Equal(t, uint16(2), p3.SequenceNumber)

	assert.Equal(t, uint32(0), p1.Timestamp)
	assert.Equal(t, uint32(960), p2.Timestamp)
	assert.Equal(t, uint32(1920), p3.Timestamp)

	assert.True(t, p1.Marker)
	assert.False(t, p2.Marker)
}

func TestBuilderSequenceWraps(t *testing.T) {
	b := NewBuilder(1, 111, 48000)
	b.seq = 0xFFFF
	b.started = true

	p := b.Next([]byte{0x01}, false, 960)
	assert.Equal(t, uint16(0), p.SequenceNumber)
}
