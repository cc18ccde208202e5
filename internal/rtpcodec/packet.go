// Package rtpcodec parses and serializes RFC 3550 RTP packets carried over
// the plain-UDP transport between Janus and the bridge.
package rtpcodec

import (
	"fmt"
	"time"

	"github.com/pion/rtp"
)

// Packet is a value-type view of one RTP packet: the full fixed header, the
// optional CSRC list and extension header, the payload with any padding
// already trimmed (the padding-length byte is honored on parse), and the
// local arrival time. It wraps pion/rtp's mutable packet type so the rest of
// the bridge has a stable shape independent of the wire library.
type Packet struct {
	Version          uint8
	Padding          bool
	Extension        bool
	Marker           bool
	PayloadType      uint8
	SequenceNumber   uint16
	Timestamp        uint32
	SSRC             uint32
	CSRC             []uint32
	ExtensionProfile uint16
	Extensions       []rtp.Extension
	PaddingSize      uint8
	Payload          []byte
	ReceivedAt       time.Time
}

// CSRCCount returns the CC field value the header carries on the wire.
func (pkt Packet) CSRCCount() uint8 { return uint8(len(pkt.CSRC)) }

// Parse decodes a raw UDP datagram into a Packet. It returns false (not an
// error) on malformed input: stray datagrams on the RTP socket are dropped,
// not surfaced. The payload and CSRC list are copied out so the caller's
// receive buffer can be reused.
func Parse(raw []byte) (Packet, bool) {
	var p rtp.Packet
	if err := p.Unmarshal(raw); err != nil {
		return Packet{}, false
	}
	if p.Version != 2 {
		return Packet{}, false
	}

	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)

	var csrc []uint32
	if len(p.CSRC) > 0 {
		csrc = make([]uint32, len(p.CSRC))
		copy(csrc, p.CSRC)
	}

	return Packet{
		Version:          p.Version,
		Padding:          p.Padding,
		Extension:        p.Extension,
		Marker:           p.Marker,
		PayloadType:      p.PayloadType,
		SequenceNumber:   p.SequenceNumber,
		Timestamp:        p.Timestamp,
		SSRC:             p.SSRC,
		CSRC:             csrc,
		ExtensionProfile: p.ExtensionProfile,
		Extensions:       p.Extensions,
		PaddingSize:      p.PaddingSize,
		Payload:          payload,
		ReceivedAt:       time.Now(),
	}, true
}

// Bytes serializes the packet back to wire format, re-emitting the CSRC
// list, extension header, and padding exactly as parsed. The extension and
// padding bits are cleared when there is nothing to emit for them, so a
// zero-value Packet still marshals cleanly.
func (pkt Packet) Bytes() ([]byte, error) {
	p := rtp.Packet{
		Header: rtp.Header{
			Version:          2,
			Padding:          pkt.Padding && pkt.PaddingSize > 0,
			Extension:        pkt.Extension && len(pkt.Extensions) > 0,
			Marker:           pkt.Marker,
			PayloadType:      pkt.PayloadType,
			SequenceNumber:   pkt.SequenceNumber,
			Timestamp:        pkt.Timestamp,
			SSRC:             pkt.SSRC,
			CSRC:             pkt.CSRC,
			ExtensionProfile: pkt.ExtensionProfile,
			Extensions:       pkt.Extensions,
		},
		Payload:     pkt.Payload,
		PaddingSize: pkt.PaddingSize,
	}
	out, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal rtp packet: %w", err)
	}
	return out, nil
}

// Builder produces successive packets for an outbound stream, owning the
// monotonically increasing sequence number and RTP timestamp.
type Builder struct {
	SSRC        uint32
	PayloadType uint8
	ClockRate   uint32
	seq         uint16
	timestamp   uint32
	started     bool
}

// NewBuilder constructs a Builder for a stream identified by ssrc.
func NewBuilder(ssrc uint32, payloadType uint8, clockRate uint32) *Builder {
	return &Builder{SSRC: ssrc, PayloadType: payloadType, ClockRate: clockRate}
}

// Next builds the next packet in sequence, advancing the timestamp by
// samplesPerFrame and wrapping the sequence number at uint16 boundary. No
// CSRC list or extension header is produced on the outbound stream.
func (b *Builder) Next(payload []byte, marker bool, samplesPerFrame uint32) Packet {
	if !b.started {
		b.started = true
	} else {
		b.seq++
		b.timestamp += samplesPerFrame
	}
	return Packet{
		Version:        2,
		Marker:         marker,
		PayloadType:    b.PayloadType,
		SequenceNumber: b.seq,
		Timestamp:      b.timestamp,
		SSRC:           b.SSRC,
		Payload:        payload,
	}
}
