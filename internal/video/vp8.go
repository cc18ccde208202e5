// Package video assembles RTP VP8 frames from Janus VideoRoom and emits
// rate-limited JPEG stills for the AI streaming client.
package video

// StripVP8Descriptor removes the RFC 7741 VP8 RTP payload descriptor from
// an RTP payload, returning the raw VP8 bitstream bytes that follow it.
func StripVP8Descriptor(payload []byte) []byte {
	if len(payload) == 0 {
		return payload
	}

	descLen := 1
	first := payload[0]

	if first&0x80 != 0 && len(payload) > descLen { // X: extended control bits present
		ext := payload[descLen]
		descLen++

		if ext&0x80 != 0 { // I: picture ID present
			if len(payload) > descLen {
				if payload[descLen]&0x80 != 0 { // M: 16-bit picture ID
					descLen += 2
				} else {
					descLen++
				}
			}
		}
		if ext&0x40 != 0 { // L: TL0PICIDX present
			descLen++
		}
		if ext&0x20 != 0 || ext&0x10 != 0 { // T/K: TID/KEYIDX present
			descLen++
		}
	}

	if descLen >= len(payload) {
		return nil
	}
	return payload[descLen:]
}

// IsVP8Keyframe reports whether a reassembled VP8 frame's first byte marks
// it as a keyframe (RFC 6386 §9.1: bit 0 of the frame tag, 0 = keyframe).
func IsVP8Keyframe(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	return frame[0]&0x01 == 0
}

