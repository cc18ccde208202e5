package video

import "testing"

func buildKeyframe(width, height uint16) []byte {
	frame := make([]byte, 10)
	frame[3], frame[4], frame[5] = 0x9d, 0x01, 0x2a
	frame[6] = byte(width)
	frame[7] = byte(width >> 8)
	frame[8] = byte(height)
	frame[9] = byte(height >> 8)
	return frame
}

func TestParseVP8KeyframeDimensions(t *testing.T) {
	frame := buildKeyframe(1280, 720)
	w, h, err := parseVP8KeyframeDimensions(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Fatalf("got %dx%d, want 1280x720", w, h)
	}
}

func TestParseVP8KeyframeDimensionsRejectsBadStartCode(t *testing.T) {
	frame := buildKeyframe(640, 480)
	frame[3] = 0x00
	if _, _, err := parseVP8KeyframeDimensions(frame); err == nil {
		t.Fatal("expected error for bad start code")
	}
}

func TestDefaultDecoderRequiresKeyframeFirst(t *testing.T) {
	d := NewDefaultDecoder()
	if _, err := d.Decode([]byte{0x11, 0, 0}, false); err != ErrNotAKeyframe {
		t.Fatalf("got err %v, want ErrNotAKeyframe", err)
	}
}

func TestDefaultDecoderDecodesKeyframeThenReusesForInterframe(t *testing.T) {
	d := NewDefaultDecoder()
	frame := buildKeyframe(320, 240)

	img, err := d.Decode(frame, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Fatalf("got bounds %v, want 320x240", img.Bounds())
	}

	img2, err := d.Decode([]byte{0x11}, false)
	if err != nil {
		t.Fatalf("unexpected error on interframe reuse: %v", err)
	}
	if img2.Bounds().Dx() != 320 {
		t.Fatalf("interframe should reuse last keyframe dimensions")
	}
}
