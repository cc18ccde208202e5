package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnVideoFrameNoopWithoutAIClient(t *testing.T) {
	b := newTestBridge()
	assert.NotPanics(t, func() {
		b.onVideoFrame([]byte{1, 2, 3}, "image/jpeg")
	})
}

func TestOnKeyframeRequestNoopWithoutPublisher(t *testing.T) {
	b := newTestBridge()
	assert.NotPanics(t, func() {
		b.onKeyframeRequest()
	})
}

func TestOnVideoReadyDoesNotPanic(t *testing.T) {
	b := newTestBridge()
	assert.NotPanics(t, func() {
		b.onVideoReady(5004, 1)
	})
}
