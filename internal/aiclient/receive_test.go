package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClient() *Client {
	return &Client{log: zap.NewNop()}
}

func TestDispatchSetupComplete(t *testing.T) {
	c := newTestClient()
	called := false
	c.OnSetupComplete = func() { called = true }

	c.dispatch([]byte(`{"setupComplete": {}}`))
	assert.True(t, called)
}

func TestDispatchTextAndTurnComplete(t *testing.T) {
	c := newTestClient()
	var gotText string
	turnDone := false
	c.OnText = func(text string) { gotText = text }
	c.OnTurnComplete = func() { turnDone = true }

	c.dispatch([]byte(`{
		"serverContent": {
			"modelTurn": {"parts": [{"text": "hello there"}]},
			"turnComplete": true
		}
	}`))

	assert.Equal(t, "hello there", gotText)
	assert.True(t, turnDone)
}

func TestDispatchInlineAudio(t *testing.T) {
	c := newTestClient()
	var gotAudio []byte
	c.OnAudio = func(pcm []byte) { gotAudio = pcm }

	// base64 of the bytes {1,2,3,4}
	c.dispatch([]byte(`{
		"serverContent": {
			"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm", "data": "AQIDBA=="}}]}
		}
	}`))

	assert.Equal(t, []byte{1, 2, 3, 4}, gotAudio)
}

func TestDispatchInlineAudioWithRateSuffixMimeType(t *testing.T) {
	c := newTestClient()
	var gotAudio []byte
	c.OnAudio = func(pcm []byte) { gotAudio = pcm }

	c.dispatch([]byte(`{
		"serverContent": {
			"modelTurn": {"parts": [{"inlineData": {"mimeType": "audio/pcm;rate=24000", "data": "AQIDBA=="}}]}
		}
	}`))

	assert.Equal(t, []byte{1, 2, 3, 4}, gotAudio)
}

func TestDispatchInlineDataIgnoredForNonAudioMimeType(t *testing.T) {
	c := newTestClient()
	called := false
	c.OnAudio = func(pcm []byte) { called = true }

	c.dispatch([]byte(`{
		"serverContent": {
			"modelTurn": {"parts": [{"inlineData": {"mimeType": "image/png", "data": "AQIDBA=="}}]}
		}
	}`))

	assert.False(t, called)
}

func TestDispatchInterrupted(t *testing.T) {
	c := newTestClient()
	interrupted := false
	c.OnInterrupted = func() { interrupted = true }

	c.dispatch([]byte(`{"serverContent": {"interrupted": true}}`))
	assert.True(t, interrupted)
}

func TestDispatchToolCall(t *testing.T) {
	c := newTestClient()
	var calls []ToolCall
	c.OnToolCall = func(tc ToolCall) { calls = append(calls, tc) }

	c.dispatch([]byte(`{
		"toolCall": {
			"functionCalls": [{"name": "lookup", "id": "call-1", "args": {"query": "weather"}}]
		}
	}`))

	assert.Len(t, calls, 1)
	assert.Equal(t, "lookup", calls[0].Name)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "weather", calls[0].Args["query"])
}

func TestDispatchMalformedJSONIsIgnored(t *testing.T) {
	c := newTestClient()
	assert.NotPanics(t, func() {
		c.dispatch([]byte(`not json`))
	})
}
