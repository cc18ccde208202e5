package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	s, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 5679, s.Janus.RoomID)
	assert.Equal(t, 16000, s.Audio.AIInputRate)
	assert.Equal(t, float32(0.5), s.VAD.Threshold)
	assert.True(t, s.Video.Enabled)
}

func TestLoadPrefersBoundFlagOverDefault(t *testing.T) {
	v := viper.New()
	v.Set("janus.room_id", 4242)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4242, s.Janus.RoomID)
}

func TestLoadFallsBackToUnprefixedAIAPIKeyEnvVar(t *testing.T) {
	t.Setenv("AI_API_KEY", "unprefixed-secret")

	s, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "unprefixed-secret", s.AI.APIKey)
}

func TestValidateRequiresAPIKeyAndValidRTPPort(t *testing.T) {
	s := &Settings{}
	errs := s.Validate()
	assert.Len(t, errs, 2)
}

func TestValidatePassesWithGoodSettings(t *testing.T) {
	s := &Settings{
		AI:    AIConfig{APIKey: "secret"},
		Janus: JanusConfig{RTPPort: 5004},
	}
	assert.Empty(t, s.Validate())
}

func TestJanusFrameSamples(t *testing.T) {
	a := AudioConfig{JanusSampleRate: 48000, FrameDurationMs: 20}
	assert.Equal(t, 960, a.JanusFrameSamples())
}

func TestAIInputThreshold(t *testing.T) {
	a := AudioConfig{AIInputRate: 16000, SendBufferMs: 100}
	assert.Equal(t, 3200, a.AIInputThreshold())
}
