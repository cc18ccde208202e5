// Package config loads AgentBridge settings from environment variables, an
// optional YAML file, and CLI flags (bound by cmd/agentbridge via viper).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const defaultSystemInstruction = "You are a helpful voice assistant. Keep answers brief and conversational."

// JanusConfig holds Janus Gateway connection settings (C7/C8).
type JanusConfig struct {
	WebSocketURL   string `mapstructure:"websocket_url"`
	RoomID         int    `mapstructure:"room_id"`
	DisplayName    string `mapstructure:"display_name"`
	RTPHost        string `mapstructure:"rtp_host"`
	RTPPort        int    `mapstructure:"rtp_port"`
	VideoRTPPort   int    `mapstructure:"video_rtp_port"`
	AdminKeyAudio  string `mapstructure:"admin_key_audio"`
	AdminKeyVideo  string `mapstructure:"admin_key_video"`
	KeepaliveSecs  int    `mapstructure:"keepalive_secs"`
	RTPForwardSSRC uint32 `mapstructure:"rtp_forward_ssrc"`
}

// AIConfig holds the streaming AI endpoint's settings (C9).
type AIConfig struct {
	WebSocketURL      string `mapstructure:"websocket_url"`
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	Voice             string `mapstructure:"voice"`
	SystemInstruction string `mapstructure:"system_instruction"`
	InputSampleRate   int    `mapstructure:"input_sample_rate"`
	OutputSampleRate  int    `mapstructure:"output_sample_rate"`
	PingIntervalSecs  int    `mapstructure:"ping_interval_secs"`
	PingTimeoutSecs   int    `mapstructure:"ping_timeout_secs"`
	MaxMessageBytes   int    `mapstructure:"max_message_bytes"`
}

// AudioConfig holds audio-pipeline tuning (C3).
type AudioConfig struct {
	JanusSampleRate int `mapstructure:"janus_sample_rate"`
	AIInputRate     int `mapstructure:"ai_input_rate"`
	AIOutputRate    int `mapstructure:"ai_output_rate"`
	FrameDurationMs int `mapstructure:"frame_duration_ms"`
	OpusBitrate     int `mapstructure:"opus_bitrate"`
	JitterBufferMs  int `mapstructure:"jitter_buffer_ms"`
	SendBufferMs    int `mapstructure:"send_buffer_ms"`
}

// VADConfig holds voice-activity-detection tuning (C5).
type VADConfig struct {
	ModelPath            string  `mapstructure:"model_path"`
	Threshold            float32 `mapstructure:"threshold"`
	MinSpeechDurationMs  int     `mapstructure:"min_speech_duration_ms"`
	MinSilenceDurationMs int     `mapstructure:"min_silence_duration_ms"`
}

// VideoConfig holds the screen-share video pipeline's tuning (C4/C8).
type VideoConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	TargetFPS    float64 `mapstructure:"target_fps"`
	TargetWidth  int     `mapstructure:"target_width"`
	TargetHeight int     `mapstructure:"target_height"`
	JPEGQuality  int     `mapstructure:"jpeg_quality"`
}

// JanusFrameSamples returns samples per 20ms frame at the Janus rate.
func (a AudioConfig) JanusFrameSamples() int {
	return a.JanusSampleRate * a.FrameDurationMs / 1000
}

// AIInputThreshold returns bytes to accumulate before sending to the AI.
func (a AudioConfig) AIInputThreshold() int {
	samples := a.AIInputRate * a.SendBufferMs / 1000
	return samples * 2
}

// Settings is the top-level configuration tree.
type Settings struct {
	LogLevel         string `mapstructure:"log_level"`
	Verbose          bool   `mapstructure:"verbose"`
	DebugAudio       bool   `mapstructure:"debug_audio"`
	DebugAudioDir    string `mapstructure:"debug_audio_dir"`
	GreetingTemplate string `mapstructure:"greeting_template"`

	Janus JanusConfig `mapstructure:"janus"`
	AI    AIConfig    `mapstructure:"ai"`
	Audio AudioConfig `mapstructure:"audio"`
	VAD   VADConfig   `mapstructure:"vad"`
	Video VideoConfig `mapstructure:"video"`
}

// Load builds Settings from environment (prefix AGENTBRIDGE_), an optional
// config file, and whatever flags the caller has already bound into v.
func Load(v *viper.Viper) (*Settings, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("AGENTBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The AI API key is commonly supplied as a bare env var too.
	if v.GetString("ai.api_key") == "" {
		if key := os.Getenv("AI_API_KEY"); key != "" {
			v.Set("ai.api_key", key)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("debug_audio", false)
	v.SetDefault("debug_audio_dir", "/tmp/agentbridge-audio")
	v.SetDefault("greeting_template", "A user named %s just joined the call. Greet them warmly and briefly introduce yourself.")

	v.SetDefault("janus.websocket_url", "ws://localhost:8188")
	v.SetDefault("janus.room_id", 5679)
	v.SetDefault("janus.display_name", "AgentBridge")
	v.SetDefault("janus.rtp_host", "127.0.0.1")
	v.SetDefault("janus.rtp_port", 5004)
	v.SetDefault("janus.video_rtp_port", 5006)
	v.SetDefault("janus.admin_key_audio", "audiobridge_admin")
	v.SetDefault("janus.admin_key_video", "videoroom_admin_secret")
	v.SetDefault("janus.keepalive_secs", 25)
	v.SetDefault("janus.rtp_forward_ssrc", 12345678)

	v.SetDefault("ai.websocket_url",
		"wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "models/gemini-2.0-flash-exp")
	v.SetDefault("ai.voice", "Puck")
	v.SetDefault("ai.system_instruction", defaultSystemInstruction)
	v.SetDefault("ai.input_sample_rate", 16000)
	v.SetDefault("ai.output_sample_rate", 24000)
	v.SetDefault("ai.ping_interval_secs", 30)
	v.SetDefault("ai.ping_timeout_secs", 10)
	v.SetDefault("ai.max_message_bytes", 10*1024*1024)

	v.SetDefault("audio.janus_sample_rate", 48000)
	v.SetDefault("audio.ai_input_rate", 16000)
	v.SetDefault("audio.ai_output_rate", 24000)
	v.SetDefault("audio.frame_duration_ms", 20)
	v.SetDefault("audio.opus_bitrate", 24000)
	v.SetDefault("audio.jitter_buffer_ms", 100)
	v.SetDefault("audio.send_buffer_ms", 100)

	v.SetDefault("vad.model_path", "models/silero_vad.onnx")
	v.SetDefault("vad.threshold", 0.5)
	v.SetDefault("vad.min_speech_duration_ms", 100)
	v.SetDefault("vad.min_silence_duration_ms", 200)

	v.SetDefault("video.enabled", true)
	v.SetDefault("video.target_fps", 1.0)
	v.SetDefault("video.target_width", 1280)
	v.SetDefault("video.target_height", 720)
	v.SetDefault("video.jpeg_quality", 85)
}

// Validate reports the fatal-at-startup configuration errors: a missing API
// key and an out-of-range RTP port.
func (s *Settings) Validate() []error {
	var errs []error

	if s.AI.APIKey == "" {
		errs = append(errs, fmt.Errorf("AI API key is required"))
	}
	if s.Janus.RTPPort < 1024 || s.Janus.RTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid RTP port: %d", s.Janus.RTPPort))
	}

	return errs
}
