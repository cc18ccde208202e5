// Package bridge wires every other package together into the running
// voice-and-vision agent: Janus AudioBridge/VideoRoom on one side, the
// streaming AI endpoint on the other, with Opus/PCM conversion, jitter
// buffering, voice-activity filtering, and video frame extraction in
// between.
package bridge

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/aiclient"
	"github.com/andrija/agentbridge/internal/audio"
	"github.com/andrija/agentbridge/internal/config"
	"github.com/andrija/agentbridge/internal/janus"
	"github.com/andrija/agentbridge/internal/jitter"
	"github.com/andrija/agentbridge/internal/rtpcodec"
	"github.com/andrija/agentbridge/internal/stats"
	"github.com/andrija/agentbridge/internal/transport"
	"github.com/andrija/agentbridge/internal/vad"
	"github.com/andrija/agentbridge/internal/video"
)

const incomingAudioQueueSize = 100
const outgoingAudioQueueSize = 100

// Bridge is the orchestrator. Zero value is not usable; build with New.
type Bridge struct {
	cfg *config.Settings
	log *zap.Logger

	Stats *stats.BridgeStats

	audioProc *audio.Processor
	vadDet    *vad.Detector
	jitterBuf *jitter.Buffer

	rtpReceiver *transport.Receiver
	rtpSender   *transport.Sender

	janusClient *janus.AudioBridgeClient
	aiClient    *aiclient.Client

	videoRTPReceiver *transport.Receiver
	videoProcessor   *video.Processor
	videoroomClient  *janus.VideoRoomClient
	videoPublisherID atomic.Int32 // 0 means "none subscribed"

	incomingAudio chan []byte // opus payloads, Janus -> AI direction
	outgoingAudio chan []byte // PCM16 @ AI output rate, AI -> Janus direction

	aiSpeaking atomic.Bool
	running    atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	cancel   context.CancelFunc

	forwardedMu           sync.Mutex
	forwardedParticipants map[int]bool
	greetedParticipants   map[int]bool

	debugWAVIn  *audio.WAVWriter // agent-in: what we send to the AI, at its input rate
	debugWAVOut *audio.WAVWriter // agent-out: what the AI sends back, at its output rate
}

// New builds a Bridge from settings. Call Start to bring components up.
func New(log *zap.Logger, cfg *config.Settings) *Bridge {
	return &Bridge{
		cfg:                   cfg,
		log:                   log,
		Stats:                 &stats.BridgeStats{},
		incomingAudio:         make(chan []byte, incomingAudioQueueSize),
		outgoingAudio:         make(chan []byte, outgoingAudioQueueSize),
		forwardedParticipants: make(map[int]bool),
		greetedParticipants:   make(map[int]bool),
	}
}

// IsRunning reports whether the audio pumps are active.
func (b *Bridge) IsRunning() bool { return b.running.Load() }

// Start brings every component up in dependency order: audio codec, RTP
// receiver (must bind before Janus is told about it), Janus AudioBridge,
// RTP sender sharing the receiver's socket, the AI client, then optionally
// video. Video failing to start is non-fatal — screen sharing is a bonus
// feature, not core to the voice path.
func (b *Bridge) Start(ctx context.Context) error {
	b.log.Info("starting agent bridge")
	b.Stats.SetState(stats.StateInitializing)
	b.Stats.StartedAt = time.Now()

	if errs := b.cfg.Validate(); len(errs) > 0 {
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("invalid configuration: %v", errs)
	}

	audioProc, err := audio.NewProcessor(b.cfg.Audio)
	if err != nil {
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("build audio processor: %w", err)
	}
	b.audioProc = audioProc

	if det, err := vad.NewDetector(vad.DefaultConfig(b.cfg.VAD.ModelPath)); err != nil {
		b.log.Warn("voice activity detector unavailable, forwarding audio unfiltered", zap.Error(err))
	} else {
		b.vadDet = det
	}

	if b.cfg.DebugAudio {
		if err := b.setupDebugAudio(); err != nil {
			b.log.Warn("debug audio recording unavailable", zap.Error(err))
		}
	}

	b.jitterBuf = jitter.NewBuffer(0, 0)
	b.Stats.SetState(stats.StateConnecting)

	b.rtpReceiver = transport.NewReceiver(b.log, b.onRTPPacket)
	if err := b.rtpReceiver.Start("0.0.0.0", b.cfg.Janus.RTPPort); err != nil {
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("start rtp receiver: %w", err)
	}

	b.janusClient = janus.NewAudioBridgeClient(b.log, b.cfg.Janus)
	b.janusClient.OnJoined = b.onJanusJoined
	b.janusClient.OnParticipantsChanged = b.onParticipantsChanged
	b.janusClient.OnError = b.onJanusError

	if err := b.janusClient.Start(ctx); err != nil {
		b.rtpReceiver.Stop()
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("connect to janus: %w", err)
	}

	rtpIP, rtpPort := b.janusClient.RTPTarget()
	if rtpIP == "" {
		b.janusClient.Stop()
		b.rtpReceiver.Stop()
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("janus did not return an rtp target")
	}

	// Janus echoes the room's mixed audio (including our own voice) back
	// from this port; ignore it so we only see forwarded participant audio.
	b.rtpReceiver.SetIgnoreSourcePort(rtpPort)

	ssrc := uint32(b.janusClient.ParticipantID())
	if ssrc == 0 {
		ssrc = 0x12345678
	}
	b.rtpSender = transport.NewSender(b.log, rtpIP, rtpPort, ssrc, 111, uint32(b.cfg.Audio.JanusSampleRate))
	b.rtpSender.ShareSocket(b.rtpReceiver)
	if err := b.rtpSender.Start(); err != nil {
		b.janusClient.Stop()
		b.rtpReceiver.Stop()
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("start rtp sender: %w", err)
	}

	b.aiClient = aiclient.NewClient(b.log, b.cfg.AI)
	b.aiClient.OnAudio = b.onAIAudio
	b.aiClient.OnText = b.onAIText
	b.aiClient.OnSetupComplete = b.onAIReady
	b.aiClient.OnTurnComplete = b.onAITurnComplete
	b.aiClient.OnInterrupted = b.onAIInterrupted
	b.aiClient.OnError = b.onAIError

	if err := b.aiClient.Connect(ctx); err != nil {
		b.rtpSender.Stop()
		b.janusClient.Stop()
		b.rtpReceiver.Stop()
		b.Stats.SetState(stats.StateError)
		return fmt.Errorf("connect to ai service: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	if b.cfg.Video.Enabled {
		if err := b.startVideoComponents(runCtx); err != nil {
			b.log.Warn("video components unavailable, screen sharing disabled", zap.Error(err))
		}
	}

	b.running.Store(true)
	b.stopCh = make(chan struct{})
	go b.audioForwardLoop(runCtx)
	go b.audioPlaybackLoop(runCtx)

	b.Stats.SetState(stats.StateReady)
	b.log.Info("agent bridge started")
	return nil
}

// RunUntilStopped blocks until Stop is called or ctx is cancelled.
func (b *Bridge) RunUntilStopped(ctx context.Context) {
	if !b.running.Load() {
		b.log.Warn("bridge not running, call Start first")
		return
	}
	b.Stats.SetState(stats.StateActive)
	select {
	case <-b.stopCh:
	case <-ctx.Done():
	}
}

// Stop tears down every component: the AI client, the RTP sender, the RTP
// receiver, the Janus AudioBridge client, then the video components, and
// finally closes any debug WAV files.
func (b *Bridge) Stop() {
	b.log.Info("stopping agent bridge")
	b.Stats.SetState(stats.StateStopping)
	b.running.Store(false)

	b.stopOnce.Do(func() {
		if b.stopCh != nil {
			close(b.stopCh)
		}
	})
	if b.cancel != nil {
		b.cancel()
	}

	if b.aiClient != nil {
		b.aiClient.Close()
	}
	if b.rtpSender != nil {
		b.rtpSender.Stop()
	}
	if b.rtpReceiver != nil {
		b.rtpReceiver.Stop()
	}
	if b.janusClient != nil {
		b.janusClient.Stop()
	}
	if b.videoroomClient != nil {
		b.videoroomClient.Stop()
	}
	if b.videoRTPReceiver != nil {
		b.videoRTPReceiver.Stop()
	}
	if b.debugWAVIn != nil {
		b.debugWAVIn.Close()
	}
	if b.debugWAVOut != nil {
		b.debugWAVOut.Close()
	}

	b.Stats.SetState(stats.StateStopped)
	b.log.Info("agent bridge stopped",
		zap.Uint64("rtp_packets_received", b.Stats.RTPPacketsReceived.Load()),
		zap.Uint64("rtp_packets_sent", b.Stats.RTPPacketsSent.Load()),
		zap.Uint64("audio_chunks_from_ai", b.Stats.AudioChunksFromAI.Load()))
}

// Status is a JSON-friendly point-in-time view for the CLI and any future
// HTTP status endpoint.
type Status struct {
	Running     bool `json:"running"`
	AISpeaking  bool `json:"ai_speaking"`
	JanusJoined bool `json:"janus_joined"`
	AIConnected bool `json:"ai_connected"`
	AIReady     bool `json:"ai_ready"`

	RTPReceiverRunning bool   `json:"rtp_receiver_running"`
	RTPSenderRunning   bool   `json:"rtp_sender_running"`
	RTPReceived        uint64 `json:"rtp_received"`
	RTPSent            uint64 `json:"rtp_sent"`

	JitterPackets int    `json:"jitter_buffered_packets"`
	JitterDropped uint64 `json:"jitter_dropped_packets"`

	VAD   vad.Stats      `json:"vad"`
	Stats stats.Snapshot `json:"stats"`
}

// GetStatus snapshots the bridge's current state.
func (b *Bridge) GetStatus() Status {
	st := Status{
		Running:    b.running.Load(),
		AISpeaking: b.aiSpeaking.Load(),
		VAD:        b.vadDet.Stats(),
		Stats:      b.Stats.Snapshot(),
	}
	if b.aiClient != nil {
		st.AIConnected = b.aiClient.IsConnected()
		st.AIReady = b.aiClient.IsReady()
	}
	if b.rtpReceiver != nil {
		st.RTPReceiverRunning = true
		st.RTPReceived = b.rtpReceiver.PacketsReceived.Load()
	}
	if b.rtpSender != nil {
		st.RTPSenderRunning = true
		st.RTPSent = b.rtpSender.PacketsSent.Load()
	}
	if b.jitterBuf != nil {
		st.JitterPackets = b.jitterBuf.Size()
		st.JitterDropped = b.jitterBuf.PacketsDropped.Load()
	}
	st.JanusJoined = b.janusClient != nil
	return st
}

// SendText forwards an operator- or test-originated text message to the AI
// service, outside the normal audio path.
func (b *Bridge) SendText(text string) error {
	if b.aiClient == nil || !b.aiClient.IsConnected() {
		return fmt.Errorf("ai client not connected")
	}
	return b.aiClient.SendText(text, true)
}

// setupDebugAudio opens the two per-session debug WAV files: agent-in
// (audio forwarded to the AI, at its input rate) and agent-out (audio
// received from the AI, at its output rate).
func (b *Bridge) setupDebugAudio() error {
	dir := b.cfg.DebugAudioDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug audio dir: %w", err)
	}

	session := uuid.NewString()

	inPath := filepath.Join(dir, fmt.Sprintf("agent_in_%s.wav", session))
	wIn, err := audio.NewWAVWriter(inPath, b.cfg.Audio.AIInputRate)
	if err != nil {
		return err
	}

	outPath := filepath.Join(dir, fmt.Sprintf("agent_out_%s.wav", session))
	wOut, err := audio.NewWAVWriter(outPath, b.cfg.Audio.AIOutputRate)
	if err != nil {
		wIn.Close()
		return err
	}

	b.debugWAVIn, b.debugWAVOut = wIn, wOut
	b.log.Info("debug audio recording enabled", zap.String("agent_in", inPath), zap.String("agent_out", outPath))
	return nil
}

func (b *Bridge) onRTPPacket(pkt rtpcodec.Packet, _ *net.UDPAddr) {
	b.Stats.RTPPacketsReceived.Add(1)
	b.Stats.RTPBytesReceived.Add(uint64(len(pkt.Payload) + 12))

	b.jitterBuf.Put(pkt)

	for {
		ordered, ok := b.jitterBuf.Get()
		if !ok {
			return
		}
		select {
		case b.incomingAudio <- ordered.Payload:
		default:
			// queue saturated; drop oldest in favor of newest audio
			select {
			case <-b.incomingAudio:
			default:
			}
			b.incomingAudio <- ordered.Payload
		}
	}
}
