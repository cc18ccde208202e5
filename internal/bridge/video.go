package bridge

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/janus"
	"github.com/andrija/agentbridge/internal/rtpcodec"
	"github.com/andrija/agentbridge/internal/transport"
	"github.com/andrija/agentbridge/internal/video"
)

// startVideoComponents brings up the optional screen-share pipeline: a VP8
// RTP receiver feeding a frame assembler/decoder, and a VideoRoom client
// that auto-subscribes (via RTP forwarding, not a WebRTC subscription) to
// whatever publisher announces itself.
func (b *Bridge) startVideoComponents(ctx context.Context) error {
	b.videoProcessor = video.NewProcessor(
		b.cfg.Video.TargetFPS,
		b.cfg.Video.TargetWidth,
		b.cfg.Video.TargetHeight,
		b.cfg.Video.JPEGQuality,
	)
	b.videoProcessor.OnFrame(b.onVideoFrame)
	b.videoProcessor.OnKeyframeRequest(b.onKeyframeRequest)

	b.videoRTPReceiver = transport.NewReceiver(b.log, b.onVideoRTPPacket)
	if err := b.videoRTPReceiver.Start("0.0.0.0", b.cfg.Janus.VideoRTPPort); err != nil {
		return err
	}

	b.videoroomClient = janus.NewVideoRoomClient(b.log, b.cfg.Janus)
	b.videoroomClient.OnPublisherJoined = b.onVideoPublisherJoined
	b.videoroomClient.OnVideoReady = b.onVideoReady
	b.videoroomClient.OnError = func(reason string) {
		b.Stats.JanusErrors.Add(1)
		b.log.Warn("videoroom error", zap.String("reason", reason))
	}

	if err := b.videoroomClient.Start(ctx); err != nil {
		b.videoRTPReceiver.Stop()
		return err
	}

	b.log.Info("video components started", zap.Int("port", b.cfg.Janus.VideoRTPPort))
	return nil
}

func (b *Bridge) onVideoRTPPacket(pkt rtpcodec.Packet, _ *net.UDPAddr) {
	stripped := video.StripVP8Descriptor(pkt.Payload)
	b.videoProcessor.HandleRTPPayload(pkt.Timestamp, pkt.SequenceNumber, stripped, pkt.Marker)
}

func (b *Bridge) onVideoFrame(jpegBytes []byte, _ string) {
	if b.aiClient == nil || !b.aiClient.IsReady() {
		return
	}
	go func() {
		if err := b.aiClient.SendImage(jpegBytes); err != nil {
			b.log.Debug("failed to send video frame to ai", zap.Error(err))
		}
	}()
}

func (b *Bridge) onVideoPublisherJoined(pub janus.Publisher) {
	b.log.Info("video publisher joined", zap.String("display", pub.Display), zap.Int("id", pub.ID))
	b.videoPublisherID.Store(int32(pub.ID))
	go func() {
		if err := b.videoroomClient.SubscribeToPublisher(pub.ID); err != nil {
			b.log.Warn("video subscription failed", zap.Error(err))
		}
	}()
}

func (b *Bridge) onVideoReady(port int, streamID int) {
	b.log.Info("video rtp forwarding ready", zap.Int("port", port), zap.Int("stream_id", streamID))
}

// onKeyframeRequest is called by the video processor when it needs a fresh
// keyframe (startup, or after repeated decode errors). RTP forwarding has
// no PLI signal of its own, so the only lever available is restarting the
// forward, which causes the publisher's encoder to emit a new keyframe.
func (b *Bridge) onKeyframeRequest() {
	pubID := int(b.videoPublisherID.Load())
	if pubID == 0 || b.videoroomClient == nil {
		return
	}
	go func() {
		b.videoroomClient.StopRTPForward(pubID)
		if err := b.videoroomClient.SubscribeToPublisher(pubID); err != nil {
			b.log.Warn("keyframe re-subscription failed", zap.Error(err))
		}
	}()
}
