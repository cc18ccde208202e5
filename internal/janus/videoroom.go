package janus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
)

// Publisher mirrors a VideoRoom feed the bridge has seen announced.
type Publisher struct {
	ID         int
	Display    string
	AudioCodec string
	VideoCodec string
	Subscribed bool
}

// VideoRoomClient joins a Janus VideoRoom as a receive-only publisher (so it
// sees publisher-joined events) and uses RTP forwarding — not a WebRTC
// subscription — to pull a publisher's video onto a plain UDP port.
type VideoRoomClient struct {
	cfg config.JanusConfig
	log *zap.Logger
	ws  *wsClient

	sessionID uint64
	handleID  uint64
	joined    bool

	publishers map[int]*Publisher
	streamIDs  map[int]int
	videoPort  int

	OnPublisherJoined func(Publisher)
	OnVideoReady      func(port int, streamID int)
	OnError           func(string)

	keepaliveCancel context.CancelFunc
}

// NewVideoRoomClient builds a VideoRoomClient for the given config.
func NewVideoRoomClient(log *zap.Logger, cfg config.JanusConfig) *VideoRoomClient {
	return &VideoRoomClient{
		cfg:        cfg,
		log:        log,
		ws:         newWSClient(log, cfg.WebSocketURL),
		publishers: make(map[int]*Publisher),
		streamIDs:  make(map[int]int),
	}
}

// Start connects, creates a session, attaches VideoRoom, and joins as a
// publisher without actually publishing anything (receive-only), so the
// bridge learns about other publishers and can forward their video.
func (c *VideoRoomClient) Start(ctx context.Context) error {
	if err := c.ws.connect(); err != nil {
		return err
	}

	if err := c.createSession(); err != nil {
		c.ws.close()
		return err
	}
	if err := c.attachPlugin(); err != nil {
		c.ws.close()
		return err
	}
	if err := c.joinRoom(); err != nil {
		c.ws.close()
		return err
	}

	c.ws.onEvent = c.handleEvent
	c.ws.onError = func(reason string) {
		if c.OnError != nil {
			c.OnError(reason)
		}
	}
	c.ws.startReceiveLoop()

	kctx, cancel := context.WithCancel(ctx)
	c.keepaliveCancel = cancel
	go c.keepaliveLoop(kctx)

	return nil
}

// Stop tears down the keepalive loop and WebSocket connection.
func (c *VideoRoomClient) Stop() error {
	if c.keepaliveCancel != nil {
		c.keepaliveCancel()
	}
	return c.ws.close()
}

func (c *VideoRoomClient) createSession() error {
	resp, err := c.ws.send(Message{Janus: "create"})
	if err != nil {
		return err
	}
	id, ok := dataID(resp.Data)
	if resp.Janus != "success" || !ok {
		return fmt.Errorf("create janus session failed: %+v", resp)
	}
	c.sessionID = id
	return nil
}

func (c *VideoRoomClient) attachPlugin() error {
	resp, err := c.ws.send(Message{
		Janus:     "attach",
		SessionID: c.sessionID,
		Plugin:    "janus.plugin.videoroom",
	})
	if err != nil {
		return err
	}
	id, ok := dataID(resp.Data)
	if resp.Janus != "success" || !ok {
		return fmt.Errorf("attach videoroom failed: %+v", resp)
	}
	c.handleID = id
	return nil
}

func (c *VideoRoomClient) joinRoom() error {
	exists, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{"request": "exists", "room": c.cfg.RoomID},
	})
	if err != nil {
		return err
	}

	roomExists := false
	if exists.PluginData != nil {
		roomExists = asBool(exists.PluginData.Data, "exists")
	}

	if !roomExists {
		if _, err := c.ws.send(Message{
			Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
			Body: map[string]any{
				"request":         "create",
				"room":            c.cfg.RoomID,
				"description":     "AgentBridge Video Room",
				"publishers":      10,
				"bitrate":         2000000,
				"videocodec":      "vp8,h264",
				"audiocodec":      "opus",
				"notify_joining":  true,
			},
		}); err != nil {
			return err
		}
	}

	resp, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request": "join",
			"ptype":   "publisher",
			"room":    c.cfg.RoomID,
			"display": c.cfg.DisplayName,
		},
	})
	if err != nil {
		return err
	}

	if resp.Janus != "event" || resp.PluginData == nil {
		return fmt.Errorf("join videoroom failed: %+v", resp)
	}
	data := resp.PluginData.Data
	if asString(data, "videoroom") != "joined" {
		return fmt.Errorf("unexpected videoroom join response: %+v", data)
	}

	c.joined = true

	if rawPublishers, ok := data["publishers"].([]any); ok {
		for _, p := range rawPublishers {
			if pm, ok := p.(map[string]any); ok {
				pub := c.addPublisher(pm)
				if c.OnPublisherJoined != nil {
					c.OnPublisherJoined(*pub)
				}
			}
		}
	}

	return nil
}

// SubscribeToPublisher establishes RTP forwarding for a publisher's video
// stream onto this bridge's video UDP port, avoiding a full WebRTC
// subscription handshake.
func (c *VideoRoomClient) SubscribeToPublisher(publisherID int) error {
	if !c.joined {
		return fmt.Errorf("videoroom: not joined")
	}
	pub, ok := c.publishers[publisherID]
	if !ok {
		return fmt.Errorf("videoroom: unknown publisher %d", publisherID)
	}
	if pub.Subscribed {
		return nil
	}

	resp, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request":      "rtp_forward",
			"room":         c.cfg.RoomID,
			"publisher_id": publisherID,
			"host":         c.cfg.RTPHost,
			"video_port":   c.cfg.VideoRTPPort,
			"video_pt":     96,
			"admin_key":    c.cfg.AdminKeyVideo,
		},
	})
	if err != nil {
		return err
	}

	if resp.PluginData == nil || (resp.Janus != "event" && resp.Janus != "success") {
		return fmt.Errorf("unexpected rtp_forward response: %+v", resp)
	}
	data := resp.PluginData.Data
	if code := asInt(data, "error_code"); code != 0 {
		return fmt.Errorf("rtp_forward failed: %s (code %d)", asString(data, "error"), code)
	}
	if asString(data, "videoroom") != "rtp_forward" {
		return fmt.Errorf("unexpected rtp_forward response: %+v", data)
	}

	streamID := 0
	if stream, ok := data["rtp_stream"].(map[string]any); ok {
		streamID = asInt(stream, "video_stream_id")
	}

	pub.Subscribed = true
	c.videoPort = c.cfg.VideoRTPPort
	if streamID != 0 {
		c.streamIDs[publisherID] = streamID
	}

	if c.OnVideoReady != nil {
		c.OnVideoReady(c.videoPort, streamID)
	}
	return nil
}

// StopRTPForward tears down a previously established forward.
func (c *VideoRoomClient) StopRTPForward(publisherID int) error {
	streamID, ok := c.streamIDs[publisherID]
	if !ok {
		return nil
	}

	_, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request":      "stop_rtp_forward",
			"room":         c.cfg.RoomID,
			"publisher_id": publisherID,
			"stream_id":    streamID,
			"admin_key":    c.cfg.AdminKeyVideo,
		},
	})
	delete(c.streamIDs, publisherID)
	if pub, ok := c.publishers[publisherID]; ok {
		pub.Subscribed = false
	}
	return err
}

func (c *VideoRoomClient) handleEvent(msg Message) {
	if msg.Janus != "event" || msg.PluginData == nil {
		return
	}
	data := msg.PluginData.Data

	if rawPublishers, ok := data["publishers"].([]any); ok {
		for _, p := range rawPublishers {
			if pm, ok := p.(map[string]any); ok {
				pub := c.addPublisher(pm)
				if c.OnPublisherJoined != nil {
					c.OnPublisherJoined(*pub)
				}
			}
		}
	}

	if code := asInt(data, "error_code"); code != 0 && c.OnError != nil {
		c.OnError(fmt.Sprintf("%s (code %d)", asString(data, "error"), code))
	}
}

func (c *VideoRoomClient) addPublisher(data map[string]any) *Publisher {
	id := asInt(data, "id")
	pub := &Publisher{
		ID:         id,
		Display:    asString(data, "display"),
		AudioCodec: asString(data, "audio_codec"),
		VideoCodec: asString(data, "video_codec"),
	}
	c.publishers[id] = pub
	return pub
}

func (c *VideoRoomClient) keepaliveLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.KeepaliveSecs) * time.Second
	if interval <= 0 {
		interval = 25 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.ws.send(Message{Janus: "keepalive", SessionID: c.sessionID})
		}
	}
}
