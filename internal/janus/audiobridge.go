package janus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
)

// Participant mirrors an AudioBridge room member as tracked by Janus events.
type Participant struct {
	ID      int
	Display string
	Muted   bool
	Talking bool
}

// JoinedEvent carries the data delivered to OnJoined after a successful
// AudioBridge join.
type JoinedEvent struct {
	ParticipantID int
	RTPTargetIP   string
	RTPTargetPort int
	Participants  []Participant
}

// AudioBridgeClient joins a Janus AudioBridge room as a plain RTP
// participant: no WebRTC, no SDP — just a UDP RTP socket pair negotiated
// over the janus-protocol WebSocket.
type AudioBridgeClient struct {
	cfg config.JanusConfig
	log *zap.Logger
	ws  *wsClient

	sessionID uint64
	handleID  uint64

	participantID int
	rtpTargetIP   string
	rtpTargetPort int

	participants map[int]Participant

	OnJoined              func(JoinedEvent)
	OnParticipantsChanged func([]Participant)
	OnError               func(string)

	keepaliveCancel context.CancelFunc
}

// NewAudioBridgeClient builds an AudioBridgeClient for the given config.
func NewAudioBridgeClient(log *zap.Logger, cfg config.JanusConfig) *AudioBridgeClient {
	return &AudioBridgeClient{
		cfg:          cfg,
		log:          log,
		ws:           newWSClient(log, cfg.WebSocketURL),
		participants: make(map[int]Participant),
	}
}

// RTPTarget returns where the bridge should send its outgoing RTP audio.
func (c *AudioBridgeClient) RTPTarget() (string, int) {
	return c.rtpTargetIP, c.rtpTargetPort
}

// ParticipantID returns this client's own AudioBridge participant ID.
func (c *AudioBridgeClient) ParticipantID() int { return c.participantID }

// Start runs the full join sequence: connect, create session, attach
// AudioBridge, (re)create the room, join as a plain RTP participant,
// configure our RTP endpoint, then switch to background event handling.
func (c *AudioBridgeClient) Start(ctx context.Context) error {
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

	c.recreateRoom()

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
func (c *AudioBridgeClient) Stop() error {
	if c.keepaliveCancel != nil {
		c.keepaliveCancel()
	}
	return c.ws.close()
}

func (c *AudioBridgeClient) createSession() error {
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

func (c *AudioBridgeClient) attachPlugin() error {
	resp, err := c.ws.send(Message{
		Janus:     "attach",
		SessionID: c.sessionID,
		Plugin:    "janus.plugin.audiobridge",
	})
	if err != nil {
		return err
	}
	id, ok := dataID(resp.Data)
	if resp.Janus != "success" || !ok {
		return fmt.Errorf("attach audiobridge failed: %+v", resp)
	}
	c.handleID = id
	return nil
}

// recreateRoom destroys any stale room from a previous run, then creates a
// fresh one with allow_rtp_participants so plain-RTP joins are accepted.
// Both failures are non-fatal: a missing room to destroy, or a room that
// already exists (error_code 486), are both expected outcomes.
func (c *AudioBridgeClient) recreateRoom() {
	c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request":   "destroy",
			"room":      c.cfg.RoomID,
			"admin_key": c.cfg.AdminKeyAudio,
		},
	})

	c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request":               "create",
			"room":                  c.cfg.RoomID,
			"description":           fmt.Sprintf("AgentBridge Room %d", c.cfg.RoomID),
			"is_private":            false,
			"sampling_rate":         48000,
			"audiolevel_event":      true,
			"audio_active_packets":  50,
			"audio_level_average":   25,
			"record":                false,
			"allow_rtp_participants": true,
			"admin_key":             c.cfg.AdminKeyAudio,
		},
	})
}

func (c *AudioBridgeClient) joinRoom() error {
	resp, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request": "join",
			"room":    c.cfg.RoomID,
			"display": c.cfg.DisplayName,
			"muted":   false,
			"rtp": map[string]any{
				"ip":           c.cfg.RTPHost,
				"port":         c.cfg.RTPPort,
				"payload_type": 111,
			},
		},
	})
	if err != nil {
		return err
	}

	if resp.Janus != "event" || resp.PluginData == nil {
		return fmt.Errorf("join audiobridge room failed: %+v", resp)
	}
	data := resp.PluginData.Data
	if code := asInt(data, "error_code"); code != 0 {
		return fmt.Errorf("join audiobridge room error: %s (code %d)", asString(data, "error"), code)
	}
	if asString(data, "audiobridge") != "joined" {
		return fmt.Errorf("unexpected join response: %+v", data)
	}

	c.participantID = asInt(data, "id")

	if rtpInfo, ok := data["rtp"].(map[string]any); ok {
		c.rtpTargetIP = asString(rtpInfo, "ip")
		c.rtpTargetPort = asInt(rtpInfo, "port")
	}

	if participants, ok := data["participants"].([]any); ok {
		for _, p := range participants {
			if pm, ok := p.(map[string]any); ok {
				c.addParticipant(pm)
			}
		}
	}

	if c.rtpTargetIP != "" {
		c.configureRTP()
	}

	if c.OnJoined != nil {
		c.OnJoined(JoinedEvent{
			ParticipantID: c.participantID,
			RTPTargetIP:   c.rtpTargetIP,
			RTPTargetPort: c.rtpTargetPort,
			Participants:  c.participantList(),
		})
	}

	return nil
}

// configureRTP tells Janus where to send the room's mixed audio. Response
// is best-effort: Janus may not emit anything beyond the ack here.
func (c *AudioBridgeClient) configureRTP() {
	c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request": "configure",
			"rtp": map[string]any{
				"ip":             c.cfg.RTPHost,
				"port":           c.cfg.RTPPort,
				"payload_type":   111,
				"audiolevel_ext": 1,
			},
		},
	})
}

// SetMuted mutes or unmutes this participant in the room's mix.
func (c *AudioBridgeClient) SetMuted(muted bool) error {
	_, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request": "configure",
			"muted":   muted,
		},
	})
	return err
}

// ConfigureRTPForwarding requests Janus forward a specific participant's
// audio stream via RTP to forwardHost:forwardPort. Used to route a newly
// joined human participant's audio to a dedicated jitter-buffered path
// instead of the room's already-mixed output.
func (c *AudioBridgeClient) ConfigureRTPForwarding(forwardHost string, forwardPort int, publisherID int) error {
	resp, err := c.ws.send(Message{
		Janus: "message", SessionID: c.sessionID, HandleID: c.handleID,
		Body: map[string]any{
			"request":      "rtp_forward",
			"room":         c.cfg.RoomID,
			"publisher_id": publisherID,
			"host":         forwardHost,
			"port":         forwardPort,
			"codec":        "opus",
			"ptype":        111,
			"ssrc":         c.cfg.RTPForwardSSRC,
			"admin_key":    c.cfg.AdminKeyAudio,
		},
	})
	if err != nil {
		return err
	}
	if resp.PluginData != nil {
		if code := asInt(resp.PluginData.Data, "error_code"); code != 0 {
			return fmt.Errorf("rtp_forward failed: %s (code %d)", asString(resp.PluginData.Data, "error"), code)
		}
	}
	return nil
}

func (c *AudioBridgeClient) handleEvent(msg Message) {
	if msg.Janus != "event" || msg.PluginData == nil {
		return
	}
	data := msg.PluginData.Data
	eventType := asString(data, "audiobridge")

	switch eventType {
	case "event":
		if rawParticipants, ok := data["participants"].([]any); ok {
			for _, p := range rawParticipants {
				if pm, ok := p.(map[string]any); ok {
					c.addParticipant(pm)
				}
			}
			if c.OnParticipantsChanged != nil {
				c.OnParticipantsChanged(c.participantList())
			}
		}
		if leaving, ok := data["leaving"]; ok {
			if id, ok := leaving.(float64); ok {
				delete(c.participants, int(id))
				if c.OnParticipantsChanged != nil {
					c.OnParticipantsChanged(c.participantList())
				}
			}
		}
	case "talking", "stopped-talking":
		id := asInt(data, "id")
		if p, ok := c.participants[id]; ok {
			p.Talking = eventType == "talking"
			c.participants[id] = p
		}
	}

	if code := asInt(data, "error_code"); code != 0 && c.OnError != nil {
		c.OnError(fmt.Sprintf("%s (code %d)", asString(data, "error"), code))
	}
}

func (c *AudioBridgeClient) addParticipant(data map[string]any) {
	id := asInt(data, "id")
	if id == 0 {
		return
	}
	c.participants[id] = Participant{
		ID:      id,
		Display: asString(data, "display"),
		Muted:   asBool(data, "muted"),
	}
}

func (c *AudioBridgeClient) participantList() []Participant {
	out := make([]Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	return out
}

func (c *AudioBridgeClient) keepaliveLoop(ctx context.Context) {
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
