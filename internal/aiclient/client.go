// Package aiclient implements the bidirectional-streaming WebSocket client
// to the cloud multimodal AI endpoint (C9): session setup, realtime audio
// and image input, text turns, and the server's audio/text/interruption
// event stream.
package aiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/andrija/agentbridge/internal/config"
)

const setupTimeout = 5 * time.Second

// ErrNotReady is returned by SendAudio/SendImage before the server has
// confirmed session setup. Callers treat it as a silent drop, not a fault.
var ErrNotReady = errors.New("ai session not ready")

// Client streams audio/video/text to the AI endpoint and delivers server
// events through callback fields, matching the connect-then-register-
// callbacks idiom used throughout this bridge's other WebSocket clients.
type Client struct {
	cfg config.AIConfig
	log *zap.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	running       atomic.Bool
	setupComplete atomic.Bool
	done          chan struct{}

	OnSetupComplete func()
	OnAudio         func(pcm24k []byte)
	OnText          func(text string)
	OnTurnComplete  func()
	OnInterrupted   func()
	OnToolCall      func(ToolCall)
	OnError         func(error)

	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64
}

// ToolCall is a function-call request from the model.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// NewClient builds a Client for the given AI service configuration.
func NewClient(log *zap.Logger, cfg config.AIConfig) *Client {
	return &Client{cfg: cfg, log: log}
}

// Connect dials the WebSocket endpoint, sends the session setup message,
// and blocks until the server confirms setup (or setupTimeout elapses).
func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := url.Parse(c.cfg.WebSocketURL)
	if err != nil {
		return fmt.Errorf("parse ai websocket url: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.cfg.APIKey)
	endpoint.RawQuery = q.Encode()

	c.setupComplete.Store(false)

	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dial ai websocket: %w", err)
	}
	conn.SetReadLimit(int64(c.cfg.MaxMessageBytes))

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.sendSetup(); err != nil {
		conn.Close()
		return err
	}

	setupDone := make(chan struct{})
	prevOnSetup := c.OnSetupComplete
	c.OnSetupComplete = func() {
		close(setupDone)
		c.OnSetupComplete = prevOnSetup
		if prevOnSetup != nil {
			prevOnSetup()
		}
	}

	c.done = make(chan struct{})
	c.running.Store(true)
	go c.receiveLoop()
	go c.pingLoop()

	select {
	case <-setupDone:
		return nil
	case <-time.After(setupTimeout):
		c.Close()
		return fmt.Errorf("ai session setup timed out")
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

func (c *Client) sendSetup() error {
	setup := map[string]any{
		"setup": map[string]any{
			"model": c.cfg.Model,
			"generationConfig": map[string]any{
				"responseModalities": []string{"AUDIO"},
				"mediaResolution":     "MEDIA_RESOLUTION_MEDIUM",
				"speechConfig": map[string]any{
					"voiceConfig": map[string]any{
						"prebuiltVoiceConfig": map[string]any{"voiceName": c.cfg.Voice},
					},
				},
			},
			"systemInstruction": map[string]any{
				"parts": []map[string]any{{"text": c.cfg.SystemInstruction}},
			},
		},
	}
	return c.writeJSON(setup)
}

// pingLoop keeps the long-lived connection alive at the WebSocket level
// during stretches where no audio flows in either direction.
func (c *Client) pingLoop() {
	interval := time.Duration(c.cfg.PingIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	deadline := time.Duration(c.cfg.PingTimeoutSecs) * time.Second
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(deadline))
			}
			c.mu.Unlock()
		}
	}
}

// SendAudio streams one chunk of little-endian PCM16 input audio at the
// configured input sample rate. The wire key is camelCase ("mediaChunks"),
// unlike SendImage's snake_case key — the service's own API is inconsistent
// about this across modalities.
func (c *Client) SendAudio(pcm16 []byte) error {
	if !c.IsReady() {
		return ErrNotReady
	}
	msg := map[string]any{
		"realtimeInput": map[string]any{
			"mediaChunks": []map[string]any{{
				"mimeType": fmt.Sprintf("audio/pcm;rate=%d", c.cfg.InputSampleRate),
				"data":     base64.StdEncoding.EncodeToString(pcm16),
			}},
		},
	}
	if err := c.writeJSON(msg); err != nil {
		return err
	}
	c.BytesSent.Add(uint64(len(pcm16)))
	return nil
}

// SendImage streams one JPEG still. Unlike SendAudio, this uses the
// service's snake_case "realtime_input"/"media" field names.
func (c *Client) SendImage(jpegBytes []byte) error {
	if !c.IsReady() {
		return ErrNotReady
	}
	msg := map[string]any{
		"realtime_input": map[string]any{
			"media": map[string]any{
				"mime_type": "image/jpeg",
				"data":      base64.StdEncoding.EncodeToString(jpegBytes),
			},
		},
	}
	if err := c.writeJSON(msg); err != nil {
		return err
	}
	c.BytesSent.Add(uint64(len(jpegBytes)))
	return nil
}

// SendText submits a text turn, optionally ending the user's turn.
func (c *Client) SendText(text string, turnComplete bool) error {
	msg := map[string]any{
		"clientContent": map[string]any{
			"turns": []map[string]any{{
				"role":  "user",
				"parts": []map[string]any{{"text": text}},
			}},
			"turnComplete": turnComplete,
		},
	}
	return c.writeJSON(msg)
}

// SendToolResponse replies to a prior ToolCall.
func (c *Client) SendToolResponse(id string, response map[string]any) error {
	msg := map[string]any{
		"toolResponse": map[string]any{
			"functionResponses": []map[string]any{{
				"id":       id,
				"response": response,
			}},
		},
	}
	return c.writeJSON(msg)
}

func (c *Client) writeJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal ai message: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("ai client not connected")
	}

	c.mu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, raw)
	c.mu.Unlock()
	return err
}

// Close terminates the connection and stops the receive loop.
func (c *Client) Close() error {
	c.running.Store(false)
	c.setupComplete.Store(false)
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether the receive loop is running.
func (c *Client) IsConnected() bool {
	return c.running.Load()
}

// IsReady reports whether the session is connected and the server has
// confirmed setup, i.e. media may be streamed.
func (c *Client) IsReady() bool {
	return c.running.Load() && c.setupComplete.Load()
}
