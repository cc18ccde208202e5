package aiclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// serverMessage is the union of shapes the AI endpoint sends back. Only one
// top-level key is ever populated per message.
type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`

	ServerContent *struct {
		ModelTurn *struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"modelTurn"`
		TurnComplete bool `json:"turnComplete"`
		Interrupted  bool `json:"interrupted"`
	} `json:"serverContent"`

	ToolCall *struct {
		FunctionCalls []ToolCall `json:"functionCalls"`
	} `json:"toolCall"`
}

func (c *Client) receiveLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
				c.running.Store(false)
				c.setupComplete.Store(false)
				if c.OnError != nil {
					c.OnError(fmt.Errorf("ai connection closed: %w", err))
				}
				return
			}
		}

		c.BytesReceived.Add(uint64(len(raw)))

		if msgType == websocket.BinaryMessage {
			if c.OnAudio != nil {
				c.OnAudio(raw)
			}
			continue
		}

		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Warn("malformed ai server message", zap.Error(err))
		return
	}

	if msg.SetupComplete != nil {
		c.setupComplete.Store(true)
		if c.OnSetupComplete != nil {
			c.OnSetupComplete()
		}
	}

	if msg.ServerContent != nil {
		content := msg.ServerContent

		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part.Text != "" && c.OnText != nil {
					c.OnText(part.Text)
				}
				if part.InlineData != nil && part.InlineData.Data != "" && strings.HasPrefix(part.InlineData.MimeType, "audio/pcm") {
					pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
					if err != nil {
						continue
					}
					if c.OnAudio != nil {
						c.OnAudio(pcm)
					}
				}
			}
		}

		if content.Interrupted && c.OnInterrupted != nil {
			c.OnInterrupted()
		}
		if content.TurnComplete && c.OnTurnComplete != nil {
			c.OnTurnComplete()
		}
	}

	if msg.ToolCall != nil && c.OnToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			c.OnToolCall(call)
		}
	}
}
