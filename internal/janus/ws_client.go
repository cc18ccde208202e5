package janus

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	pingInterval   = 30 * time.Second
	pingTimeout    = 10 * time.Second
)

var janusDialer = &websocket.Dialer{Subprotocols: []string{"janus-protocol"}}

// wsClient is the low-level Janus WebSocket transport shared by the
// AudioBridge and VideoRoom clients: connect/send/close plus a dual-mode
// request/response correlation scheme. Before the receive loop starts,
// send blocks and reads inline off the socket, filtering for its own
// transaction ID; once the receive loop is running, it registers a future
// in a transaction map and the loop resolves it. The two modes are never
// mixed for the same request.
type wsClient struct {
	log *zap.Logger
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	running atomic.Bool
	done    chan struct{}

	pending sync.Map // transaction string -> chan Message

	onEvent func(Message)
	onError func(string)
}

func newWSClient(log *zap.Logger, url string) *wsClient {
	return &wsClient{log: log, url: url}
}

func (c *wsClient) connect() error {
	conn, _, err := janusDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial janus websocket %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.log.Info("connected to janus", zap.String("url", c.url))
	return nil
}

// startReceiveLoop begins dispatching subsequent messages to either a
// pending transaction's future or, for unsolicited events, onEvent/onError.
// Must be called after connect() and after any inline startup sequence that
// used send() in its synchronous mode has completed.
func (c *wsClient) startReceiveLoop() {
	c.done = make(chan struct{})
	c.running.Store(true)
	go c.receiveLoop()
	go c.pingLoop()
}

// pingLoop keeps the WebSocket alive at the protocol level, alongside the
// plugin-level keepalive messages the owning client sends.
func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingTimeout))
			}
			c.mu.Unlock()
		}
	}
}

func (c *wsClient) receiveLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
				c.log.Info("janus connection closed", zap.Error(err))
				if c.onError != nil {
					c.onError(err.Error())
				}
				return
			}
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("malformed janus message", zap.Error(err))
			continue
		}

		if msg.Transaction != "" {
			if ch, ok := c.pending.LoadAndDelete(msg.Transaction); ok {
				ch.(chan Message) <- msg
				continue
			}
		}

		if msg.Janus == "error" {
			reason := ""
			if msg.Error != nil {
				reason = msg.Error.Reason
			}
			if c.onError != nil {
				c.onError(reason)
			}
			continue
		}

		if c.onEvent != nil {
			c.onEvent(msg)
		}
	}
}

// send transmits a message, assigning it a transaction ID, and waits for
// the matching response. Before startReceiveLoop, this reads inline off
// the socket; afterward, it waits on a future resolved by the receive loop.
func (c *wsClient) send(msg Message) (Message, error) {
	if msg.Transaction == "" {
		msg.Transaction = uuid.NewString()
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("marshal janus message: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return Message{}, fmt.Errorf("janus client not connected")
	}

	if c.running.Load() {
		return c.sendAsync(conn, raw, msg.Transaction)
	}
	return c.sendInline(conn, raw, msg.Transaction)
}

func (c *wsClient) sendAsync(conn *websocket.Conn, raw []byte, transaction string) (Message, error) {
	ch := make(chan Message, 1)
	c.pending.Store(transaction, ch)

	c.mu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, raw)
	c.mu.Unlock()
	if err != nil {
		c.pending.Delete(transaction)
		return Message{}, fmt.Errorf("send janus message: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(requestTimeout):
		c.pending.Delete(transaction)
		return Message{}, fmt.Errorf("janus request timed out: transaction=%s", transaction)
	}
}

// sendInline is used only during startup, before the receive loop exists:
// it writes the request then reads directly off the socket, discarding
// anything that doesn't match the transaction, honoring Janus's
// ack-then-event sequencing (acks are skipped, the eventual event/success/
// error response is returned).
func (c *wsClient) sendInline(conn *websocket.Conn, raw []byte, transaction string) (Message, error) {
	c.mu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, raw)
	c.mu.Unlock()
	if err != nil {
		return Message{}, fmt.Errorf("send janus message: %w", err)
	}

	deadline := time.Now().Add(requestTimeout)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, rawResp, err := conn.ReadMessage()
		if err != nil {
			return Message{}, fmt.Errorf("janus inline read: %w", err)
		}

		var msg Message
		if err := json.Unmarshal(rawResp, &msg); err != nil {
			continue
		}
		if msg.Transaction != transaction {
			continue
		}
		if msg.Janus == "ack" {
			continue
		}
		// Leave the socket usable for the receive loop that takes over
		// once the synchronous startup sequence finishes.
		conn.SetReadDeadline(time.Time{})
		return msg, nil
	}

	return Message{}, fmt.Errorf("janus inline request timed out: transaction=%s", transaction)
}

func (c *wsClient) close() error {
	c.running.Store(false)
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
