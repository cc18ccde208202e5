// Package janus implements WebSocket clients for Janus Gateway's AudioBridge
// and VideoRoom plugins, operating both as plain-RTP participants (no SDP,
// no DTLS/ICE) so the bridge exchanges only UDP RTP with Janus directly.
package janus

import "encoding/json"

// Message is the generic envelope for every Janus request/response/event.
// Janus's wire protocol is too polymorphic for a single fixed struct per
// message kind, so Body/PluginData carry loosely-typed payloads the callers
// navigate with type assertions, matching how the plugin-level requests
// vary per call.
type Message struct {
	Janus       string          `json:"janus"`
	Transaction string          `json:"transaction,omitempty"`
	SessionID   uint64          `json:"session_id,omitempty"`
	HandleID    uint64          `json:"handle_id,omitempty"`
	Plugin      string          `json:"plugin,omitempty"`
	Body        map[string]any  `json:"body,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	PluginData  *PluginData     `json:"plugindata,omitempty"`
	Error       *ErrorBody      `json:"error,omitempty"`
}

// PluginData carries a plugin's event/response payload, keyed by plugin
// name ("audiobridge" or "videoroom" in this bridge).
type PluginData struct {
	Plugin string         `json:"plugin"`
	Data   map[string]any `json:"data"`
}

// ErrorBody is Janus's top-level error envelope ("janus": "error").
type ErrorBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// dataID extracts the numeric "id" from a "success" response's data object,
// used for session/handle IDs.
func dataID(raw json.RawMessage) (uint64, bool) {
	var v struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v.ID, v.ID != 0
}

func asString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func asInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func asBool(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}
