package transport

import (
	"context"
	"encoding/json"
)

// Message represents a JSON-RPC 2.0 frame in either direction.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HasID reports whether the frame carried an id. A literal null counts as
// absent: responses must echo a usable id or none.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Handler processes one inbound frame and returns the response frame, or
// nil for notifications. Handlers must be safe for concurrent use: the
// transports dispatch each frame on its own goroutine so the read loop
// never blocks on a slow call.
type Handler func(ctx context.Context, msg *Message) *Message

// Transport is a duplex frame stream. WriteMessage must serialize
// concurrent writers so frames are never interleaved.
type Transport interface {
	// Start runs the accept/read loop until ctx is cancelled or the
	// underlying stream fails.
	Start(ctx context.Context) error

	// WriteMessage writes one frame. Safe for concurrent use.
	WriteMessage(msg *Message) error

	// Close gracefully shuts the transport down.
	Close() error
}
