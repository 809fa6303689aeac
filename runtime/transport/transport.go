// Package transport establishes the link to the remote realtime model: an
// ordered control channel carrying JSON events and, for WebRTC, a
// bidirectional audio path.
//
// Two establishers are provided. WebRTCEstablisher negotiates a peer
// connection by posting an SDP offer to the realtime endpoint and opens the
// "oai-events" data channel. WebSocketEstablisher dials the realtime
// WebSocket endpoint and carries only control events.
package transport

import (
	"context"
)

// Kind names a transport implementation.
type Kind string

// Transport kinds.
const (
	KindWebRTC    Kind = "webrtc"
	KindWebSocket Kind = "websocket"
)

// Handlers receive inbound traffic. OnMessage calls are serialized and arrive
// in channel order. OnClose fires at most once, after the last OnMessage,
// when the channel ends for any reason other than a local Close.
type Handlers struct {
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// Connection is an established link.
type Connection interface {
	// Kind reports which transport produced the connection.
	Kind() Kind
	// Send writes one control message. It returns a
	// *errors.ChannelNotOpenError when the channel is not open.
	Send(data []byte) error
	// IsOpen reports whether the control channel is open.
	IsOpen() bool
	// Media returns the audio router, or nil when the transport has no
	// media path.
	Media() *AudioRouter
	// Close releases every resource. It is idempotent.
	Close() error
}

// Establisher opens a Connection using a short-lived credential. Establish
// returns only once the control channel is open.
type Establisher interface {
	Establish(ctx context.Context, credential string, handlers Handlers) (Connection, error)
}
