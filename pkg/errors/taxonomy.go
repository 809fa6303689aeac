package errors

import (
	"errors"
	"strconv"
)

// Sentinel errors for common failure cases.
var (
	// ErrNoCredential is returned when the credential service answers without a usable secret.
	ErrNoCredential = errors.New("credential service returned no client secret")

	// ErrNegotiationTimeout is returned when the control channel does not open in time.
	ErrNegotiationTimeout = errors.New("negotiation did not complete in time")

	// ErrConnectAborted is returned by Connect when a disconnect overtook the attempt.
	ErrConnectAborted = errors.New("connect attempt aborted by disconnect")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("session is not connected")

	// ErrToolNotRegistered is returned when the model calls a tool with no local handler.
	ErrToolNotRegistered = errors.New("tool handler not registered")
)

// AuthError reports that the credential was missing or rejected.
// It is fatal for the current connect attempt only.
type AuthError struct {
	// StatusCode is the HTTP status returned by the remote endpoint, if any.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := "authentication failed"
	if e.StatusCode > 0 {
		msg += " (" + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// TransportError reports a failed or timed out negotiation, or a lost link.
type TransportError struct {
	// Op names the transport step that failed (e.g. "offer", "answer", "dial").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := "transport " + e.Op + " failed"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ChannelNotOpenError is returned when a client event is sent while the control
// channel is not open. The event is dropped.
type ChannelNotOpenError struct {
	// EventType is the type tag of the dropped event, when known.
	EventType string
}

// Error implements the error interface.
func (e *ChannelNotOpenError) Error() string {
	if e.EventType == "" {
		return "control channel not open"
	}
	return "control channel not open: dropped " + e.EventType
}

// MalformedEventError reports an inbound control message that could not be decoded
// or handled. It never escapes the dispatcher.
type MalformedEventError struct {
	// EventType is the type tag, if one could be read.
	EventType string

	// Reason is a short description of what was wrong.
	Reason string

	// Cause is the underlying decode error, if any.
	Cause error
}

// Error implements the error interface.
func (e *MalformedEventError) Error() string {
	msg := "malformed event"
	if e.EventType != "" {
		msg += " " + e.EventType
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MalformedEventError) Unwrap() error {
	return e.Cause
}

// UnknownPersonaError is returned when a handoff names an agent that is not loaded.
type UnknownPersonaError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownPersonaError) Error() string {
	return "unknown agent " + strconv.Quote(e.Name)
}

// UnauthorizedTransferError is returned when a handoff follows an edge that does
// not exist in the agent graph.
type UnauthorizedTransferError struct {
	From string
	To   string
}

// Error implements the error interface.
func (e *UnauthorizedTransferError) Error() string {
	return "agent " + strconv.Quote(e.From) + " may not transfer to " + strconv.Quote(e.To)
}

// AsAuthError checks if an error is an AuthError and returns it.
//
//	if err := ctrl.Connect(ctx); err != nil {
//	    if authErr, ok := errors.AsAuthError(err); ok {
//	        fmt.Printf("credential rejected: %d\n", authErr.StatusCode)
//	    }
//	}
func AsAuthError(err error) (*AuthError, bool) {
	var target *AuthError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsTransportError checks if an error is a TransportError and returns it.
func AsTransportError(err error) (*TransportError, bool) {
	var target *TransportError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsChannelNotOpen reports whether err is a ChannelNotOpenError.
func IsChannelNotOpen(err error) bool {
	var target *ChannelNotOpenError
	return errors.As(err, &target)
}
