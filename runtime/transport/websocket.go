package transport

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

// Default WebSocket connection constants.
const (
	DefaultWebSocketURL      = "wss://api.openai.com/v1/realtime"
	DefaultDialTimeout       = 10 * time.Second
	DefaultWriteWait         = 10 * time.Second
	DefaultMaxMessageSize    = 16 * 1024 * 1024 // 16MB
	DefaultMaxRetries        = 3
	DefaultRetryBackoffBase  = 1 * time.Second
	DefaultRetryBackoffMax   = 30 * time.Second
	DefaultCloseGracePeriod  = 5 * time.Second
	DefaultHeartbeatInterval = 20 * time.Second
)

// jitterFactor is the +-25% jitter applied to backoff delays.
const jitterFactor = 0.25

// jitterPrecision is the granularity for crypto/rand jitter generation.
const jitterPrecision = 1000

// jitterHalfPrecision normalizes jitter output to the range [-1, 1].
const jitterHalfPrecision = jitterPrecision / 2

// WebSocketConfig configures a WebSocketEstablisher.
type WebSocketConfig struct {
	// URL is the WebSocket endpoint. Defaults to DefaultWebSocketURL.
	URL string
	// Model is sent as the model query parameter. Defaults to realtime.DefaultModel.
	Model string
	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration
	// WriteWait is the write deadline for each message. Defaults to DefaultWriteWait.
	WriteWait time.Duration
	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64
	// MaxRetries is the number of dial attempts. Auth failures are never retried.
	MaxRetries int
	// RetryBackoffBase is the initial backoff delay. Defaults to DefaultRetryBackoffBase.
	RetryBackoffBase time.Duration
	// RetryBackoffMax caps the backoff delay. Defaults to DefaultRetryBackoffMax.
	RetryBackoffMax time.Duration
	// CloseGracePeriod is the deadline for writing the close frame.
	CloseGracePeriod time.Duration
	// HeartbeatInterval is the ping period. Negative disables pings.
	HeartbeatInterval time.Duration
	// Headers are added to the handshake.
	Headers http.Header
}

func (c *WebSocketConfig) defaults() {
	if c.URL == "" {
		c.URL = DefaultWebSocketURL
	}
	if c.Model == "" {
		c.Model = realtime.DefaultModel
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// WebSocketEstablisher dials the realtime WebSocket endpoint. The resulting
// connection has no media path; audio travels as base64 in control events.
type WebSocketEstablisher struct {
	cfg WebSocketConfig
}

// NewWebSocketEstablisher creates an establisher.
func NewWebSocketEstablisher(cfg WebSocketConfig) *WebSocketEstablisher {
	cfg.defaults()
	return &WebSocketEstablisher{cfg: cfg}
}

// Establish dials with retry, then starts the read loop and heartbeat.
func (e *WebSocketEstablisher) Establish(ctx context.Context, credential string, handlers Handlers) (Connection, error) {
	if credential == "" {
		return nil, &pkgerrors.AuthError{Cause: pkgerrors.ErrNoCredential}
	}
	endpoint, err := url.Parse(e.cfg.URL)
	if err != nil {
		return nil, &pkgerrors.TransportError{Op: "dial", Cause: err}
	}
	q := endpoint.Query()
	q.Set("model", e.cfg.Model)
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	for k, v := range e.cfg.Headers {
		headers[k] = append([]string(nil), v...)
	}
	headers.Set("Authorization", "Bearer "+credential)
	headers.Set("OpenAI-Beta", "realtime=v1")

	c := &wsConn{
		cfg:     e.cfg,
		url:     endpoint.String(),
		headers: headers,
		closeCh: make(chan struct{}),
	}
	if err := c.connectWithRetry(ctx); err != nil {
		return nil, err
	}

	c.inbox = newInbox(handlers)
	go c.readLoop()
	if e.cfg.HeartbeatInterval > 0 {
		go c.heartbeatLoop(e.cfg.HeartbeatInterval)
	}
	logger.Info("events channel open", "transport", KindWebSocket)
	return c, nil
}

// wsConn manages a WebSocket connection with retry, heartbeat, and graceful shutdown.
type wsConn struct {
	cfg     WebSocketConfig
	url     string
	headers http.Header

	conn    *websocket.Conn
	inbox   *inbox
	mu      sync.Mutex
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
	closed  bool
	closeCh chan struct{}
}

// connect performs one handshake. 401 and 403 become AuthError.
func (c *wsConn) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	logger.Debug("connecting to WebSocket", "url", c.url)

	conn, resp, err := dialer.DialContext(ctx, c.url, c.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			logger.Error("WebSocket dial failed", "error", err, "status", resp.StatusCode)
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return &pkgerrors.AuthError{StatusCode: resp.StatusCode, Cause: err}
			}
		}
		return &pkgerrors.TransportError{Op: "dial", Cause: err}
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// connectWithRetry attempts to connect with exponential backoff and jitter.
func (c *wsConn) connectWithRetry(ctx context.Context) error {
	var lastErr error
	backoff := c.cfg.RetryBackoffBase

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &pkgerrors.TransportError{Op: "dial", Cause: err}
		}

		err := c.connect(ctx)
		if err == nil {
			return nil
		}
		if _, ok := pkgerrors.AsAuthError(err); ok {
			return err
		}
		lastErr = err

		logger.Warn("connection attempt failed",
			"attempt", attempt, "max_attempts", c.cfg.MaxRetries, "error", lastErr)

		if attempt < c.cfg.MaxRetries {
			delay := calculateBackoff(backoff, c.cfg.RetryBackoffMax)
			select {
			case <-ctx.Done():
				return &pkgerrors.TransportError{Op: "dial", Cause: ctx.Err()}
			case <-time.After(delay):
			}
			backoff *= 2
			if backoff > c.cfg.RetryBackoffMax {
				backoff = c.cfg.RetryBackoffMax
			}
		}
	}

	return &pkgerrors.TransportError{
		Op:    "dial",
		Cause: fmt.Errorf("failed to connect after %d attempts: %w", c.cfg.MaxRetries, lastErr),
	}
}

func (c *wsConn) Kind() Kind { return KindWebSocket }

func (c *wsConn) Media() *AudioRouter { return nil }

func (c *wsConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// Send writes pre-encoded data to the WebSocket.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return &pkgerrors.ChannelNotOpenError{}
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return &pkgerrors.TransportError{Op: "send", Cause: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &pkgerrors.TransportError{Op: "send", Cause: err}
	}
	return nil
}

// readLoop feeds the inbox until the socket fails or is closed.
func (c *wsConn) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			select {
			case <-c.closeCh:
			default:
				logger.Info("events channel closed", "transport", KindWebSocket, "error", err)
			}
			c.inbox.end(err)
			return
		}
		// Accept both text and binary messages
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.inbox.push(data)
	}
}

func (c *wsConn) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *wsConn) sendPing() bool {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return false
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		logger.Warn("failed to set write deadline for ping", "error", err)
		return true // non-fatal
	}
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		logger.Warn("ping failed", "error", err)
		return false
	}
	return true
}

// Close gracefully closes the WebSocket connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)
	if c.inbox != nil {
		c.inbox.stop()
	}
	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseGracePeriod))
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	err := c.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// calculateBackoff computes a backoff duration with +-25% jitter, capped at maxDelay.
func calculateBackoff(base, maxDelay time.Duration) time.Duration {
	delay := float64(base)
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(jitterPrecision))
	jitter := delay * jitterFactor * (float64(n.Int64())/jitterHalfPrecision - 1)
	result := delay + jitter
	if result < 0 {
		result = float64(base)
	}
	if result > float64(maxDelay) {
		result = float64(maxDelay)
	}
	return time.Duration(math.Max(result, 0))
}
