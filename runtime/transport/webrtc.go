package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	pkgerrors "github.com/tccoin/museum-agent/pkg/errors"
	"github.com/tccoin/museum-agent/pkg/httputil"
	"github.com/tccoin/museum-agent/runtime/logger"
	"github.com/tccoin/museum-agent/runtime/realtime"
)

// Defaults for the WebRTC establisher.
const (
	DefaultRealtimeURL  = "https://api.openai.com/v1/realtime"
	EventsChannelLabel  = "oai-events"
	maxAnswerBytes      = 1 << 20
	localTrackID        = "microphone"
	localStreamID       = "museum-agent"
	sdpContentType      = "application/sdp"
	rtcpReadBufferBytes = 1500
)

// WebRTCConfig configures a WebRTCEstablisher.
type WebRTCConfig struct {
	// BaseURL is the SDP exchange endpoint. Defaults to DefaultRealtimeURL.
	BaseURL string
	// Model is sent as the model query parameter. Defaults to realtime.DefaultModel.
	Model string
	// Codec restricts the media engine: "opus" (default), "pcmu" or "pcma".
	Codec string
	// NegotiationTimeout bounds the offer/answer exchange and the wait for
	// the data channel to open.
	NegotiationTimeout time.Duration
	// ICEServers are passed to the peer connection.
	ICEServers []webrtc.ICEServer
	// HTTPClient posts the offer. Defaults to a client bounded by NegotiationTimeout.
	HTTPClient *http.Client
	// SettingEngine tunes ICE behaviour. Optional.
	SettingEngine *webrtc.SettingEngine
}

func (c *WebRTCConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultRealtimeURL
	}
	if c.Model == "" {
		c.Model = realtime.DefaultModel
	}
	if c.NegotiationTimeout == 0 {
		c.NegotiationTimeout = httputil.DefaultNegotiationTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = httputil.NewHTTPClient(c.NegotiationTimeout)
	}
}

// WebRTCEstablisher negotiates a peer connection with the realtime endpoint.
type WebRTCEstablisher struct {
	cfg WebRTCConfig
}

// NewWebRTCEstablisher creates an establisher.
func NewWebRTCEstablisher(cfg WebRTCConfig) *WebRTCEstablisher {
	cfg.defaults()
	return &WebRTCEstablisher{cfg: cfg}
}

// Establish creates the peer connection, exchanges SDP and waits for the
// events channel to open. Every resource is released on failure.
func (e *WebRTCEstablisher) Establish(ctx context.Context, credential string, handlers Handlers) (Connection, error) {
	if credential == "" {
		return nil, &pkgerrors.AuthError{Cause: pkgerrors.ErrNoCredential}
	}
	codec, err := codecParameters(e.cfg.Codec)
	if err != nil {
		return nil, &pkgerrors.TransportError{Op: "configure", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.NegotiationTimeout)
	defer cancel()

	conn, err := e.newConn(codec, handlers)
	if err != nil {
		return nil, err
	}

	if err := e.negotiate(ctx, conn, credential); err != nil {
		_ = conn.Close()
		return nil, err
	}

	select {
	case <-conn.opened:
		logger.Info("events channel open", "transport", KindWebRTC, "codec", codec.MimeType)
		return conn, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, &pkgerrors.TransportError{Op: "open", Cause: timeoutCause(ctx)}
	}
}

func (e *WebRTCEstablisher) newConn(codec webrtc.RTPCodecParameters, handlers Handlers) (*webrtcConn, error) {
	api, err := newAPI(codec, e.cfg.SettingEngine)
	if err != nil {
		return nil, &pkgerrors.TransportError{Op: "configure", Cause: err}
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: e.cfg.ICEServers})
	if err != nil {
		return nil, &pkgerrors.TransportError{Op: "peer connection", Cause: err}
	}

	c := &webrtcConn{pc: pc, opened: make(chan struct{}), inbox: newInbox(handlers)}

	track, err := webrtc.NewTrackLocalStaticSample(codec.RTPCodecCapability, localTrackID, localStreamID)
	if err != nil {
		_ = c.Close()
		return nil, &pkgerrors.TransportError{Op: "local track", Cause: err}
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = c.Close()
		return nil, &pkgerrors.TransportError{Op: "local track", Cause: err}
	}
	go drainRTCP(sender)

	c.router = NewAudioRouter(track, codec)
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.router.attach(remote)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			c.inbox.end(&pkgerrors.TransportError{Op: "ice", Cause: errors.New("peer connection failed")})
		}
	})

	ordered := true
	dc, err := pc.CreateDataChannel(EventsChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = c.Close()
		return nil, &pkgerrors.TransportError{Op: "data channel", Cause: err}
	}
	c.dc = dc

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(c.opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.inbox.push(msg.Data)
	})
	dc.OnClose(func() {
		logger.Info("events channel closed", "transport", KindWebRTC)
		c.inbox.end(nil)
	})
	dc.OnError(func(err error) {
		logger.Warn("events channel error", "transport", KindWebRTC, "error", err)
	})
	return c, nil
}

// negotiate gathers ICE candidates, posts the offer and applies the answer.
func (e *WebRTCEstablisher) negotiate(ctx context.Context, c *webrtcConn, credential string) error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return &pkgerrors.TransportError{Op: "offer", Cause: err}
	}
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return &pkgerrors.TransportError{Op: "offer", Cause: err}
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return &pkgerrors.TransportError{Op: "ice gathering", Cause: timeoutCause(ctx)}
	}

	answer, err := e.postOffer(ctx, c.pc.LocalDescription().SDP, credential)
	if err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return &pkgerrors.TransportError{Op: "answer", Cause: err}
	}
	return nil
}

func (e *WebRTCEstablisher) postOffer(ctx context.Context, sdp, credential string) (string, error) {
	endpoint, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return "", &pkgerrors.TransportError{Op: "offer", Cause: err}
	}
	q := endpoint.Query()
	q.Set("model", e.cfg.Model)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewBufferString(sdp))
	if err != nil {
		return "", &pkgerrors.TransportError{Op: "offer", Cause: err}
	}
	req.Header.Set("Content-Type", sdpContentType)
	req.Header.Set("Authorization", "Bearer "+credential)

	logger.APIRequest("realtime", http.MethodPost, endpoint.String(), map[string]string{
		"Content-Type":  sdpContentType,
		"Authorization": "Bearer " + credential,
	}, nil)
	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = timeoutCause(ctx)
		}
		return "", &pkgerrors.TransportError{Op: "offer", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if err != nil {
		return "", &pkgerrors.TransportError{Op: "answer", Cause: err}
	}
	logger.APIResponse("realtime", resp.StatusCode, "", nil)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &pkgerrors.AuthError{StatusCode: resp.StatusCode, Cause: errors.New(string(bytes.TrimSpace(body)))}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &pkgerrors.TransportError{
			Op:    "answer",
			Cause: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	case len(bytes.TrimSpace(body)) == 0:
		return "", &pkgerrors.TransportError{Op: "answer", Cause: errors.New("empty SDP answer")}
	}
	return string(body), nil
}

// timeoutCause distinguishes our negotiation deadline from caller cancellation.
func timeoutCause(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.ErrNegotiationTimeout
	}
	return ctx.Err()
}

// drainRTCP reads RTCP for a sender so interceptors keep working. It returns
// when the sender stops.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, rtcpReadBufferBytes)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type webrtcConn struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	router *AudioRouter
	inbox  *inbox
	opened chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *webrtcConn) Kind() Kind { return KindWebRTC }

func (c *webrtcConn) Media() *AudioRouter { return c.router }

func (c *webrtcConn) IsOpen() bool {
	return !c.closed.Load() && c.dc != nil && c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (c *webrtcConn) Send(data []byte) error {
	if !c.IsOpen() {
		return &pkgerrors.ChannelNotOpenError{}
	}
	if err := c.dc.SendText(string(data)); err != nil {
		return &pkgerrors.TransportError{Op: "send", Cause: err}
	}
	return nil
}

// Close stops every sender, then closes the channel and the peer connection.
func (c *webrtcConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.inbox.stop()
		var errs []error
		for _, sender := range c.pc.GetSenders() {
			if err := sender.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.dc != nil {
			if err := c.dc.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.pc.Close(); err != nil {
			errs = append(errs, err)
		}
		if c.router != nil {
			c.router.Close()
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
