package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/tccoin/museum-agent/runtime/logger"
)

const trackReadDeadline = 5 * time.Second

// AudioSink consumes remote audio packets. Playback devices and recorders
// implement it.
type AudioSink interface {
	WriteRTP(pkt *rtp.Packet) error
}

// AudioRouter connects the peer connection's audio to the application.
// Outbound samples go to the local track; remote packets go to the playback
// sink while playback is enabled, and to every tap regardless.
type AudioRouter struct {
	mu              sync.RWMutex
	playback        AudioSink
	playbackEnabled bool
	taps            map[string]AudioSink

	local *webrtc.TrackLocalStaticSample
	codec webrtc.RTPCodecParameters

	remote     chan struct{}
	remoteOnce sync.Once
	closed     chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewAudioRouter creates a router. local may be nil when there is no
// outbound track.
func NewAudioRouter(local *webrtc.TrackLocalStaticSample, codec webrtc.RTPCodecParameters) *AudioRouter {
	return &AudioRouter{
		playbackEnabled: true,
		taps:            make(map[string]AudioSink),
		local:           local,
		codec:           codec,
		remote:          make(chan struct{}),
		closed:          make(chan struct{}),
	}
}

// Codec returns the negotiated codec.
func (r *AudioRouter) Codec() webrtc.RTPCodecParameters {
	return r.codec
}

// SetPlaybackSink replaces the playback sink. nil discards playback.
func (r *AudioRouter) SetPlaybackSink(sink AudioSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback = sink
}

// SetPlaybackEnabled gates delivery to the playback sink. Taps are unaffected.
func (r *AudioRouter) SetPlaybackEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playbackEnabled = enabled
}

// PlaybackEnabled reports whether remote audio reaches the playback sink.
func (r *AudioRouter) PlaybackEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playbackEnabled
}

// AddTap registers a sink that receives every remote packet.
func (r *AudioRouter) AddTap(name string, sink AudioSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taps[name] = sink
}

// RemoveTap unregisters a tap.
func (r *AudioRouter) RemoveTap(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.taps, name)
}

// RemoteAudio is closed once the first remote audio track arrives.
func (r *AudioRouter) RemoteAudio() <-chan struct{} {
	return r.remote
}

// WriteSample sends captured microphone audio on the local track.
func (r *AudioRouter) WriteSample(sample media.Sample) error {
	if r.local == nil {
		return errors.New("no local audio track")
	}
	select {
	case <-r.closed:
		return io.ErrClosedPipe
	default:
	}
	return r.local.WriteSample(sample)
}

// Close stops every pump and waits for them to exit.
func (r *AudioRouter) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
	r.wg.Wait()
}

// attach starts pumping a remote track.
func (r *AudioRouter) attach(track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		logger.Debug("ignoring non-audio track", "track_id", track.ID(), "kind", track.Kind().String())
		return
	}
	select {
	case <-r.closed:
		return
	default:
	}
	logger.Info("remote audio track attached", "track_id", track.ID(), "codec", track.Codec().MimeType)
	r.remoteOnce.Do(func() { close(r.remote) })

	r.wg.Add(1)
	go r.pump(track)
}

func (r *AudioRouter) pump(track *webrtc.TrackRemote) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic reading remote track", "recover", p, "track_id", track.ID())
		}
	}()

	for {
		select {
		case <-r.closed:
			return
		default:
		}
		_ = track.SetReadDeadline(time.Now().Add(trackReadDeadline))
		pkt, _, err := track.ReadRTP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if !errors.Is(err, io.EOF) {
				logger.Debug("remote track ended", "track_id", track.ID(), "error", err)
			}
			return
		}
		r.route(pkt)
	}
}

// route delivers one packet to the playback sink and the taps.
func (r *AudioRouter) route(pkt *rtp.Packet) {
	if pkt == nil || len(pkt.Payload) == 0 {
		return
	}
	r.mu.RLock()
	playback := r.playback
	enabled := r.playbackEnabled
	taps := make([]AudioSink, 0, len(r.taps))
	for _, t := range r.taps {
		taps = append(taps, t)
	}
	r.mu.RUnlock()

	if enabled && playback != nil {
		if err := playback.WriteRTP(pkt); err != nil {
			logger.Debug("playback write failed", "error", err)
		}
	}
	for _, t := range taps {
		if err := t.WriteRTP(pkt); err != nil {
			logger.Debug("audio tap write failed", "error", err)
		}
	}
}
