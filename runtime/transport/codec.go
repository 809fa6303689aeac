package transport

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Audio codec names accepted by the WebRTC establisher.
const (
	CodecOpus = "opus"
	CodecPCMU = "pcmu"
	CodecPCMA = "pcma"
)

// codecParameters returns the single codec the media engine is restricted
// to. An empty name selects opus.
func codecParameters(name string) (webrtc.RTPCodecParameters, error) {
	switch name {
	case "", CodecOpus:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		}, nil
	case CodecPCMU:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
			PayloadType:        0,
		}, nil
	case CodecPCMA:
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
			PayloadType:        8,
		}, nil
	default:
		return webrtc.RTPCodecParameters{}, fmt.Errorf("unsupported audio codec %q", name)
	}
}

// newAPI builds a pion API whose media engine only knows codec.
func newAPI(codec webrtc.RTPCodecParameters, settings *webrtc.SettingEngine) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register codec %s: %w", codec.MimeType, err)
	}
	opts := []func(*webrtc.API){webrtc.WithMediaEngine(m)}
	if settings != nil {
		opts = append(opts, webrtc.WithSettingEngine(*settings))
	}
	return webrtc.NewAPI(opts...), nil
}
