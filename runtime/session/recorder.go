package session

import (
	"github.com/pion/webrtc/v4"

	"github.com/tccoin/museum-agent/runtime/transport"
)

const recorderTap = "recorder"

// Recorder captures the remote audio stream. Start is called once the first
// remote audio packet path exists, Stop when the session disconnects.
type Recorder interface {
	transport.AudioSink
	Start(codec webrtc.RTPCodecParameters) error
	Stop() error
}
