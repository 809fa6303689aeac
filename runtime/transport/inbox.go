package transport

import "sync"

const inboxSize = 256

// inbox serializes inbound delivery onto a single goroutine so that handlers
// never run concurrently and OnClose follows the last message.
type inbox struct {
	handlers Handlers
	msgs     chan []byte
	ended    chan struct{}
	stopped  chan struct{}
	endOnce  sync.Once
	stopOnce sync.Once
	endErr   error
}

func newInbox(h Handlers) *inbox {
	in := &inbox{
		handlers: h,
		msgs:     make(chan []byte, inboxSize),
		ended:    make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go in.run()
	return in
}

// push queues a message. It blocks while the queue is full and drops the
// message once the inbox has ended or been stopped.
func (in *inbox) push(data []byte) {
	select {
	case in.msgs <- data:
	case <-in.ended:
	case <-in.stopped:
	}
}

// end marks the remote end of the channel. Queued messages are still delivered.
func (in *inbox) end(err error) {
	in.endOnce.Do(func() {
		in.endErr = err
		close(in.ended)
	})
}

// stop discards pending messages and suppresses OnClose.
func (in *inbox) stop() {
	in.stopOnce.Do(func() { close(in.stopped) })
}

func (in *inbox) run() {
	for {
		select {
		case <-in.stopped:
			return
		case data := <-in.msgs:
			in.deliver(data)
		case <-in.ended:
			in.drain()
			select {
			case <-in.stopped:
			default:
				if in.handlers.OnClose != nil {
					in.handlers.OnClose(in.endErr)
				}
			}
			return
		}
	}
}

func (in *inbox) drain() {
	for {
		select {
		case <-in.stopped:
			return
		case data := <-in.msgs:
			in.deliver(data)
		default:
			return
		}
	}
}

func (in *inbox) deliver(data []byte) {
	if in.handlers.OnMessage != nil {
		in.handlers.OnMessage(data)
	}
}
