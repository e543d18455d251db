package transport

import (
	"fmt"
	"sync"
	"time"

	apperrors "signalbridge/pkg/errors"
)

// DialOptions tunes the socket implementations
type DialOptions struct {
	SendBuffer   int           // messages buffered toward the wire before TrySend would block
	RecvBuffer   int           // messages buffered from the wire before the reader stalls
	DialTimeout  time.Duration // upper bound for establishing the connection
	PingInterval time.Duration // ws keepalive, 0 disables
	PongWait     time.Duration
	AuthKey      string // ws only, sent in KeyHeader
}

func (o DialOptions) withDefaults() DialOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 1000
	}
	if o.RecvBuffer <= 0 {
		o.RecvBuffer = 1000
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.PingInterval > 0 && o.PongWait <= o.PingInterval {
		o.PongWait = 2 * o.PingInterval
	}
	return o
}

// pump turns a blocking reader/writer pair into the non-blocking Socket
// contract. The bounded send channel plays the role of a high-water mark.
type pump struct {
	out  chan []byte
	in   chan []byte
	done chan struct{}

	mu      sync.Mutex
	failErr error
	once    sync.Once
}

func newPump(opts DialOptions) *pump {
	return &pump{
		out:  make(chan []byte, opts.SendBuffer),
		in:   make(chan []byte, opts.RecvBuffer),
		done: make(chan struct{}),
	}
}

func (p *pump) TrySend(msg []byte) error {
	if err := p.err(); err != nil {
		return err
	}
	select {
	case p.out <- msg:
		return nil
	default:
		return apperrors.ErrWouldBlock
	}
}

func (p *pump) TryRecv() ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrWouldBlock
}

// deliver hands a received message to TryRecv, giving up when the pump stops
func (p *pump) deliver(msg []byte) bool {
	select {
	case p.in <- msg:
		return true
	case <-p.done:
		return false
	}
}

// fail records the first fatal error. Later calls are ignored.
func (p *pump) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr == nil {
		p.failErr = fmt.Errorf("%w: %v", apperrors.ErrConnectionClosed, err)
	}
}

func (p *pump) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failErr
}

// stop signals the reader and writer to exit. Returns false if already stopped.
func (p *pump) stop() bool {
	stopped := false
	p.once.Do(func() {
		close(p.done)
		stopped = true
	})
	return stopped
}
