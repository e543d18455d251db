// Package transporttest provides an in-memory transport.Dialer for tests of
// the layers above the connector.
package transporttest

import (
	"context"
	"sync"

	"signalbridge/internal/transport"
	apperrors "signalbridge/pkg/errors"
)

// Socket is an in-memory transport.Socket
type Socket struct {
	Identity string

	mu     sync.Mutex
	sent   [][]byte
	inbox  [][]byte
	closed bool
}

func newSocket(identity string) *Socket {
	return &Socket{Identity: identity}
}

func (s *Socket) TrySend(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrConnectionClosed
	}
	s.sent = append(s.sent, append([]byte(nil), msg...))
	return nil
}

func (s *Socket) TryRecv() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) > 0 {
		msg := s.inbox[0]
		s.inbox = s.inbox[1:]
		return msg, nil
	}
	if s.closed {
		return nil, apperrors.ErrConnectionClosed
	}
	return nil, apperrors.ErrWouldBlock
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Deliver queues messages as if the router had sent them
func (s *Socket) Deliver(msgs ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, msgs...)
}

// Sent returns a copy of every message written so far
func (s *Socket) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// Closed reports whether Close was called
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer hands out a new Socket per Dial
type Dialer struct {
	mu      sync.Mutex
	sockets []*Socket
	Err     error
}

func (d *Dialer) Dial(ctx context.Context, ep transport.Endpoint, identity string) (transport.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	s := newSocket(identity)
	d.sockets = append(d.sockets, s)
	return s, nil
}

// Last returns the most recently dialed socket, or nil
func (d *Dialer) Last() *Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}

// Dials returns how many sockets were opened
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}
