package transport

import (
	"context"
	"errors"
	"sync"

	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/logging"
)

type fakeSocket struct {
	mu              sync.Mutex
	sent            [][]byte
	inbox           [][]byte
	blockSends      bool
	failErr         error
	closed          bool
	callsAfterClose int
}

func (s *fakeSocket) TrySend(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.callsAfterClose++
	}
	if s.failErr != nil {
		return s.failErr
	}
	if s.blockSends {
		return apperrors.ErrWouldBlock
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSocket) TryRecv() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.callsAfterClose++
	}
	if len(s.inbox) > 0 {
		msg := s.inbox[0]
		s.inbox = s.inbox[1:]
		return msg, nil
	}
	if s.failErr != nil {
		return nil, s.failErr
	}
	return nil, apperrors.ErrWouldBlock
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) deliver(msgs ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, msgs...)
}

func (s *fakeSocket) sentCopy() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *fakeSocket) setBlocked(b bool) {
	s.mu.Lock()
	s.blockSends = b
	s.mu.Unlock()
}

func (s *fakeSocket) setFailed(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

func (s *fakeSocket) afterClose() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsAfterClose
}

// fakeDialer hands out a fresh fakeSocket per Dial and remembers them
type fakeDialer struct {
	mu      sync.Mutex
	sockets []*fakeSocket
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context, ep Endpoint, identity string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	s := &fakeSocket{}
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

func isWouldBlock(err error) bool {
	return errors.Is(err, apperrors.ErrWouldBlock)
}

func nopLogger() logging.NopLogger {
	return logging.NopLogger{}
}
