package router

import (
	"context"
	"fmt"
	"sync"

	"signalbridge/internal/core"

	"github.com/go-zeromq/zmq4"
)

// ZMQRouter accepts DEALER sockets on a ZeroMQ ROUTER socket. Frames arrive
// as [identity, payload] and replies are addressed the same way.
type ZMQRouter struct {
	handler FrameHandler
	logger  core.ILogger

	sock   zmq4.Socket
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sendMu sync.Mutex
	mu     sync.RWMutex
	seen   map[string]struct{}
}

func NewZMQRouter(handler FrameHandler, logger core.ILogger) *ZMQRouter {
	return &ZMQRouter{
		handler: handler,
		logger:  logger.WithField("component", "zmq_router"),
		seen:    make(map[string]struct{}),
	}
}

// Listen binds addr ("host:port") and starts receiving
func (r *ZMQRouter) Listen(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewRouter(ctx, zmq4.WithID(zmq4.SocketIdentity("router")))
	if err := sock.Listen("tcp://" + addr); err != nil {
		cancel()
		_ = sock.Close()
		return fmt.Errorf("zmq router listen %s: %w", addr, err)
	}

	r.sock = sock
	r.cancel = cancel
	r.wg.Add(1)
	go r.recvLoop()

	r.logger.Info("ZeroMQ router listening", "addr", addr)
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (r *ZMQRouter) Addr() string {
	if r.sock == nil || r.sock.Addr() == nil {
		return ""
	}
	return r.sock.Addr().String()
}

func (r *ZMQRouter) recvLoop() {
	defer r.wg.Done()
	for {
		msg, err := r.sock.Recv()
		if err != nil {
			r.logger.Debug("Router receive loop ended", "error", err)
			return
		}
		if len(msg.Frames) < 2 {
			continue
		}

		identity := string(msg.Frames[0])
		r.mu.Lock()
		if _, ok := r.seen[identity]; !ok {
			r.seen[identity] = struct{}{}
			r.logger.Info("Dealer seen", "identity", identity)
		}
		r.mu.Unlock()

		frame := msg.Frames[len(msg.Frames)-1]
		if len(frame) > 0 && r.handler != nil {
			r.handler(identity, frame)
		}
	}
}

// SendTo routes frame to the dealer with identity
func (r *ZMQRouter) SendTo(identity string, frame []byte) error {
	if r.sock == nil {
		return fmt.Errorf("zmq router not listening")
	}
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	return r.sock.Send(zmq4.NewMsgFrom([]byte(identity), frame))
}

// Identities lists every dealer that has sent at least one frame
func (r *ZMQRouter) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.seen))
	for id := range r.seen {
		ids = append(ids, id)
	}
	return ids
}

func (r *ZMQRouter) Close() error {
	if r.sock == nil {
		return nil
	}
	r.cancel()
	err := r.sock.Close()
	r.wg.Wait()
	return err
}
