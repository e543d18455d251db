package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/queue"
	"signalbridge/pkg/telemetry"

	"golang.org/x/time/rate"
)

// ConnectorConfig tunes the poll and dispatch loops
type ConnectorConfig struct {
	IdleSleep time.Duration // pause after an iteration that moved no inbound data
}

// Connector owns the single dealer connection to the router peer. Callers
// only ever touch the two queues; the poll goroutine is the only one that
// talks to the socket.
type Connector struct {
	dialer  Dialer
	cfg     ConnectorConfig
	logger  core.ILogger
	metrics *telemetry.MetricsHolder

	outbound *queue.ByteQueue
	inbound  *queue.ByteQueue

	// lifecycle is serialized by mu; started is read lock-free by the loops
	mu       sync.Mutex
	sock     Socket
	identity atomic.Value // string
	cancel   context.CancelFunc
	pollWG   sync.WaitGroup
	started  atomic.Bool

	handlerMu sync.RWMutex
	handler   func([]byte)

	broken      atomic.Bool
	lastErr     atomic.Value // string
	errLimiter  *rate.Limiter
	dropLimiter *rate.Limiter
	sent        atomic.Uint64
	dropped     atomic.Uint64
	received    atomic.Uint64
}

// NewConnector creates an unconnected connector
func NewConnector(dialer Dialer, cfg ConnectorConfig, logger core.ILogger) *Connector {
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = time.Millisecond
	}
	return &Connector{
		dialer:      dialer,
		cfg:         cfg,
		logger:      logger.WithField("component", "connector"),
		metrics:     telemetry.GetGlobalMetrics(),
		outbound:    queue.New(),
		inbound:     queue.New(),
		errLimiter:  rate.NewLimiter(rate.Every(time.Second), 5),
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Connect dials ep as identity, resets both queues, enqueues hello as the
// first outbound message and starts the poll loop. Dial and validation
// errors are returned; nothing is retried here.
func (c *Connector) Connect(ctx context.Context, ep Endpoint, identity string, hello []byte) error {
	if identity == "" {
		return apperrors.ErrInvalidIdentity
	}
	if err := ep.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started.Load() {
		return fmt.Errorf("connector %s: %w", c.Identity(), apperrors.ErrAlreadyStarted)
	}

	sock, err := c.dialer.Dial(ctx, ep, identity)
	if err != nil {
		return err
	}

	if n := c.outbound.Reset() + c.inbound.Reset(); n > 0 {
		c.logger.Info("Discarded messages from previous connection", "count", n)
	}
	c.outbound.Push(hello)

	pollCtx, cancel := context.WithCancel(context.Background())
	c.sock = sock
	c.identity.Store(identity)
	c.cancel = cancel
	c.broken.Store(false)
	c.started.Store(true)

	c.pollWG.Add(1)
	go c.poll(pollCtx, sock)

	c.logger.Info("Connected", "endpoint", ep.String(), "identity", identity)
	return nil
}

// Close stops the poll loop and releases the socket. Queued outbound
// messages are abandoned. Closing an unconnected connector is a no-op.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started.Load() {
		return nil
	}
	c.started.Store(false)
	c.cancel()
	c.pollWG.Wait()

	err := c.sock.Close()
	c.sock = nil
	c.logger.Info("Connection closed", "identity", c.Identity())
	return err
}

// Send enqueues msg for the poll loop. It never blocks on the network.
func (c *Connector) Send(msg []byte) {
	c.outbound.Push(msg)
}

// Subscribe registers the inbound handler, replacing any previous one
func (c *Connector) Subscribe(handler func([]byte)) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// IsStarted reports whether the connection is up from the caller's point of view
func (c *Connector) IsStarted() bool {
	return c.started.Load()
}

// Identity is the identity of the current or last connection
func (c *Connector) Identity() string {
	id, _ := c.identity.Load().(string)
	return id
}

// Broken reports whether the socket has failed since the last Connect
func (c *Connector) Broken() bool {
	return c.broken.Load()
}

// Stats is a snapshot of connector counters
type Stats struct {
	Started       bool   `json:"started"`
	Broken        bool   `json:"broken"`
	Identity      string `json:"identity"`
	Sent          uint64 `json:"sent"`
	Dropped       uint64 `json:"dropped"`
	Received      uint64 `json:"received"`
	OutboundDepth int    `json:"outbound_depth"`
	InboundDepth  int    `json:"inbound_depth"`
	LastError     string `json:"last_error,omitempty"`
}

func (c *Connector) Stats() Stats {
	lastErr, _ := c.lastErr.Load().(string)
	return Stats{
		Started:       c.started.Load(),
		Broken:        c.broken.Load(),
		Identity:      c.Identity(),
		Sent:          c.sent.Load(),
		Dropped:       c.dropped.Load(),
		Received:      c.received.Load(),
		OutboundDepth: c.outbound.Len(),
		InboundDepth:  c.inbound.Len(),
		LastError:     lastErr,
	}
}

func (c *Connector) poll(ctx context.Context, sock Socket) {
	defer c.pollWG.Done()

	idle := time.NewTimer(c.cfg.IdleSleep)
	defer idle.Stop()

	for ctx.Err() == nil {
		c.drainOutbound(sock)

		msg, err := sock.TryRecv()
		if err == nil && len(msg) > 0 {
			c.inbound.Push(msg)
			c.received.Add(1)
			c.metrics.IncReceived()
			continue
		}
		if err != nil && !errors.Is(err, apperrors.ErrWouldBlock) {
			c.socketError("recv", err)
		}

		idle.Reset(c.cfg.IdleSleep)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

// drainOutbound sends everything queued. A message the socket cannot take
// right now is dropped: delivery is at most once and never retried.
func (c *Connector) drainOutbound(sock Socket) {
	for c.started.Load() {
		msg, ok := c.outbound.Pop()
		if !ok {
			return
		}

		err := sock.TrySend(msg)
		switch {
		case err == nil:
			c.sent.Add(1)
			c.metrics.IncSent()
		case errors.Is(err, apperrors.ErrWouldBlock):
			c.dropped.Add(1)
			c.metrics.IncDropped()
			if c.dropLimiter.Allow() {
				c.logger.Debug("Outbound message dropped, socket not ready", "dropped_total", c.dropped.Load())
			}
		default:
			c.dropped.Add(1)
			c.metrics.IncDropped()
			c.socketError("send", err)
		}
	}
}

func (c *Connector) socketError(op string, err error) {
	c.lastErr.Store(op + ": " + err.Error())
	if errors.Is(err, apperrors.ErrConnectionClosed) && !c.broken.Swap(true) {
		c.logger.Error("Socket failed, waiting for reconnect", "op", op, "error", err)
		return
	}
	if c.errLimiter.Allow() {
		c.logger.Warn("Socket error", "op", op, "error", err)
	}
}
