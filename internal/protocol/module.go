package protocol

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"signalbridge/internal/core"
	"signalbridge/internal/transport"
	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/telemetry"
)

// Config configures a SignalModule
type Config struct {
	Endpoint  transport.Endpoint
	Identity  string
	Heartbeat time.Duration // re-announce period, 0 disables
	DebugMode bool          // log every envelope in and out
}

// Handlers are the single subscribers for each inbound request kind.
// They run on the dispatch goroutine and must hand long work off.
type Handlers struct {
	OrdersStatus core.IOrdersStatusHandler
	Execution    core.IExecutionHandler
}

// SignalModule frames business messages into envelopes over a Connector
// and routes decoded inbound requests to the registered handlers.
type SignalModule struct {
	cfg      Config
	conn     *transport.Connector
	handlers Handlers
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder

	mu      sync.Mutex
	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	handshaken  atomic.Bool
	handshakeAt atomic.Int64
}

// NewSignalModule configures a module. Nothing is connected until Start.
func NewSignalModule(cfg Config, conn *transport.Connector, handlers Handlers, logger core.ILogger) *SignalModule {
	return &SignalModule{
		cfg:      cfg,
		conn:     conn,
		handlers: handlers,
		logger:   logger.WithField("component", "signal_module"),
		metrics:  telemetry.GetGlobalMetrics(),
	}
}

// Start connects, announces this node and starts the dispatch loop.
// Configuration and dial errors are returned as is.
func (m *SignalModule) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started.Load() {
		return apperrors.ErrAlreadyStarted
	}

	m.conn.Subscribe(m.handleInbound)
	hello := MarshalEnvelope(Envelope{Type: MessageConnect, Source: m.cfg.Identity, Content: []byte(ConnectContent)})
	if err := m.conn.Connect(ctx, m.cfg.Endpoint, m.cfg.Identity, hello); err != nil {
		return fmt.Errorf("start signal module: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.handshaken.Store(false)
	m.started.Store(true)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.conn.RunDispatch(loopCtx)
	}()

	if m.cfg.Heartbeat > 0 {
		m.wg.Add(1)
		go m.heartbeat(loopCtx, hello)
	}

	m.logger.Info("Signal module started", "endpoint", m.cfg.Endpoint.String(), "identity", m.cfg.Identity)
	return nil
}

// Stop closes the connection and waits for the dispatch loop to exit.
// Stopping a module that is not started is a no-op.
func (m *SignalModule) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started.Load() {
		return nil
	}
	m.started.Store(false)

	err := m.conn.Close()
	m.cancel()
	m.wg.Wait()
	m.handshaken.Store(false)

	m.logger.Info("Signal module stopped")
	return err
}

// SendTradeSignal publishes a trade lifecycle event
func (m *SignalModule) SendTradeSignal(signal core.TradeSignal) error {
	return m.send(MessageTradeSignal, EncodeTradeSignal(signal))
}

// SendOrdersStatusResponse publishes the answer to an orders status request
func (m *SignalModule) SendOrdersStatusResponse(response core.OrdersStatusResponse) error {
	return m.send(MessageOrdersStatusResponse, EncodeOrdersStatusResponse(response))
}

func (m *SignalModule) send(t MessageType, content []byte) error {
	if !m.started.Load() {
		return fmt.Errorf("send %s: %w", t, apperrors.ErrNotConnected)
	}
	if m.cfg.DebugMode {
		m.logger.Debug("Envelope out", "type", t.String(), "bytes", len(content))
	}
	m.conn.Send(MarshalEnvelope(Envelope{Type: t, Source: m.cfg.Identity, Content: content}))
	m.metrics.IncSignalPublished(t.String())
	return nil
}

// handleInbound runs on the dispatch goroutine. Nothing here may propagate
// an error: malformed input is logged and dropped.
func (m *SignalModule) handleInbound(raw []byte) {
	env, err := UnmarshalEnvelope(raw)
	if err != nil {
		m.metrics.IncDecodeFailure("envelope")
		m.logger.Warn("Dropping malformed envelope", "bytes", len(raw), "error", err)
		return
	}

	if m.cfg.DebugMode {
		m.logger.Debug("Envelope in", "type", env.Type.String(), "source", env.Source, "bytes", len(env.Content))
	}

	switch env.Type {
	case MessageOrdersStatusRequest:
		logins, err := DecodeOrdersStatusRequest(env.Content)
		if err != nil {
			m.metrics.IncDecodeFailure("orders_status_request")
			m.logger.Warn("Dropping malformed orders status request", "error", err)
			return
		}
		if m.handlers.OrdersStatus == nil {
			m.logger.Warn("No orders status handler registered", "logins", len(logins))
			return
		}
		m.handlers.OrdersStatus.HandleOrdersStatusRequest(logins, m)

	case MessageExecutionRequest:
		signal, err := DecodeExecutionSignal(env.Content)
		if err != nil {
			m.metrics.IncDecodeFailure("execution_request")
			m.logger.Warn("Dropping malformed execution request", "error", err)
			return
		}
		if m.handlers.Execution == nil {
			m.logger.Warn("No execution handler registered", "orders", len(signal.Orders))
			return
		}
		m.handlers.Execution.HandleExecutionSignal(signal, m)

	case MessageConnected:
		m.handshakeAt.Store(time.Now().UnixMilli())
		if !m.handshaken.Swap(true) {
			m.logger.Info("Router acknowledged connection", "identity", env.Source)
		}

	default:
		m.logger.Debug("Ignoring envelope", "type", env.Type.String())
	}
}

func (m *SignalModule) heartbeat(ctx context.Context, hello []byte) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.conn.Send(hello)
		}
	}
}

// IsStarted reports whether Start succeeded and Stop has not been called since
func (m *SignalModule) IsStarted() bool {
	return m.started.Load()
}

// Broken reports whether the underlying socket failed and needs a restart
func (m *SignalModule) Broken() bool {
	return m.started.Load() && m.conn.Broken()
}

// Health returns nil while the connection is usable
func (m *SignalModule) Health() error {
	if !m.started.Load() {
		return apperrors.ErrNotConnected
	}
	if m.conn.Broken() {
		return apperrors.ErrConnectionClosed
	}
	return nil
}

// Status is a snapshot for the admin surface
type Status struct {
	Started     bool            `json:"started"`
	Handshaken  bool            `json:"handshaken"`
	HandshakeAt int64           `json:"handshake_at_ms,omitempty"`
	Endpoint    string          `json:"endpoint"`
	Connection  transport.Stats `json:"connection"`
}

func (m *SignalModule) Status() Status {
	return Status{
		Started:     m.started.Load(),
		Handshaken:  m.handshaken.Load(),
		HandshakeAt: m.handshakeAt.Load(),
		Endpoint:    m.cfg.Endpoint.String(),
		Connection:  m.conn.Stats(),
	}
}
