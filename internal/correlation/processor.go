package correlation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"signalbridge/internal/core"
	"signalbridge/pkg/concurrency"
	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProcessorConfig configures a Processor
type ProcessorConfig struct {
	// AutoExecution fills every trade at the venue's current quote.
	AutoExecution bool
	// PendingTTL evicts unconfirmed trades older than this. 0 keeps them forever.
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// Processor turns execution requests into venue submissions and completes
// deferred ones when the venue confirms their prices.
type Processor struct {
	cfg      ProcessorConfig
	venue    core.IVenue
	registry *Registry
	pool     *concurrency.WorkerPool
	logger   core.ILogger
	metrics  *telemetry.MetricsHolder
	tracer   trace.Tracer

	// held for reading from submission until registration; resolve waits on it
	registering sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewProcessor creates a processor. Confirmations are resolved on pool.
func NewProcessor(cfg ProcessorConfig, venue core.IVenue, registry *Registry, pool *concurrency.WorkerPool, logger core.ILogger) *Processor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		cfg:      cfg,
		venue:    venue,
		registry: registry,
		pool:     pool,
		logger:   logger.WithField("component", "signal_processor"),
		metrics:  telemetry.GetGlobalMetrics(),
		tracer:   telemetry.GetTracer("signal-processor"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HandleExecutionSignal submits every order of the signal. A failing order
// is logged and does not affect the others.
func (p *Processor) HandleExecutionSignal(signal core.ExecutionSignal, _ core.ISignalSender) {
	batchID := uuid.NewString()
	ctx, span := p.tracer.Start(p.ctx, "HandleExecutionSignal",
		trace.WithAttributes(
			attribute.String("batch_id", batchID),
			attribute.Int("orders", len(signal.Orders)),
		))
	defer span.End()

	log := p.logger.WithField("batch_id", batchID)
	log.Info("Execution signal received", "orders", len(signal.Orders), "comment", signal.Comment)

	failed := 0
	for i, order := range signal.Orders {
		if err := p.submit(ctx, log, tradeRequestFrom(order, signal.Comment, p.cfg.AutoExecution)); err != nil {
			failed++
			log.Warn("Execution order not accepted", "index", i, "login", order.Login, "symbol", order.Symbol, "error", err)
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, "some orders were not accepted")
	}
}

func tradeRequestFrom(order core.ExecutionOrder, comment string, immediate bool) core.TradeRequest {
	return core.TradeRequest{
		Login:      order.Login,
		Kind:       order.ActionType,
		Side:       order.Side,
		Symbol:     order.Symbol,
		Volume:     order.Volume,
		OrderID:    order.OrderID,
		Commission: order.Commission,
		Comment:    comment,
		Immediate:  immediate,
	}
}

func (p *Processor) submit(ctx context.Context, log core.ILogger, req core.TradeRequest) error {
	action := req.Kind.String()

	p.registering.RLock()
	defer p.registering.RUnlock()

	res, err := p.venue.SubmitTrade(ctx, req)
	if err != nil {
		p.metrics.IncExecutionOrder(action, "error")
		return err
	}
	if !res.Accepted {
		p.metrics.IncExecutionOrder(action, "rejected")
		return fmt.Errorf("%w: %s", apperrors.ErrTradeRejected, res.Reason)
	}
	if !res.Deferred() {
		p.metrics.IncExecutionOrder(action, "executed")
		log.Info("Trade executed", "action", action, "login", req.Login, "symbol", req.Symbol, "volume", req.Volume)
		return nil
	}

	pending := NewPendingTrade(res.RequestID, req, func(bid, ask float64) {
		if err := p.venue.ExecuteTrade(p.ctx, req, bid, ask); err != nil {
			p.logger.Error("Confirmed trade failed to execute", "request_id", res.RequestID, "action", action, "error", err)
			return
		}
		p.logger.Info("Confirmed trade executed", "request_id", res.RequestID, "action", action, "bid", bid, "ask", ask)
	})
	if err := p.registry.Register(pending); err != nil {
		p.metrics.IncExecutionOrder(action, "duplicate")
		return err
	}

	p.metrics.IncExecutionOrder(action, "pending")
	log.Info("Trade awaiting confirmation", "request_id", res.RequestID, "action", action, "login", req.Login, "symbol", req.Symbol)
	return nil
}

// HandleOrdersStatusRequest answers with one block per requested login
func (p *Processor) HandleOrdersStatusRequest(logins []int32, reply core.ISignalSender) {
	resp := core.OrdersStatusResponse{PerLogin: make([]core.AccountOrdersStatus, 0, len(logins))}
	for _, login := range logins {
		orders, err := p.venue.OpenOrders(p.ctx, login)
		if err != nil {
			p.logger.Warn("Failed to list open orders", "login", login, "error", err)
		}
		resp.PerLogin = append(resp.PerLogin, core.AccountOrdersStatus{Login: login, Orders: orders})
	}

	if err := reply.SendOrdersStatusResponse(resp); err != nil {
		p.logger.Error("Failed to send orders status response", "logins", len(logins), "error", err)
	}
}

// OnConfirm hands the confirmation to a worker so the venue's thread is
// never held by trade execution. The hand-off never blocks: the venue may
// call this from inside SubmitTrade while workers wait on registering.
func (p *Processor) OnConfirm(requestID int32, bid, ask float64) {
	if err := p.pool.TrySubmit(func() { p.resolve(requestID, bid, ask) }); err != nil {
		p.metrics.IncConfirmation("dropped")
		p.logger.Error("Confirmation not scheduled, trade stays pending", "request_id", requestID, "error", err)
	}
}

// resolve completes the trade in the open map, then the close map. Each
// map is locked only for the removal.
func (p *Processor) resolve(requestID int32, bid, ask float64) {
	// a confirmation may overtake the registration of its own trade
	p.registering.Lock()
	p.registering.Unlock()

	resolved := 0
	for _, kind := range []core.ActionType{core.Open, core.Close} {
		pending, ok := p.registry.Take(kind, requestID)
		if !ok {
			continue
		}
		p.metrics.RecordConfirmationLatency(float64(time.Since(pending.RegisteredAt).Microseconds()) / 1000)
		pending.Resolve(bid, ask)
		resolved++
	}

	if resolved == 0 {
		p.metrics.IncConfirmation("unmatched")
		p.logger.Debug("Confirmation for unknown request", "request_id", requestID)
		return
	}
	p.metrics.IncConfirmation("resolved")
}

// OnRequote is acknowledged without action; the trade stays pending.
func (p *Processor) OnRequote(requestID int32, bid, ask float64) {
	p.metrics.IncConfirmation("requote")
	p.logger.Info("Requote received", "request_id", requestID, "bid", bid, "ask", ask)
}

// OnReset is acknowledged without action; the trade stays pending.
func (p *Processor) OnReset(requestID int32) {
	p.metrics.IncConfirmation("reset")
	p.logger.Info("Request reset", "request_id", requestID)
}

// Pending lists unconfirmed trades
func (p *Processor) Pending() []PendingInfo {
	return p.registry.Snapshot()
}

// Run sweeps expired pending trades until ctx is done. With no TTL it only
// waits.
func (p *Processor) Run(ctx context.Context) error {
	if p.cfg.PendingTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			p.sweep(now)
		}
	}
}

func (p *Processor) sweep(now time.Time) {
	for _, pending := range p.registry.ExpireBefore(now.Add(-p.cfg.PendingTTL)) {
		kind := strings.ToLower(pending.Kind.String())
		p.metrics.IncPendingExpired(kind)
		p.logger.Warn("Pending trade expired without confirmation",
			"request_id", pending.RequestID, "kind", kind, "login", pending.Request.Login, "symbol", pending.Request.Symbol)
	}
}

// Close waits for scheduled confirmations to finish
func (p *Processor) Close() {
	p.pool.Stop()
	p.cancel()
}
