package bootstrap

import (
	"context"
	"fmt"
	"time"

	"signalbridge/internal/alert"
	"signalbridge/internal/config"
	"signalbridge/internal/core"
	"signalbridge/internal/correlation"
	"signalbridge/internal/infrastructure/health"
	"signalbridge/internal/infrastructure/server"
	"signalbridge/internal/protocol"
	"signalbridge/internal/transport"
	"signalbridge/internal/venue"
	"signalbridge/pkg/concurrency"
	"signalbridge/pkg/retry"
)

// Bridge is the assembled signal bridge: a paper venue whose trades are
// driven by execution signals arriving over the dealer connection.
type Bridge struct {
	Venue      *venue.PaperVenue
	Registry   *correlation.Registry
	Processor  *correlation.Processor
	Module     *protocol.SignalModule
	Health     *health.HealthManager
	Admin      *server.AdminServer
	GRPCHealth *server.GRPCHealthServer
	Supervisor *Supervisor
	Alerts     *alert.AlertManager

	cfg    *config.Config
	pool   *concurrency.WorkerPool
	logger core.ILogger
}

// NewBridge wires every component from cfg. Nothing is connected until the
// runners start.
func NewBridge(cfg *config.Config, dialer transport.Dialer, logger core.ILogger) (*Bridge, error) {
	ep, err := cfg.Endpoint()
	if err != nil {
		return nil, fmt.Errorf("bridge endpoint: %w", err)
	}

	if dialer == nil {
		dialer = transport.NewDefaultDialer(transport.DialOptions{AuthKey: cfg.Bridge.AuthKey.Reveal()})
	}

	paper := venue.NewPaperVenue(venue.Config{
		ServerName:     cfg.Bridge.ServerName,
		ConfirmDelay:   cfg.ConfirmDelay(),
		InitialBalance: cfg.Venue.InitialBalance,
		Symbols:        cfg.Venue.Symbols,
	}, logger)

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "confirmations",
		MaxWorkers:  cfg.Processor.WorkerPoolSize,
		MaxCapacity: cfg.Processor.WorkerPoolBuffer,
		NonBlocking: true,
	}, logger)

	registry := correlation.NewRegistry()
	processor := correlation.NewProcessor(correlation.ProcessorConfig{
		AutoExecution: cfg.Processor.AutoExecution,
		PendingTTL:    cfg.PendingTTL(),
	}, paper, registry, pool, logger)

	conn := transport.NewConnector(dialer, transport.ConnectorConfig{IdleSleep: cfg.IdleSleep()}, logger)
	module := protocol.NewSignalModule(protocol.Config{
		Endpoint:  ep,
		Identity:  cfg.Bridge.ServerName,
		Heartbeat: cfg.Heartbeat(),
		DebugMode: cfg.System.DebugMode,
	}, conn, protocol.Handlers{
		OrdersStatus: processor,
		Execution:    processor,
	}, logger)

	paper.Attach(processor, module)

	hm := health.NewHealthManager(logger)
	hm.Register("signal_module", module.Health)

	b := &Bridge{
		Venue:     paper,
		Registry:  registry,
		Processor: processor,
		Module:    module,
		Health:    hm,
		cfg:       cfg,
		pool:      pool,
		logger:    logger.WithField("component", "bridge"),
	}

	b.Supervisor = NewSupervisor(module, retry.RetryPolicy{
		MaxAttempts:    cfg.Reconnect.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Reconnect.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Reconnect.MaxBackoffMs) * time.Millisecond,
	}, time.Duration(cfg.Reconnect.CheckIntervalMs)*time.Millisecond, logger)

	if cfg.Telemetry.AdminPort > 0 {
		b.Admin = server.NewAdminServer(cfg.Telemetry.AdminPort, logger, hm)
		b.Admin.UpdateStatus("server_name", cfg.Bridge.ServerName)
		b.Admin.UpdateStatus("endpoint", ep.String())
		b.Admin.AddStatusProvider("signal_module", func() interface{} { return module.Status() })
		b.Admin.AddStatusProvider("confirmation_pool", func() interface{} { return pool.Stats() })
		b.Admin.SetPendingSource(func() interface{} { return processor.Pending() })
	}

	if am := NewAlertManager(cfg, logger); am != nil {
		b.Alerts = am
	}

	if cfg.Telemetry.GRPCHealthPort > 0 {
		b.GRPCHealth = server.NewGRPCHealthServer(fmt.Sprintf(":%d", cfg.Telemetry.GRPCHealthPort), hm, logger)
	}

	return b, nil
}

// Runners returns everything App.Run has to run for this bridge
func (b *Bridge) Runners() []Runner {
	runners := []Runner{b.Supervisor, b.Processor}
	if b.Admin != nil {
		runners = append(runners, b.Admin)
	}
	if b.GRPCHealth != nil {
		runners = append(runners, RunnerFunc(b.GRPCHealth.Serve))
	}
	if b.Alerts != nil {
		interval := time.Duration(b.cfg.Reconnect.CheckIntervalMs) * time.Millisecond
		runners = append(runners, NewHealthAlerts(b.Health, b.Alerts, interval, b.cfg.Bridge.ServerName))
	}
	return runners
}

// Close releases what the runners do not: pending venue timers and the
// confirmation pool. Call it after the runners returned.
func (b *Bridge) Close() {
	b.Venue.Close()
	b.Processor.Close()
	if err := b.Module.Stop(); err != nil {
		b.logger.Warn("Stop signal module failed", "error", err)
	}
	b.logger.Info("Bridge closed")
}

// Run is a convenience for running the bridge without an App
func (b *Bridge) Run(ctx context.Context) error {
	app := &App{Cfg: b.cfg, Logger: b.logger}
	defer b.Close()
	return app.RunContext(ctx, b.Runners()...)
}
