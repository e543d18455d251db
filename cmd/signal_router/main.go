package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"signalbridge/internal/auth"
	"signalbridge/internal/bootstrap"
	"signalbridge/internal/core"
	"signalbridge/internal/infrastructure/health"
	"signalbridge/internal/infrastructure/server"
	"signalbridge/internal/router"
	"signalbridge/internal/transport"
	"signalbridge/pkg/telemetry"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred shutdowns complete before exiting
func run() int {
	configPath := flag.String("config", "", "Path to configuration file (default $CONFIG_FILE, then built-in defaults)")
	listen := flag.String("listen", "", "Listen endpoint, tcp://host:port or ws://host:port/path (overrides config)")
	console := flag.Bool("console", true, "Read operator commands from stdin")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("signal_router version %s (built %s)\n", version, buildTime)
		return 0
	}

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.Router.Listen = *listen
	}

	logger, err := bootstrap.InitLogger(cfg, "signal-router")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ep, err := transport.ParseEndpoint(cfg.Router.Listen)
	if err != nil {
		logger.Error("Invalid listen endpoint", "listen", cfg.Router.Listen, "error", err)
		return 1
	}

	r := router.NewRouter(cfg.Router.Name, callbacks(logger), logger)

	var runners []bootstrap.Runner
	switch ep.Scheme {
	case transport.SchemeWS:
		keys := make([]string, 0, len(cfg.Router.AuthKeys))
		for _, k := range cfg.Router.AuthKeys {
			keys = append(keys, k.Reveal())
		}
		opts := router.WSOptions{Path: ep.Path}
		if len(keys) > 0 {
			opts.Auth = auth.NewKeyValidator(keys, 0, logger)
		}
		ws := router.NewWSRouter(opts, r.HandleFrame, logger)
		r.Bind(ws)
		runners = append(runners, bootstrap.RunnerFunc(func(ctx context.Context) error {
			return ws.Start(ctx, ep.Address())
		}))
	default:
		if len(cfg.Router.AuthKeys) > 0 {
			logger.Warn("auth_keys are ignored for tcp dealers")
		}
		zr := router.NewZMQRouter(r.HandleFrame, logger)
		r.Bind(zr)
		runners = append(runners, bootstrap.RunnerFunc(func(ctx context.Context) error {
			if err := zr.Listen(ep.Address()); err != nil {
				return err
			}
			<-ctx.Done()
			return zr.Close()
		}))
	}

	if *console {
		runners = append(runners, NewConsole(r, os.Stdin, os.Stdout))
	}

	if cfg.Router.MetricsPort > 0 {
		mp, err := telemetry.InitMetrics("signal-router")
		if err != nil {
			logger.Error("Failed to init metrics", "error", err)
			return 1
		}
		defer mp.Shutdown(context.Background())

		hm := health.NewHealthManager(logger)
		hm.Register("listener", func() error { return nil })
		admin := server.NewAdminServer(cfg.Router.MetricsPort, logger, hm)
		admin.AddStatusProvider("dealers", func() interface{} { return r.Dealers() })
		admin.UpdateStatus("listen", ep.String())
		runners = append(runners, admin)
	}

	logger.Info("Starting signal_router", "version", version, "name", cfg.Router.Name, "listen", ep.String())

	app := &bootstrap.App{Cfg: cfg, Logger: logger}
	if err := app.Run(runners...); err != nil {
		return 1
	}
	return 0
}

func callbacks(logger core.ILogger) router.Callbacks {
	return router.Callbacks{
		OnConnect: func(identity string) {
			logger.Info("Dealer connected", "dealer", identity)
		},
		OnTradeSignal: func(identity string, s core.TradeSignal) {
			logger.Info("Trade signal",
				"dealer", identity,
				"action", s.ActionType.String(),
				"side", s.Side.String(),
				"login", s.Login,
				"order_id", s.OrderID,
				"symbol", s.Symbol,
				"volume", s.Volume,
				"balance", s.Balance,
				"equity", s.Equity,
				"profit", s.Profit,
				"commission", s.ProviderCommission,
			)
		},
		OnOrdersStatus: func(identity string, resp core.OrdersStatusResponse) {
			for _, block := range resp.PerLogin {
				logger.Info("Orders status", "dealer", identity, "login", block.Login, "orders", len(block.Orders))
				for _, o := range block.Orders {
					logger.Info("Open order",
						"login", block.Login, "order_id", o.OrderID, "side", o.Side.String(),
						"symbol", o.Symbol, "volume", o.Volume)
				}
			}
		},
	}
}
