package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"signalbridge/internal/bootstrap"
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
	showVersion := flag.Bool("version", false, "Show version and exit")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("signal_bridge version %s (built %s)\n", version, buildTime)
		return 0
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	cfg := app.Cfg
	logger := app.Logger

	if *printConfig {
		fmt.Print(cfg.String())
		return 0
	}

	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup("signal-bridge",
			telemetry.WithStdoutTraces(cfg.System.DebugMode),
			telemetry.WithStdoutLogs(false))
		if err != nil {
			logger.Warn("Failed to initialize telemetry", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(ctx)
			}()
		}
	}

	bridge, err := bootstrap.NewBridge(cfg, nil, logger)
	if err != nil {
		logger.Error("Failed to build bridge", "error", err)
		return 1
	}

	ep, _ := cfg.Endpoint()
	logger.Info("Starting signal_bridge",
		"version", version,
		"server_name", cfg.Bridge.ServerName,
		"endpoint", ep.String(),
		"auto_execution", cfg.Processor.AutoExecution,
		"admin_port", cfg.Telemetry.AdminPort,
	)

	err = app.Run(bridge.Runners()...)
	bridge.Close()
	if err != nil {
		return 1
	}
	return 0
}
