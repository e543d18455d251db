package bootstrap

import (
	"signalbridge/internal/config"
	"signalbridge/pkg/logging"
)

// InitLogger builds the zap logger described by cfg
func InitLogger(cfg *config.Config, service string) (*logging.ZapLogger, error) {
	return logging.NewZapLoggerWithOptions(logging.Options{
		Level:   cfg.LogLevel(),
		Service: service,
		File:    cfg.System.LogFile,
	})
}
