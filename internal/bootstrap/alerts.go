package bootstrap

import (
	"context"
	"time"

	"signalbridge/internal/alert"
	"signalbridge/internal/config"
	"signalbridge/internal/core"
	"signalbridge/internal/infrastructure/health"
)

// NewAlertManager builds the channels configured in cfg.Alerts. It returns
// nil when none are.
func NewAlertManager(cfg *config.Config, logger core.ILogger) *alert.AlertManager {
	am := alert.NewAlertManager(logger)
	if hook := cfg.Alerts.SlackWebhook.Reveal(); hook != "" {
		am.AddChannel(alert.NewSlackChannel(hook))
	}
	if token := cfg.Alerts.TelegramToken.Reveal(); token != "" && cfg.Alerts.TelegramChatID != "" {
		am.AddChannel(alert.NewTelegramChannel(token, cfg.Alerts.TelegramChatID))
	}
	if am.Len() == 0 {
		return nil
	}
	return am
}

// HealthAlerts raises an alert each time the bridge health flips. A healthy
// first observation is not reported.
type HealthAlerts struct {
	hm       *health.HealthManager
	alerts   *alert.AlertManager
	interval time.Duration
	server   string
}

func NewHealthAlerts(hm *health.HealthManager, alerts *alert.AlertManager, interval time.Duration, server string) *HealthAlerts {
	if interval <= 0 {
		interval = time.Second
	}
	return &HealthAlerts{hm: hm, alerts: alerts, interval: interval, server: server}
}

func (h *HealthAlerts) Run(ctx context.Context) error {
	first := true
	h.hm.Watch(ctx, h.interval, func(healthy bool) {
		if first {
			first = false
			if healthy {
				return
			}
		}

		fields := h.hm.GetStatus()
		fields["server"] = h.server
		if healthy {
			h.alerts.Alert(ctx, "Signal bridge recovered", "all components healthy", alert.Info, fields)
		} else {
			h.alerts.Alert(ctx, "Signal bridge unhealthy", "router connection is not usable", alert.Error, fields)
		}
	})
	h.alerts.Wait()
	return nil
}
