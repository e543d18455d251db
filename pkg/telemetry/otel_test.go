package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestTelemetrySetup(t *testing.T) {
	tel, err := Setup("test-service", WithStdoutTraces(false), WithStdoutLogs(false))
	require.NoError(t, err)

	assert.NotNil(t, otel.GetTracerProvider())
	assert.NotNil(t, otel.GetMeterProvider())
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetMeter("test-meter"))

	m := GetGlobalMetrics()
	assert.NotNil(t, m.MessagesSentTotal)
	m.IncSent()
	m.IncExecutionOrder("OPEN", "pending")
	m.RecordConfirmationLatency(1.5)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestMetricsHolder_PendingGauge(t *testing.T) {
	m := GetGlobalMetrics()
	m.SetPendingTrades("open", 3)
	m.SetPendingTrades("close", 1)

	got := m.GetPendingTrades()
	assert.Equal(t, int64(3), got["open"])
	assert.Equal(t, int64(1), got["close"])

	// mutating the copy leaves the holder untouched
	got["open"] = 99
	assert.Equal(t, int64(3), m.GetPendingTrades()["open"])
}

func TestMetricsHolder_NoopBeforeInit(t *testing.T) {
	m := &MetricsHolder{pendingMap: make(map[string]int64)}
	assert.NotPanics(t, func() {
		m.IncDropped()
		m.IncConfirmation("resolved")
		m.RecordDispatchLatency(2)
	})
}
