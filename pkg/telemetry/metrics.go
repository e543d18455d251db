package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricMessagesSentTotal      = "signal_bridge_messages_sent_total"
	MetricMessagesDroppedTotal   = "signal_bridge_messages_dropped_total"
	MetricMessagesReceivedTotal  = "signal_bridge_messages_received_total"
	MetricDecodeFailuresTotal    = "signal_bridge_decode_failures_total"
	MetricSignalsPublishedTotal  = "signal_bridge_signals_published_total"
	MetricExecutionOrdersTotal   = "signal_bridge_execution_orders_total"
	MetricConfirmationsTotal     = "signal_bridge_confirmations_total"
	MetricPendingExpiredTotal    = "signal_bridge_pending_expired_total"
	MetricPendingTrades          = "signal_bridge_pending_trades"
	MetricConfirmationLatency    = "signal_bridge_confirmation_latency_ms"
	MetricDispatchHandlerLatency = "signal_bridge_dispatch_handler_latency_ms"
)

// MetricsHolder holds initialized instruments. Every recording helper is a
// no-op until InitMetrics has run.
type MetricsHolder struct {
	MessagesSentTotal      metric.Int64Counter
	MessagesDroppedTotal   metric.Int64Counter
	MessagesReceivedTotal  metric.Int64Counter
	DecodeFailuresTotal    metric.Int64Counter
	SignalsPublishedTotal  metric.Int64Counter
	ExecutionOrdersTotal   metric.Int64Counter
	ConfirmationsTotal     metric.Int64Counter
	PendingExpiredTotal    metric.Int64Counter
	PendingTrades          metric.Int64ObservableGauge
	ConfirmationLatency    metric.Float64Histogram
	DispatchHandlerLatency metric.Float64Histogram

	// State for observable gauges
	mu         sync.RWMutex
	pendingMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			pendingMap: make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.MessagesSentTotal, MetricMessagesSentTotal, "Envelopes written to the socket"},
		{&m.MessagesDroppedTotal, MetricMessagesDroppedTotal, "Outbound envelopes dropped by a failed non-blocking send"},
		{&m.MessagesReceivedTotal, MetricMessagesReceivedTotal, "Envelopes read from the socket"},
		{&m.DecodeFailuresTotal, MetricDecodeFailuresTotal, "Inbound messages discarded because they could not be decoded"},
		{&m.SignalsPublishedTotal, MetricSignalsPublishedTotal, "Outbound business messages by type"},
		{&m.ExecutionOrdersTotal, MetricExecutionOrdersTotal, "Execution orders processed by action and result"},
		{&m.ConfirmationsTotal, MetricConfirmationsTotal, "Dealer answers by result"},
		{&m.PendingExpiredTotal, MetricPendingExpiredTotal, "Pending trades evicted by the expiry sweeper"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return err
		}
	}

	m.ConfirmationLatency, err = meter.Float64Histogram(MetricConfirmationLatency,
		metric.WithDescription("Time from registering a pending trade to resolving it"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.DispatchHandlerLatency, err = meter.Float64Histogram(MetricDispatchHandlerLatency,
		metric.WithDescription("Time the dispatch loop spends inside the inbound handler"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	// Observables
	m.PendingTrades, err = meter.Int64ObservableGauge(MetricPendingTrades, metric.WithDescription("Trades awaiting a price confirmation"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for kind, val := range m.pendingMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("kind", kind)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

func addCounter(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func recordHistogram(h metric.Float64Histogram, v float64) {
	if h == nil {
		return
	}
	h.Record(context.Background(), v)
}

func (m *MetricsHolder) IncSent()     { addCounter(m.MessagesSentTotal) }
func (m *MetricsHolder) IncDropped()  { addCounter(m.MessagesDroppedTotal) }
func (m *MetricsHolder) IncReceived() { addCounter(m.MessagesReceivedTotal) }

func (m *MetricsHolder) IncDecodeFailure(stage string) {
	addCounter(m.DecodeFailuresTotal, attribute.String("stage", stage))
}

func (m *MetricsHolder) IncSignalPublished(msgType string) {
	addCounter(m.SignalsPublishedTotal, attribute.String("type", msgType))
}

func (m *MetricsHolder) IncExecutionOrder(action, result string) {
	addCounter(m.ExecutionOrdersTotal, attribute.String("action", action), attribute.String("result", result))
}

func (m *MetricsHolder) IncConfirmation(result string) {
	addCounter(m.ConfirmationsTotal, attribute.String("result", result))
}

func (m *MetricsHolder) IncPendingExpired(kind string) {
	addCounter(m.PendingExpiredTotal, attribute.String("kind", kind))
}

func (m *MetricsHolder) RecordConfirmationLatency(ms float64) {
	recordHistogram(m.ConfirmationLatency, ms)
}

func (m *MetricsHolder) RecordDispatchLatency(ms float64) {
	recordHistogram(m.DispatchHandlerLatency, ms)
}

// Helpers to update observable state

func (m *MetricsHolder) SetPendingTrades(kind string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingMap[kind] = count
}

func (m *MetricsHolder) GetPendingTrades() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64)
	for k, v := range m.pendingMap {
		res[k] = v
	}
	return res
}
