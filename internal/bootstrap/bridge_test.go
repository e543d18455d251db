package bootstrap

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signalbridge/internal/config"
	"signalbridge/internal/core"
	"signalbridge/internal/router"
	"signalbridge/internal/transport"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dealerTraffic struct {
	mu       sync.Mutex
	trades   []core.TradeSignal
	statuses []core.OrdersStatusResponse
}

func (d *dealerTraffic) callbacks() router.Callbacks {
	return router.Callbacks{
		OnTradeSignal: func(_ string, s core.TradeSignal) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.trades = append(d.trades, s)
		},
		OnOrdersStatus: func(_ string, s core.OrdersStatusResponse) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.statuses = append(d.statuses, s)
		},
	}
}

func (d *dealerTraffic) snapshot() ([]core.TradeSignal, []core.OrdersStatusResponse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.TradeSignal(nil), d.trades...), append([]core.OrdersStatusResponse(nil), d.statuses...)
}

func TestBridge_OpenStatusClose(t *testing.T) {
	logger := logging.NopLogger{}
	traffic := &dealerTraffic{}
	r := router.NewRouter("Router", traffic.callbacks(), logger)
	ws := router.NewWSRouter(router.WSOptions{}, r.HandleFrame, logger)
	r.Bind(ws)
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	defer ws.Stop(context.Background())

	ep, err := transport.ParseEndpoint("ws" + strings.TrimPrefix(srv.URL, "http") + transport.DefaultWSPath)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Bridge.Scheme = ep.Scheme
	cfg.Bridge.Host = ep.Host
	cfg.Bridge.Port = ep.Port
	cfg.Bridge.Path = ep.Path
	cfg.Venue.ConfirmDelayMs = 5
	cfg.Telemetry.AdminPort = 0
	cfg.Telemetry.GRPCHealthPort = 0

	bridge, err := NewBridge(cfg, nil, logger)
	require.NoError(t, err)
	assert.Len(t, bridge.Runners(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	require.Eventually(t, func() bool { return len(r.Dealers()) == 1 }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, bridge.Health.IsHealthy, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, r.SendExecution("Server", core.ExecutionSignal{Comment: "copy", Orders: []core.ExecutionOrder{
		{Login: 1006, ActionType: core.Open, Side: core.Buy, Volume: 1, Symbol: "EURUSD"},
	}}))

	var opened core.TradeSignal
	require.Eventually(t, func() bool {
		trades, _ := traffic.snapshot()
		if len(trades) == 0 {
			return false
		}
		opened = trades[0]
		return true
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.Open, opened.ActionType)
	assert.Equal(t, "EURUSD", opened.Symbol)
	assert.Equal(t, int32(1006), opened.Login)
	assert.Equal(t, "Server", opened.Server)
	assert.NotZero(t, opened.OrderID)

	require.NoError(t, r.RequestOrdersStatus("Server", []int32{1006, 2000}))
	require.Eventually(t, func() bool {
		_, statuses := traffic.snapshot()
		return len(statuses) == 1
	}, 3*time.Second, 5*time.Millisecond)
	_, statuses := traffic.snapshot()
	require.Len(t, statuses[0].PerLogin, 2)
	assert.Len(t, statuses[0].PerLogin[0].Orders, 1)
	assert.Empty(t, statuses[0].PerLogin[1].Orders)

	require.NoError(t, r.SendExecution("Server", core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1006, ActionType: core.Close, OrderID: opened.OrderID},
	}}))
	require.Eventually(t, func() bool {
		trades, _ := traffic.snapshot()
		return len(trades) == 2
	}, 3*time.Second, 5*time.Millisecond)
	trades, _ := traffic.snapshot()
	assert.Equal(t, core.Close, trades[1].ActionType)
	assert.Equal(t, opened.OrderID, trades[1].OrderID)
	assert.Empty(t, bridge.Processor.Pending())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
	}
	assert.False(t, bridge.Module.IsStarted())
}

func TestNewBridge_BadEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bridge.Scheme = "udp"
	_, err := NewBridge(cfg, nil, logging.NopLogger{})
	assert.Error(t, err)
}
