package correlation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signalbridge/internal/core"
	"signalbridge/internal/mock"
	"signalbridge/pkg/concurrency"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedVenue struct {
	*mock.MockVenue
	ids []int32
	mu  sync.Mutex
}

func (v *scriptedVenue) SubmitTrade(ctx context.Context, req core.TradeRequest) (core.SubmitResult, error) {
	res, err := v.MockVenue.SubmitTrade(ctx, req)
	if err != nil || !res.Deferred() {
		return res, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.ids) > 0 {
		res.RequestID, v.ids = v.ids[0], v.ids[1:]
	}
	return res, nil
}

func newTestProcessor(t *testing.T, cfg ProcessorConfig, venue core.IVenue) (*Processor, *Registry) {
	t.Helper()
	logger := logging.NopLogger{}
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "confirmations", MaxWorkers: 2, MaxCapacity: 16}, logger)
	registry := NewRegistry()
	p := NewProcessor(cfg, venue, registry, pool, logger)
	t.Cleanup(p.Close)
	return p, registry
}

func TestProcessor_OpenConfirmedOnce(t *testing.T) {
	venue := &scriptedVenue{MockVenue: mock.NewMockVenue(), ids: []int32{42}}
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1006, ActionType: core.Open, Side: core.Buy, Volume: 1.0, Symbol: "EURUSD"},
	}}, mock.NewMockSignalSender())
	require.Equal(t, 1, registry.Len(core.Open))

	p.OnConfirm(42, 1.1050, 1.1052)
	p.OnConfirm(42, 1.2000, 1.2002)

	require.Eventually(t, func() bool { return registry.Len(core.Open) == 0 }, time.Second, 5*time.Millisecond)
	p.pool.Stop()

	executed := venue.Executed()
	require.Len(t, executed, 1)
	assert.Equal(t, 1.1050, executed[0].Bid)
	assert.Equal(t, 1.1052, executed[0].Ask)
	assert.Equal(t, int32(1006), executed[0].Request.Login)
}

func TestProcessor_UnrelatedConfirmationLeavesPending(t *testing.T) {
	venue := &scriptedVenue{MockVenue: mock.NewMockVenue(), ids: []int32{7}}
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1006, ActionType: core.Close, OrderID: 12353, Symbol: "EURUSD", Volume: 1},
	}}, nil)

	p.OnConfirm(99, 1.0, 1.0)
	p.pool.Stop()

	assert.Equal(t, 1, registry.Len(core.Close))
	assert.Equal(t, 1, registry.Count(7))
	assert.Empty(t, venue.Executed())
}

func TestProcessor_RejectedOrderDoesNotStopBatch(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.RejectSymbol("GBPUSD", "market closed")
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
		{Login: 1, ActionType: core.Close, Symbol: "GBPUSD", OrderID: 5, Volume: 1},
		{Login: 2, ActionType: core.Open, Symbol: "USDJPY", Volume: 2},
	}}, nil)

	assert.Len(t, venue.Submitted(), 3)
	assert.Equal(t, 2, registry.Len(core.Open))
	assert.Equal(t, 0, registry.Len(core.Close))
}

func TestProcessor_SubmitErrorIsIsolated(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.SetSubmitError(errors.New("venue offline"))
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	assert.NotPanics(t, func() {
		p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
			{Login: 1, Symbol: "EURUSD"}, {Login: 2, Symbol: "EURUSD"},
		}}, nil)
	})
	assert.Len(t, venue.Submitted(), 2)
	assert.Equal(t, 0, registry.Len(core.Open))
}

func TestProcessor_AutoExecutionRegistersNothing(t *testing.T) {
	venue := mock.NewMockVenue()
	p, registry := newTestProcessor(t, ProcessorConfig{AutoExecution: true}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Comment: "copy", Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
	}}, nil)

	assert.Equal(t, 0, registry.Len(core.Open))
	submitted := venue.Submitted()
	require.Len(t, submitted, 1)
	assert.True(t, submitted[0].Immediate)
	assert.Equal(t, "copy", submitted[0].Comment)
	assert.Len(t, venue.Executed(), 1)
}

func TestProcessor_DuplicateRequestIDKeepsFirst(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.SetFixedRequestID(11)
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
		{Login: 2, ActionType: core.Close, Symbol: "EURUSD", OrderID: 3, Volume: 1},
	}}, nil)

	assert.Equal(t, 1, registry.Count(11))
	assert.Equal(t, 1, registry.Len(core.Open))

	snap := p.Pending()
	require.Len(t, snap, 1)
	assert.Equal(t, int32(1), snap[0].Login)
}

func TestProcessor_RequoteAndResetKeepPending(t *testing.T) {
	venue := &scriptedVenue{MockVenue: mock.NewMockVenue(), ids: []int32{3}}
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
	}}, nil)

	p.OnRequote(3, 1.1, 1.2)
	p.OnReset(3)
	assert.Equal(t, 1, registry.Count(3))
	assert.Empty(t, venue.Executed())
}

func TestProcessor_OrdersStatusOneBlockPerLogin(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.SetOpenOrders(1006, []core.OrderStatus{{OrderID: 1, Symbol: "EURUSD", Volume: 0.5}})
	venue.SetOpenOrders(1007, nil)
	p, _ := newTestProcessor(t, ProcessorConfig{}, venue)
	sender := mock.NewMockSignalSender()

	p.HandleOrdersStatusRequest([]int32{1006, 1007, 4040}, sender)

	responses := sender.Responses()
	require.Len(t, responses, 1)
	blocks := responses[0].PerLogin
	require.Len(t, blocks, 3)
	assert.Equal(t, int32(1006), blocks[0].Login)
	assert.Len(t, blocks[0].Orders, 1)
	assert.Empty(t, blocks[1].Orders)
	assert.Equal(t, int32(4040), blocks[2].Login)
	assert.Empty(t, blocks[2].Orders)
}

func TestProcessor_ConfirmAfterCloseIsDropped(t *testing.T) {
	venue := &scriptedVenue{MockVenue: mock.NewMockVenue(), ids: []int32{8}}
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
	}}, nil)
	p.Close()

	assert.NotPanics(t, func() { p.OnConfirm(8, 1, 1) })
	assert.Equal(t, 1, registry.Count(8))
}

func TestProcessor_SweepEvictsExpired(t *testing.T) {
	venue := mock.NewMockVenue()
	p, registry := newTestProcessor(t, ProcessorConfig{PendingTTL: 20 * time.Millisecond, SweepInterval: 5 * time.Millisecond}, venue)

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1, ActionType: core.Open, Symbol: "EURUSD", Volume: 1},
	}}, nil)
	require.Equal(t, 1, registry.Len(core.Open))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool { return registry.Len(core.Open) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestProcessor_RunWithoutTTLWaits(t *testing.T) {
	p, registry := newTestProcessor(t, ProcessorConfig{}, mock.NewMockVenue())
	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{{Login: 1, Symbol: "EURUSD"}}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, registry.Len(core.Open))
}

// eagerVenue confirms every deferred trade before SubmitTrade returns
type eagerVenue struct {
	*mock.MockVenue
	sink core.IConfirmationSink
}

func (v *eagerVenue) SubmitTrade(ctx context.Context, req core.TradeRequest) (core.SubmitResult, error) {
	res, err := v.MockVenue.SubmitTrade(ctx, req)
	if err == nil && res.Deferred() {
		v.sink.OnConfirm(res.RequestID, 1.1, 1.2)
		time.Sleep(20 * time.Millisecond)
	}
	return res, err
}

func TestProcessor_ConfirmationBeforeRegistration(t *testing.T) {
	venue := &eagerVenue{MockVenue: mock.NewMockVenue()}
	p, registry := newTestProcessor(t, ProcessorConfig{}, venue)
	venue.sink = p

	p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
		{Login: 1006, ActionType: core.Open, Side: core.Buy, Volume: 1.0, Symbol: "EURUSD"},
	}}, nil)

	require.Eventually(t, func() bool { return len(venue.Executed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, registry.Len(core.Open))
}

// chattyVenue confirms the same deferred trade repeatedly before SubmitTrade returns
type chattyVenue struct {
	*mock.MockVenue
	sink core.IConfirmationSink
}

func (v *chattyVenue) SubmitTrade(ctx context.Context, req core.TradeRequest) (core.SubmitResult, error) {
	res, err := v.MockVenue.SubmitTrade(ctx, req)
	if err == nil && res.Deferred() {
		for i := 0; i < 5; i++ {
			v.sink.OnConfirm(res.RequestID, 1.1, 1.2)
		}
	}
	return res, err
}

func TestProcessor_SaturatedBlockingPoolDoesNotDeadlock(t *testing.T) {
	logger := logging.NopLogger{}
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "tiny", MaxWorkers: 1, MaxCapacity: 1}, logger)
	venue := &chattyVenue{MockVenue: mock.NewMockVenue()}
	p := NewProcessor(ProcessorConfig{}, venue, NewRegistry(), pool, logger)
	t.Cleanup(p.Close)
	venue.sink = p

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.HandleExecutionSignal(core.ExecutionSignal{Orders: []core.ExecutionOrder{
			{Login: 1006, ActionType: core.Open, Side: core.Buy, Volume: 1.0, Symbol: "EURUSD"},
		}}, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("execution handling blocked on the confirmation pool")
	}
	require.Eventually(t, func() bool { return len(venue.Executed()) == 1 }, time.Second, 5*time.Millisecond)
}
