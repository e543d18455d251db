package mock

import (
	"context"
	"fmt"
	"sync"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"
)

// ExecutedTrade records one ExecuteTrade call
type ExecutedTrade struct {
	Request core.TradeRequest
	Bid     float64
	Ask     float64
}

// MockVenue implements core.IVenue for testing. By default every trade is
// accepted and deferred with an increasing request id.
type MockVenue struct {
	mu sync.Mutex

	nextID    int32
	fixedID   int32
	immediate bool
	rejects   map[string]string
	submitErr error
	execErr   error

	submitted []core.TradeRequest
	executed  []ExecutedTrade
	open      map[int32][]core.OrderStatus
}

func NewMockVenue() *MockVenue {
	return &MockVenue{
		nextID:  1000,
		rejects: make(map[string]string),
		open:    make(map[int32][]core.OrderStatus),
	}
}

// SetImmediate makes SubmitTrade execute trades synchronously
func (m *MockVenue) SetImmediate(immediate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.immediate = immediate
}

// SetFixedRequestID makes every deferred trade reuse id
func (m *MockVenue) SetFixedRequestID(id int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixedID = id
}

// RejectSymbol rejects every trade on symbol with reason
func (m *MockVenue) RejectSymbol(symbol, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[symbol] = reason
}

func (m *MockVenue) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

func (m *MockVenue) SetExecuteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execErr = err
}

func (m *MockVenue) SetOpenOrders(login int32, orders []core.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open[login] = orders
}

func (m *MockVenue) SubmitTrade(ctx context.Context, req core.TradeRequest) (core.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return core.SubmitResult{}, m.submitErr
	}
	if reason, ok := m.rejects[req.Symbol]; ok {
		return core.SubmitResult{Accepted: false, Reason: reason}, nil
	}
	if m.immediate || req.Immediate {
		m.executed = append(m.executed, ExecutedTrade{Request: req})
		return core.SubmitResult{Accepted: true}, nil
	}

	id := m.fixedID
	if id == 0 {
		m.nextID++
		id = m.nextID
	}
	return core.SubmitResult{Accepted: true, RequestID: id}, nil
}

func (m *MockVenue) ExecuteTrade(ctx context.Context, req core.TradeRequest, bid, ask float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.execErr != nil {
		return m.execErr
	}
	m.executed = append(m.executed, ExecutedTrade{Request: req, Bid: bid, Ask: ask})
	return nil
}

func (m *MockVenue) OpenOrders(ctx context.Context, login int32) ([]core.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders, ok := m.open[login]
	if !ok {
		return nil, fmt.Errorf("login %d: %w", login, apperrors.ErrOrderNotFound)
	}
	return append([]core.OrderStatus(nil), orders...), nil
}

// Submitted returns a copy of every submitted request
func (m *MockVenue) Submitted() []core.TradeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TradeRequest(nil), m.submitted...)
}

// Executed returns a copy of every executed trade
func (m *MockVenue) Executed() []ExecutedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedTrade(nil), m.executed...)
}
