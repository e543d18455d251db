package mock

import (
	"sync"

	"signalbridge/internal/core"
)

// MockSignalSender records outbound messages
type MockSignalSender struct {
	mu        sync.Mutex
	trades    []core.TradeSignal
	responses []core.OrdersStatusResponse
	err       error
}

func NewMockSignalSender() *MockSignalSender {
	return &MockSignalSender{}
}

// SetError makes every send fail with err
func (s *MockSignalSender) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MockSignalSender) SendTradeSignal(signal core.TradeSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.trades = append(s.trades, signal)
	return nil
}

func (s *MockSignalSender) SendOrdersStatusResponse(response core.OrdersStatusResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.responses = append(s.responses, response)
	return nil
}

func (s *MockSignalSender) TradeSignals() []core.TradeSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TradeSignal(nil), s.trades...)
}

func (s *MockSignalSender) Responses() []core.OrdersStatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.OrdersStatusResponse(nil), s.responses...)
}
