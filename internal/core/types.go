package core

// TradeSide is the direction of an order.
type TradeSide int32

const (
	Buy  TradeSide = 0
	Sell TradeSide = 1
)

func (s TradeSide) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// ActionType distinguishes opening a position from closing one.
type ActionType int32

const (
	Open  ActionType = 0
	Close ActionType = 1
)

func (a ActionType) String() string {
	if a == Close {
		return "CLOSE"
	}
	return "OPEN"
}

// ExecutionOrder is a single instruction inside an ExecutionSignal.
// OrderID is only meaningful for Close orders.
type ExecutionOrder struct {
	Login      int32
	ActionType ActionType
	Side       TradeSide
	Volume     float64
	Symbol     string
	OrderID    int32
	Commission float64
}

// ExecutionSignal is a batch of orders received from the router peer.
// Orders are processed independently.
type ExecutionSignal struct {
	Comment string
	Orders  []ExecutionOrder
}

// OrderStatus describes one open order of an account.
type OrderStatus struct {
	OrderID    int32
	Side       TradeSide
	DateTime   int64
	Volume     float64
	Symbol     string
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// AccountOrdersStatus groups the open orders of one login.
type AccountOrdersStatus struct {
	Login  int32
	Orders []OrderStatus
}

// OrdersStatusResponse answers an orders status request, one block per login.
type OrdersStatusResponse struct {
	PerLogin []AccountOrdersStatus
}

// TradeSignal describes one open or close event of a trade on the venue.
type TradeSignal struct {
	Side               TradeSide
	ActionType         ActionType
	DateTime           int64
	Equity             float64
	Balance            float64
	Volume             float64
	Symbol             string
	StopLoss           float64
	TakeProfit         float64
	Login              int32
	Server             string
	OrderID            int32
	Comment            string
	Profit             float64
	ProviderCommission float64
}

// TradeRequest is what the processor submits to the venue for one ExecutionOrder.
type TradeRequest struct {
	Login      int32
	Kind       ActionType
	Side       TradeSide
	Symbol     string
	Volume     float64
	OrderID    int32
	Commission float64
	Comment    string

	// Immediate asks the venue to fill at its current quote instead of
	// deferring to a dealer confirmation.
	Immediate bool
}

// SubmitResult is the venue's synchronous answer to a trade submission.
// An accepted result with a zero RequestID was executed immediately and
// needs no confirmation.
type SubmitResult struct {
	Accepted  bool
	RequestID int32
	Reason    string
}

// Deferred reports whether the trade awaits an asynchronous price confirmation.
func (r SubmitResult) Deferred() bool {
	return r.Accepted && r.RequestID != 0
}
