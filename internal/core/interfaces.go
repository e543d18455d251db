// Package core defines the shared types and interfaces of the signal bridge
package core

import "context"

// IVenue is the trading venue the bridge submits trades to
type IVenue interface {
	// SubmitTrade validates and submits a trade. It never blocks on a price
	// confirmation; deferred trades are confirmed later through IConfirmationSink.
	SubmitTrade(ctx context.Context, req TradeRequest) (SubmitResult, error)

	// ExecuteTrade commits a previously deferred trade at the confirmed prices.
	ExecuteTrade(ctx context.Context, req TradeRequest, bid, ask float64) error

	// OpenOrders lists the open orders of a login.
	OpenOrders(ctx context.Context, login int32) ([]OrderStatus, error)
}

// IConfirmationSink receives dealer answers for deferred trades.
// The venue may call it from any goroutine.
type IConfirmationSink interface {
	OnConfirm(requestID int32, bid, ask float64)
	OnRequote(requestID int32, bid, ask float64)
	OnReset(requestID int32)
}

// ISignalSender publishes outbound business messages to the router peer
type ISignalSender interface {
	SendTradeSignal(signal TradeSignal) error
	SendOrdersStatusResponse(response OrdersStatusResponse) error
}

// IOrdersStatusHandler handles an inbound orders status request.
// reply is the sender the answer must be published on.
type IOrdersStatusHandler interface {
	HandleOrdersStatusRequest(logins []int32, reply ISignalSender)
}

// IExecutionHandler handles an inbound execution request
type IExecutionHandler interface {
	HandleExecutionSignal(signal ExecutionSignal, reply ISignalSender)
}

// IHealthMonitor defines the interface for health monitoring
type IHealthMonitor interface {
	Register(component string, check func() error)
	GetStatus() map[string]string
	IsHealthy() bool
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
