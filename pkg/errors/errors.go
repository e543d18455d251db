package apperrors

import "errors"

// Transport errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyStarted    = errors.New("already started")
	ErrWouldBlock        = errors.New("operation would block")
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrInvalidEndpoint   = errors.New("invalid endpoint")
	ErrUnsupportedScheme = errors.New("unsupported transport scheme")
	ErrConnectionClosed  = errors.New("connection closed")
)

// Protocol errors
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrMalformedPayload  = errors.New("malformed payload")
)

// Correlation and venue errors
var (
	ErrDuplicatePending = errors.New("request already pending")
	ErrTradeRejected    = errors.New("trade rejected")
	ErrOrderNotFound    = errors.New("order not found")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrPoolFull         = errors.New("worker pool full")
)
