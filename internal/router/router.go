// Package router implements the order-routing peer that dealers connect to.
// It answers Connect announcements, decodes the signals dealers publish and
// addresses execution and status requests to a dealer by identity.
package router

import (
	"fmt"
	"sort"

	"signalbridge/internal/core"
	"signalbridge/internal/protocol"
	apperrors "signalbridge/pkg/errors"
)

// Transport delivers frames to dealers by identity
type Transport interface {
	SendTo(identity string, frame []byte) error
	Identities() []string
}

// FrameHandler receives every frame a dealer sends
type FrameHandler func(identity string, frame []byte)

// Callbacks observe decoded dealer traffic. Any of them may be nil.
type Callbacks struct {
	OnConnect      func(identity string)
	OnTradeSignal  func(identity string, signal core.TradeSignal)
	OnOrdersStatus func(identity string, response core.OrdersStatusResponse)
}

// Router speaks the envelope protocol on top of a Transport
type Router struct {
	name      string
	transport Transport
	callbacks Callbacks
	logger    core.ILogger
}

func NewRouter(name string, callbacks Callbacks, logger core.ILogger) *Router {
	return &Router{
		name:      name,
		callbacks: callbacks,
		logger:    logger.WithField("component", "router"),
	}
}

// Bind sets the transport replies go out on
func (r *Router) Bind(t Transport) {
	r.transport = t
}

// HandleFrame decodes one dealer frame. Malformed frames are logged and dropped.
func (r *Router) HandleFrame(identity string, frame []byte) {
	env, err := protocol.UnmarshalEnvelope(frame)
	if err != nil {
		r.logger.Warn("Dropping malformed envelope", "identity", identity, "error", err)
		return
	}

	switch env.Type {
	case protocol.MessageConnect:
		if err := r.send(identity, protocol.MessageConnected, []byte(identity)); err != nil {
			r.logger.Warn("Failed to acknowledge dealer", "identity", identity, "error", err)
		}
		if r.callbacks.OnConnect != nil {
			r.callbacks.OnConnect(identity)
		}

	case protocol.MessageTradeSignal:
		signal, err := protocol.DecodeTradeSignal(env.Content)
		if err != nil {
			r.logger.Warn("Dropping malformed trade signal", "identity", identity, "error", err)
			return
		}
		if r.callbacks.OnTradeSignal != nil {
			r.callbacks.OnTradeSignal(identity, signal)
		}

	case protocol.MessageOrdersStatusResponse:
		resp, err := protocol.DecodeOrdersStatusResponse(env.Content)
		if err != nil {
			r.logger.Warn("Dropping malformed orders status", "identity", identity, "error", err)
			return
		}
		if r.callbacks.OnOrdersStatus != nil {
			r.callbacks.OnOrdersStatus(identity, resp)
		}

	default:
		r.logger.Debug("Ignoring envelope", "identity", identity, "type", env.Type.String())
	}
}

// SendExecution addresses an execution request to a dealer
func (r *Router) SendExecution(identity string, signal core.ExecutionSignal) error {
	return r.send(identity, protocol.MessageExecutionRequest, protocol.EncodeExecutionSignal(signal))
}

// RequestOrdersStatus asks a dealer for the open orders of logins
func (r *Router) RequestOrdersStatus(identity string, logins []int32) error {
	return r.send(identity, protocol.MessageOrdersStatusRequest, protocol.EncodeOrdersStatusRequest(logins))
}

// Dealers lists connected identities in order
func (r *Router) Dealers() []string {
	if r.transport == nil {
		return nil
	}
	ids := r.transport.Identities()
	sort.Strings(ids)
	return ids
}

func (r *Router) send(identity string, t protocol.MessageType, content []byte) error {
	if r.transport == nil {
		return fmt.Errorf("router %s: %w", r.name, apperrors.ErrNotConnected)
	}
	frame := protocol.MarshalEnvelope(protocol.Envelope{Type: t, Source: r.name, Content: content})
	if err := r.transport.SendTo(identity, frame); err != nil {
		return fmt.Errorf("send %s to %s: %w", t, identity, err)
	}
	return nil
}
