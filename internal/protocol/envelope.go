// Package protocol implements the envelope framing, the business payload codec
// and the Signal Module that routes typed messages over a transport connector.
package protocol

import (
	"fmt"

	apperrors "signalbridge/pkg/errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType tags the content of an Envelope
type MessageType int32

const (
	MessageUnknown              MessageType = 0
	MessageTradeSignal          MessageType = 1
	MessageOrdersStatusResponse MessageType = 2
	MessageConnect              MessageType = 3
	MessageOrdersStatusRequest  MessageType = 4
	MessageExecutionRequest     MessageType = 5
	MessageConnected            MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case MessageTradeSignal:
		return "TradeSignal"
	case MessageOrdersStatusResponse:
		return "OrdersStatusResponse"
	case MessageConnect:
		return "Connect"
	case MessageOrdersStatusRequest:
		return "OrdersStatusRequest"
	case MessageExecutionRequest:
		return "ExecutionRequest"
	case MessageConnected:
		return "Connected"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// ConnectContent is the payload of the connect announcement
const ConnectContent = "Connect"

// Envelope is the outer frame of every message on the wire. Source is the
// sender identity on outbound frames and the addressed identity on frames
// coming back from the router.
type Envelope struct {
	Type    MessageType
	Source  string
	Content []byte
}

const (
	envelopeType    protowire.Number = 1
	envelopeSource  protowire.Number = 2
	envelopeContent protowire.Number = 3
)

// MarshalEnvelope serializes an envelope
func MarshalEnvelope(env Envelope) []byte {
	e := encoder{buf: make([]byte, 0, len(env.Content)+len(env.Source)+16)}
	e.putInt32(envelopeType, int32(env.Type))
	e.putString(envelopeSource, env.Source)
	e.putBytes(envelopeContent, env.Content)
	return e.buf
}

// UnmarshalEnvelope parses an envelope. The returned Content aliases b.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case envelopeType:
			x, n, err := readVarint(typ, v)
			env.Type = MessageType(int32(x))
			return n, err
		case envelopeSource:
			s, n, err := readString(typ, v)
			env.Source = s
			return n, err
		case envelopeContent:
			c, n, err := readBytes(typ, v)
			env.Content = c
			return n, err
		}
		return skip, nil
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedEnvelope, err)
	}
	return env, nil
}
