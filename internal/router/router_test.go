package router

import (
	"errors"
	"sync"
	"testing"

	"signalbridge/internal/core"
	"signalbridge/internal/protocol"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	identity string
	env      protocol.Envelope
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentFrame
	err  error
}

func (f *fakeTransport) SendTo(identity string, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	env, err := protocol.UnmarshalEnvelope(frame)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, sentFrame{identity, env})
	return nil
}

func (f *fakeTransport) Identities() []string { return []string{"b", "a"} }

func envelope(t protocol.MessageType, content []byte) []byte {
	return protocol.MarshalEnvelope(protocol.Envelope{Type: t, Source: "Server", Content: content})
}

func TestRouter_AnswersConnect(t *testing.T) {
	var connected []string
	r := NewRouter("Router", Callbacks{OnConnect: func(id string) { connected = append(connected, id) }}, logging.NopLogger{})
	ft := &fakeTransport{}
	r.Bind(ft)

	r.HandleFrame("Server", envelope(protocol.MessageConnect, []byte(protocol.ConnectContent)))

	require.Len(t, ft.sent, 1)
	assert.Equal(t, "Server", ft.sent[0].identity)
	assert.Equal(t, protocol.MessageConnected, ft.sent[0].env.Type)
	assert.Equal(t, "Router", ft.sent[0].env.Source)
	assert.Equal(t, []string{"Server"}, connected)
}

func TestRouter_DecodesDealerSignals(t *testing.T) {
	var trades []core.TradeSignal
	var statuses []core.OrdersStatusResponse
	r := NewRouter("Router", Callbacks{
		OnTradeSignal:  func(_ string, s core.TradeSignal) { trades = append(trades, s) },
		OnOrdersStatus: func(_ string, s core.OrdersStatusResponse) { statuses = append(statuses, s) },
	}, logging.NopLogger{})
	r.Bind(&fakeTransport{})

	r.HandleFrame("Server", envelope(protocol.MessageTradeSignal, protocol.EncodeTradeSignal(core.TradeSignal{Login: 1006, Symbol: "EURUSD", Volume: 1})))
	r.HandleFrame("Server", envelope(protocol.MessageOrdersStatusResponse, protocol.EncodeOrdersStatusResponse(core.OrdersStatusResponse{
		PerLogin: []core.AccountOrdersStatus{{Login: 1006}},
	})))
	r.HandleFrame("Server", []byte{0xff})
	r.HandleFrame("Server", envelope(protocol.MessageTradeSignal, []byte{0x0a}))

	require.Len(t, trades, 1)
	assert.Equal(t, "EURUSD", trades[0].Symbol)
	require.Len(t, statuses, 1)
	assert.Equal(t, int32(1006), statuses[0].PerLogin[0].Login)
}

func TestRouter_AddressesRequests(t *testing.T) {
	r := NewRouter("Router", Callbacks{}, logging.NopLogger{})
	assert.Error(t, r.SendExecution("Server", core.ExecutionSignal{}), "unbound router cannot send")

	ft := &fakeTransport{}
	r.Bind(ft)
	require.NoError(t, r.SendExecution("Server", core.ExecutionSignal{Orders: []core.ExecutionOrder{{Login: 1, Symbol: "EURUSD"}}}))
	require.NoError(t, r.RequestOrdersStatus("Server", []int32{1, 2}))

	require.Len(t, ft.sent, 2)
	assert.Equal(t, protocol.MessageExecutionRequest, ft.sent[0].env.Type)
	sig, err := protocol.DecodeExecutionSignal(ft.sent[0].env.Content)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", sig.Orders[0].Symbol)

	logins, err := protocol.DecodeOrdersStatusRequest(ft.sent[1].env.Content)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, logins)

	assert.Equal(t, []string{"a", "b"}, r.Dealers())

	ft.err = errors.New("gone")
	assert.Error(t, r.RequestOrdersStatus("Server", nil))
}
