package protocol

import (
	"fmt"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"

	"google.golang.org/protobuf/encoding/protowire"
)

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedPayload, what, err)
}

// ExecutionSignal

func EncodeExecutionSignal(s core.ExecutionSignal) []byte {
	var e encoder
	e.putString(1, s.Comment)
	for _, o := range s.Orders {
		e.putMessage(2, encodeExecutionOrder(o))
	}
	return e.buf
}

func encodeExecutionOrder(o core.ExecutionOrder) []byte {
	var e encoder
	e.putInt32(1, o.Login)
	e.putInt32(2, int32(o.ActionType))
	e.putInt32(3, int32(o.Side))
	e.putDouble(4, o.Volume)
	e.putString(5, o.Symbol)
	e.putInt32(6, o.OrderID)
	e.putDouble(7, o.Commission)
	return e.buf
}

func DecodeExecutionSignal(b []byte) (core.ExecutionSignal, error) {
	var s core.ExecutionSignal
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			str, n, err := readString(typ, v)
			s.Comment = str
			return n, err
		case 2:
			raw, n, err := readBytes(typ, v)
			if err != nil {
				return 0, err
			}
			o, err := decodeExecutionOrder(raw)
			if err != nil {
				return 0, err
			}
			s.Orders = append(s.Orders, o)
			return n, nil
		}
		return skip, nil
	})
	if err != nil {
		return core.ExecutionSignal{}, malformed("execution signal", err)
	}
	return s, nil
}

func decodeExecutionOrder(b []byte) (core.ExecutionOrder, error) {
	var o core.ExecutionOrder
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1, 2, 3, 6:
			x, n, err := readVarint(typ, v)
			switch num {
			case 1:
				o.Login = int32(x)
			case 2:
				o.ActionType = actionFromWire(x)
			case 3:
				o.Side = sideFromWire(x)
			case 6:
				o.OrderID = int32(x)
			}
			return n, err
		case 4:
			f, n, err := readDouble(typ, v)
			o.Volume = f
			return n, err
		case 5:
			str, n, err := readString(typ, v)
			o.Symbol = str
			return n, err
		case 7:
			f, n, err := readDouble(typ, v)
			o.Commission = f
			return n, err
		}
		return skip, nil
	})
	return o, err
}

// OrdersStatusRequest

func EncodeOrdersStatusRequest(logins []int32) []byte {
	var e encoder
	e.putPackedInt32(1, logins)
	return e.buf
}

func DecodeOrdersStatusRequest(b []byte) ([]int32, error) {
	var logins []int32
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return skip, nil
		}
		var n int
		var err error
		logins, n, err = readInt32s(logins, typ, v)
		return n, err
	})
	if err != nil {
		return nil, malformed("orders status request", err)
	}
	return logins, nil
}

// OrdersStatusResponse

func EncodeOrdersStatusResponse(r core.OrdersStatusResponse) []byte {
	var e encoder
	for _, acc := range r.PerLogin {
		var a encoder
		a.putInt32(1, acc.Login)
		for _, st := range acc.Orders {
			a.putMessage(2, encodeOrderStatus(st))
		}
		e.putMessage(1, a.buf)
	}
	return e.buf
}

func encodeOrderStatus(st core.OrderStatus) []byte {
	var e encoder
	e.putInt32(1, st.OrderID)
	e.putInt32(2, int32(st.Side))
	e.putInt64(3, st.DateTime)
	e.putDouble(4, st.Volume)
	e.putString(5, st.Symbol)
	e.putDouble(6, st.StopLoss)
	e.putDouble(7, st.TakeProfit)
	e.putString(8, st.Comment)
	return e.buf
}

func DecodeOrdersStatusResponse(b []byte) (core.OrdersStatusResponse, error) {
	var r core.OrdersStatusResponse
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != 1 {
			return skip, nil
		}
		raw, n, err := readBytes(typ, v)
		if err != nil {
			return 0, err
		}
		acc, err := decodeAccountOrdersStatus(raw)
		if err != nil {
			return 0, err
		}
		r.PerLogin = append(r.PerLogin, acc)
		return n, nil
	})
	if err != nil {
		return core.OrdersStatusResponse{}, malformed("orders status response", err)
	}
	return r, nil
}

func decodeAccountOrdersStatus(b []byte) (core.AccountOrdersStatus, error) {
	var acc core.AccountOrdersStatus
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1:
			x, n, err := readVarint(typ, v)
			acc.Login = int32(x)
			return n, err
		case 2:
			raw, n, err := readBytes(typ, v)
			if err != nil {
				return 0, err
			}
			st, err := decodeOrderStatus(raw)
			if err != nil {
				return 0, err
			}
			acc.Orders = append(acc.Orders, st)
			return n, nil
		}
		return skip, nil
	})
	return acc, err
}

func decodeOrderStatus(b []byte) (core.OrderStatus, error) {
	var st core.OrderStatus
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1, 2, 3:
			x, n, err := readVarint(typ, v)
			switch num {
			case 1:
				st.OrderID = int32(x)
			case 2:
				st.Side = sideFromWire(x)
			case 3:
				st.DateTime = int64(x)
			}
			return n, err
		case 4, 6, 7:
			f, n, err := readDouble(typ, v)
			switch num {
			case 4:
				st.Volume = f
			case 6:
				st.StopLoss = f
			case 7:
				st.TakeProfit = f
			}
			return n, err
		case 5, 8:
			str, n, err := readString(typ, v)
			if num == 5 {
				st.Symbol = str
			} else {
				st.Comment = str
			}
			return n, err
		}
		return skip, nil
	})
	return st, err
}

// any action other than Open is a Close
func actionFromWire(x uint64) core.ActionType {
	if x == uint64(core.Open) {
		return core.Open
	}
	return core.Close
}

// any side other than Buy is a Sell
func sideFromWire(x uint64) core.TradeSide {
	if x == uint64(core.Buy) {
		return core.Buy
	}
	return core.Sell
}

// TradeSignal

func EncodeTradeSignal(s core.TradeSignal) []byte {
	var e encoder
	e.putInt32(1, int32(s.Side))
	e.putInt32(2, int32(s.ActionType))
	e.putInt64(3, s.DateTime)
	e.putDouble(4, s.Equity)
	e.putDouble(5, s.Balance)
	e.putDouble(6, s.Volume)
	e.putString(7, s.Symbol)
	e.putDouble(8, s.StopLoss)
	e.putDouble(9, s.TakeProfit)
	e.putInt32(10, s.Login)
	e.putString(11, s.Server)
	e.putInt32(12, s.OrderID)
	e.putString(13, s.Comment)
	e.putDouble(14, s.Profit)
	e.putDouble(15, s.ProviderCommission)
	return e.buf
}

func DecodeTradeSignal(b []byte) (core.TradeSignal, error) {
	var s core.TradeSignal
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case 1, 2, 3, 10, 12:
			x, n, err := readVarint(typ, v)
			switch num {
			case 1:
				s.Side = sideFromWire(x)
			case 2:
				s.ActionType = actionFromWire(x)
			case 3:
				s.DateTime = int64(x)
			case 10:
				s.Login = int32(x)
			case 12:
				s.OrderID = int32(x)
			}
			return n, err
		case 4, 5, 6, 8, 9, 14, 15:
			f, n, err := readDouble(typ, v)
			switch num {
			case 4:
				s.Equity = f
			case 5:
				s.Balance = f
			case 6:
				s.Volume = f
			case 8:
				s.StopLoss = f
			case 9:
				s.TakeProfit = f
			case 14:
				s.Profit = f
			case 15:
				s.ProviderCommission = f
			}
			return n, err
		case 7, 11, 13:
			str, n, err := readString(typ, v)
			switch num {
			case 7:
				s.Symbol = str
			case 11:
				s.Server = str
			case 13:
				s.Comment = str
			}
			return n, err
		}
		return skip, nil
	})
	if err != nil {
		return core.TradeSignal{}, malformed("trade signal", err)
	}
	return s, nil
}
