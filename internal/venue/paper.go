// Package venue provides an in-process paper trading venue. It defers
// trades to a dealer confirmation delivered on a timer goroutine, keeps
// per-login positions and reports every open and close as a TradeSignal.
package venue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

// Config configures a PaperVenue
type Config struct {
	ServerName     string
	ConfirmDelay   time.Duration
	InitialBalance float64
	Symbols        map[string]SymbolConfig
}

type quote struct {
	bid, ask float64
}

// PaperVenue implements core.IVenue in memory
type PaperVenue struct {
	cfg    Config
	logger core.ILogger

	mu          sync.Mutex
	symbols     map[string]SymbolConfig
	quotes      map[string]quote
	accounts    map[int32]*account
	nextRequest int32
	nextOrder   int32
	timers      map[int32]*time.Timer
	closed      bool

	sink    core.IConfirmationSink
	signals core.ISignalSender
	now     func() time.Time
}

// NewPaperVenue creates a venue quoting the configured symbols
func NewPaperVenue(cfg Config, logger core.ILogger) *PaperVenue {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10000
	}
	v := &PaperVenue{
		cfg:       cfg,
		logger:    logger.WithField("component", "paper_venue"),
		symbols:   make(map[string]SymbolConfig),
		quotes:    make(map[string]quote),
		accounts:  make(map[int32]*account),
		nextOrder: 10000,
		timers:    make(map[int32]*time.Timer),
		now:       time.Now,
	}
	for name, sym := range cfg.Symbols {
		v.symbols[name] = sym.withDefaults()
		v.quotes[name] = quote{bid: sym.Bid, ask: sym.Ask}
	}
	return v
}

// Attach wires the dealer confirmation sink and the outbound signal sender.
// Either may be nil.
func (v *PaperVenue) Attach(sink core.IConfirmationSink, signals core.ISignalSender) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sink = sink
	v.signals = signals
}

// SetQuote updates the current price of a symbol
func (v *PaperVenue) SetQuote(symbol string, bid, ask float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.symbols[symbol]; !ok {
		return fmt.Errorf("%s: %w", symbol, apperrors.ErrUnknownSymbol)
	}
	digits := v.symbols[symbol].Digits
	v.quotes[symbol] = quote{bid: tradingutils.RoundQuote(bid, digits), ask: tradingutils.RoundQuote(ask, digits)}
	return nil
}

// Quote returns the current bid and ask of a symbol
func (v *PaperVenue) Quote(symbol string) (bid, ask float64, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q, ok := v.quotes[symbol]
	return q.bid, q.ask, ok
}

// Balance returns the balance of a login
func (v *PaperVenue) Balance(login int32) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.account(login).balance.InexactFloat64()
}

func (v *PaperVenue) account(login int32) *account {
	acc, ok := v.accounts[login]
	if !ok {
		acc = newAccount(login, decimal.NewFromFloat(v.cfg.InitialBalance))
		v.accounts[login] = acc
	}
	return acc
}

func (v *PaperVenue) findPosition(orderID int32) (*account, *position, bool) {
	for _, acc := range v.accounts {
		if p, ok := acc.positions[orderID]; ok {
			return acc, p, true
		}
	}
	return nil, nil, false
}

// SubmitTrade validates req. Immediate requests are filled at the current
// quote; others get a request id and a confirmation after ConfirmDelay.
func (v *PaperVenue) SubmitTrade(ctx context.Context, req core.TradeRequest) (core.SubmitResult, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return core.SubmitResult{}, apperrors.ErrNotConnected
	}
	if reason := v.validate(&req); reason != "" {
		v.mu.Unlock()
		v.logger.Warn("Trade rejected", "login", req.Login, "action", req.Kind.String(), "symbol", req.Symbol, "reason", reason)
		return core.SubmitResult{Accepted: false, Reason: reason}, nil
	}

	if req.Immediate {
		q := v.quotes[req.Symbol]
		signal, err := v.execute(req, q.bid, q.ask)
		sender := v.signals
		v.mu.Unlock()
		if err != nil {
			return core.SubmitResult{}, err
		}
		v.publish(sender, signal)
		return core.SubmitResult{Accepted: true}, nil
	}

	v.nextRequest++
	id := v.nextRequest
	v.timers[id] = time.AfterFunc(v.cfg.ConfirmDelay, func() { v.confirm(id, req.Symbol) })
	v.mu.Unlock()

	return core.SubmitResult{Accepted: true, RequestID: id}, nil
}

// validate fills in what the venue knows about req and returns a rejection
// reason, or "" when the trade may proceed. Caller holds mu.
func (v *PaperVenue) validate(req *core.TradeRequest) string {
	if req.Kind == core.Close {
		acc, p, ok := v.findPosition(req.OrderID)
		if !ok {
			return fmt.Sprintf("order %d is not open", req.OrderID)
		}
		if req.Login != 0 && req.Login != acc.login {
			return fmt.Sprintf("order %d does not belong to login %d", req.OrderID, req.Login)
		}
		req.Login = acc.login
		req.Symbol = p.Symbol
		req.Side = p.Side
		req.Volume = toVolume(p.Lots)
		return ""
	}

	if req.Login == 0 {
		return "missing login"
	}
	if req.Side != core.Buy && req.Side != core.Sell {
		return "invalid side"
	}
	sym, ok := v.symbols[req.Symbol]
	if !ok {
		return fmt.Sprintf("unknown symbol %q", req.Symbol)
	}
	if toLots(req.Volume, v.account(req.Login).balance, sym) == 0 {
		return fmt.Sprintf("volume %v below minimum", req.Volume)
	}
	return ""
}

func (v *PaperVenue) confirm(id int32, symbol string) {
	v.mu.Lock()
	delete(v.timers, id)
	q := v.quotes[symbol]
	sink := v.sink
	closed := v.closed
	v.mu.Unlock()

	if closed {
		return
	}
	if sink == nil {
		v.logger.Warn("No confirmation sink attached", "request_id", id)
		return
	}
	sink.OnConfirm(id, q.bid, q.ask)
}

// ExecuteTrade commits a deferred trade at the confirmed prices
func (v *PaperVenue) ExecuteTrade(ctx context.Context, req core.TradeRequest, bid, ask float64) error {
	v.mu.Lock()
	signal, err := v.execute(req, bid, ask)
	sender := v.signals
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.publish(sender, signal)
	return nil
}

// execute applies req and returns the resulting lifecycle signal. Caller holds mu.
func (v *PaperVenue) execute(req core.TradeRequest, bid, ask float64) (core.TradeSignal, error) {
	if req.Kind == core.Close {
		return v.closePosition(req, bid, ask)
	}
	return v.openPosition(req, bid, ask)
}

func (v *PaperVenue) openPosition(req core.TradeRequest, bid, ask float64) (core.TradeSignal, error) {
	sym, ok := v.symbols[req.Symbol]
	if !ok {
		return core.TradeSignal{}, fmt.Errorf("%s: %w", req.Symbol, apperrors.ErrUnknownSymbol)
	}
	acc := v.account(req.Login)
	lots := toLots(req.Volume, acc.balance, sym)
	if lots == 0 {
		return core.TradeSignal{}, fmt.Errorf("volume %v below minimum: %w", req.Volume, apperrors.ErrTradeRejected)
	}

	price := ask
	if req.Side == core.Sell {
		price = bid
	}

	v.nextOrder++
	p := &position{
		OrderID:    v.nextOrder,
		Login:      acc.login,
		Side:       req.Side,
		Symbol:     req.Symbol,
		Lots:       lots,
		OpenPrice:  decimal.NewFromFloat(price),
		OpenTime:   v.now().Unix(),
		Comment:    req.Comment,
		Commission: providerCommission(req.Symbol, lots, req.Commission, sym),
	}
	acc.positions[p.OrderID] = p

	v.logger.Info("Position opened", "order_id", p.OrderID, "login", acc.login, "symbol", p.Symbol, "side", p.Side.String(), "lots", lots, "price", price)

	return core.TradeSignal{
		Side:               p.Side,
		ActionType:         core.Open,
		DateTime:           p.OpenTime,
		Equity:             v.equity(acc),
		Balance:            acc.balance.InexactFloat64(),
		Volume:             toVolume(lots),
		Symbol:             p.Symbol,
		Login:              acc.login,
		Server:             v.cfg.ServerName,
		OrderID:            p.OrderID,
		Comment:            p.Comment,
		ProviderCommission: p.Commission.InexactFloat64(),
	}, nil
}

func (v *PaperVenue) closePosition(req core.TradeRequest, bid, ask float64) (core.TradeSignal, error) {
	acc, p, ok := v.findPosition(req.OrderID)
	if !ok {
		return core.TradeSignal{}, fmt.Errorf("order %d: %w", req.OrderID, apperrors.ErrOrderNotFound)
	}

	profit := p.profit(bid, ask, v.symbols[p.Symbol])
	acc.balance = acc.balance.Add(profit)
	delete(acc.positions, p.OrderID)

	v.logger.Info("Position closed", "order_id", p.OrderID, "login", acc.login, "symbol", p.Symbol, "profit", profit.String())

	return core.TradeSignal{
		Side:       p.Side,
		ActionType: core.Close,
		DateTime:   v.now().Unix(),
		Equity:     v.equity(acc),
		Balance:    acc.balance.InexactFloat64(),
		Volume:     toVolume(p.Lots),
		Symbol:     p.Symbol,
		Login:      acc.login,
		Server:     v.cfg.ServerName,
		OrderID:    p.OrderID,
		Comment:    p.Comment,
		Profit:     profit.InexactFloat64(),
	}, nil
}

// equity is balance plus the floating profit of open positions. Caller holds mu.
func (v *PaperVenue) equity(acc *account) float64 {
	eq := acc.balance
	for _, p := range acc.positions {
		q := v.quotes[p.Symbol]
		eq = eq.Add(p.profit(q.bid, q.ask, v.symbols[p.Symbol]))
	}
	return eq.InexactFloat64()
}

func (v *PaperVenue) publish(sender core.ISignalSender, signal core.TradeSignal) {
	if sender == nil {
		return
	}
	if err := sender.SendTradeSignal(signal); err != nil {
		v.logger.Warn("Failed to publish trade signal", "order_id", signal.OrderID, "action", signal.ActionType.String(), "error", err)
	}
}

// OpenOrders lists the open positions of login ordered by order id
func (v *PaperVenue) OpenOrders(ctx context.Context, login int32) ([]core.OrderStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	acc, ok := v.accounts[login]
	if !ok {
		return nil, nil
	}
	orders := make([]core.OrderStatus, 0, len(acc.positions))
	for _, p := range acc.positions {
		orders = append(orders, p.status())
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return orders, nil
}

// Close cancels outstanding confirmations. Further submissions fail.
func (v *PaperVenue) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for id, t := range v.timers {
		t.Stop()
		delete(v.timers, id)
	}
}
