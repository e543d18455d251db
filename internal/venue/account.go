package venue

import (
	"strings"

	"signalbridge/internal/core"
	"signalbridge/pkg/tradingutils"

	"github.com/shopspring/decimal"
)

var (
	lotsPerVolume = decimal.NewFromInt(100)
	volumePerLot  = decimal.New(1, -2)
)

// SymbolConfig describes a tradable symbol and its starting quote
type SymbolConfig struct {
	Bid          float64 `yaml:"bid"`
	Ask          float64 `yaml:"ask"`
	Digits       int32   `yaml:"digits"`
	ContractSize float64 `yaml:"contract_size"`
	LotMin       int64   `yaml:"lot_min"`
	LotStep      int64   `yaml:"lot_step"`
}

func (s SymbolConfig) withDefaults() SymbolConfig {
	if s.Digits == 0 {
		s.Digits = 5
	}
	if s.ContractSize == 0 {
		s.ContractSize = 100000
	}
	if s.LotMin <= 0 {
		s.LotMin = 1
	}
	if s.LotStep <= 0 {
		s.LotStep = 1
	}
	return s
}

// pipValue is the account-currency value of one pip for one full lot
func (s SymbolConfig) pipValue() decimal.Decimal {
	point := decimal.New(1, -s.Digits)
	if s.Digits == 3 || s.Digits == 5 {
		point = point.Mul(decimal.NewFromInt(10))
	}
	return decimal.NewFromFloat(s.ContractSize).Mul(point)
}

// toLots converts a signal volume into venue lots (hundredths of a lot),
// rounded down to the symbol's step. A negative volume is a multiple of the
// account balance. Returns 0 when the result is under the minimum.
func toLots(volume float64, balance decimal.Decimal, sym SymbolConfig) int64 {
	v := decimal.NewFromFloat(volume)
	if v.IsNegative() {
		v = v.Neg().Mul(balance)
	}
	lots := v.Mul(lotsPerVolume).IntPart()
	lots = tradingutils.FloorToStep(lots, sym.LotStep)
	if lots < sym.LotMin {
		return 0
	}
	return lots
}

func toVolume(lots int64) float64 {
	return decimal.NewFromInt(lots).Mul(volumePerLot).InexactFloat64()
}

// commission charged for copying a provider, quoted in pips per lot
func providerCommission(symbol string, lots int64, pips float64, sym SymbolConfig) decimal.Decimal {
	lower := strings.ToLower(symbol)
	if strings.Contains(lower, "bo") || strings.Contains(lower, "bin") {
		return decimal.Zero
	}
	return decimal.NewFromFloat(pips).
		Mul(sym.pipValue()).
		Mul(decimal.NewFromInt(lots).Mul(volumePerLot))
}

type position struct {
	OrderID    int32
	Login      int32
	Side       core.TradeSide
	Symbol     string
	Lots       int64
	OpenPrice  decimal.Decimal
	OpenTime   int64
	Comment    string
	Commission decimal.Decimal
}

// profit of closing p at the given quote: buys close at bid, sells at ask
func (p *position) profit(bid, ask float64, sym SymbolConfig) decimal.Decimal {
	closeAt := ask
	if p.Side == core.Buy {
		closeAt = bid
	}
	diff := tradingutils.PriceDiff(p.OpenPrice, decimal.NewFromFloat(closeAt), p.Side == core.Buy)
	size := decimal.NewFromFloat(sym.ContractSize).Mul(decimal.NewFromInt(p.Lots).Mul(volumePerLot))
	return diff.Mul(size).Round(2)
}

func (p *position) status() core.OrderStatus {
	return core.OrderStatus{
		OrderID:  p.OrderID,
		Side:     p.Side,
		DateTime: p.OpenTime,
		Volume:   toVolume(p.Lots),
		Symbol:   p.Symbol,
		Comment:  p.Comment,
	}
}

type account struct {
	login     int32
	balance   decimal.Decimal
	positions map[int32]*position
}

func newAccount(login int32, balance decimal.Decimal) *account {
	return &account{login: login, balance: balance, positions: make(map[int32]*position)}
}
