package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int32) decimal.Decimal {
	return price.Round(priceDecimals)
}

// RoundQuote rounds a float quote to the symbol's digits
func RoundQuote(price float64, digits int32) float64 {
	return RoundPrice(decimal.NewFromFloat(price), digits).InexactFloat64()
}

// FloorToStep rounds qty down to a whole multiple of step
func FloorToStep(qty, step int64) int64 {
	if step <= 1 {
		return qty
	}
	return qty - qty%step
}

// PriceDiff is the signed move from open to close for a position of the given
// direction: positive when the position gained.
func PriceDiff(openPrice, closePrice decimal.Decimal, long bool) decimal.Decimal {
	if long {
		return closePrice.Sub(openPrice)
	}
	return openPrice.Sub(closePrice)
}
