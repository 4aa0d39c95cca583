package orders

import "github.com/shopspring/decimal"

// RoundTotal rounds half away from zero to 2 places. Totals are positive, so this is half-up.
// It is applied once to the accumulated order total, never per line.
func RoundTotal(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func lineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
