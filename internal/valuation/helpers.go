package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/domain"
)

// NormalizedYield converts a unit price into a weighted revenue per hectare.
func NormalizedYield(price, unitsPerHectare, weight decimal.Decimal) decimal.Decimal {
	return price.Mul(unitsPerHectare).Mul(weight)
}

// ConvertToBRL converts an amount quoted in a foreign currency using a BRL-per-unit rate.
func ConvertToBRL(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// ConvertFromBRL converts a BRL amount into a foreign currency. A zero rate yields zero.
func ConvertFromBRL(amount, rate decimal.Decimal) decimal.Decimal {
	return domain.SafeDivide(amount, rate)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
