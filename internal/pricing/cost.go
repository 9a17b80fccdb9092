package pricing

import (
	"github.com/shopspring/decimal"
)

// ExchangeRate converts base-currency amounts into a destination's currency.
// Rate is destination units per one base unit.
type ExchangeRate struct {
	Country  string          `json:"country"`
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

// CalculatedCost is a selected charge resolved against one product.
// CalculatedAmount is always in the base currency; LocalAmount is the same
// amount in the destination currency, set only when a rate was supplied.
type CalculatedCost struct {
	Charge           ChargeDefinition `json:"charge"`
	CalculatedAmount decimal.Decimal  `json:"calculatedAmount"`
	LocalAmount      *decimal.Decimal `json:"localAmount,omitempty"`
}

// ResolveCosts prices each selected charge for product. Charges that do not
// apply to this product in country are left out of the result.
func ResolveCosts(product ProductSnapshot, selected []ChargeDefinition, basePrice decimal.Decimal, country string, rate *ExchangeRate) []CalculatedCost {
	out := make([]CalculatedCost, 0, len(selected))
	for _, charge := range selected {
		if !IsApplicable(charge, product, country) {
			continue
		}
		amount := ChargeAmount(charge, product, basePrice)
		cost := CalculatedCost{Charge: charge, CalculatedAmount: amount}
		if rate != nil {
			local := Convert(amount, rate)
			cost.LocalAmount = &local
		}
		out = append(out, cost)
	}
	return out
}

// ChargeAmount applies one charge to product, in base currency. Product and
// delivery charges share the same arithmetic.
func ChargeAmount(charge ChargeDefinition, product ProductSnapshot, basePrice decimal.Decimal) decimal.Decimal {
	value := charge.ClampedValue()
	if charge.CostType == CostPercentage {
		return percentOf(basePrice, value)
	}

	switch charge.CostUnit {
	case UnitMOQ:
		moq := product.MOQ
		if moq < 1 {
			moq = 1
		}
		return value.Div(decimal.NewFromInt(int64(moq)))
	case UnitKilogram:
		return value.Mul(product.WeightOrZero())
	default:
		return value
	}
}
