package pricing

import "github.com/samber/lo"

// IsApplicable reports whether a charge may be applied to product when it is
// sold into country. Express delivery applies when origin and destination
// differ, same-location charges when they match; every other charge always
// applies.
func IsApplicable(charge ChargeDefinition, product ProductSnapshot, country string) bool {
	code := CountryCode(country)
	switch {
	case charge.IsExpressDelivery:
		return !product.shipsWithin(code)
	case charge.IsSameLocationCharge:
		return product.shipsWithin(code)
	default:
		return true
	}
}

func isConditional(charge ChargeDefinition) bool {
	return charge.IsExpressDelivery || charge.IsSameLocationCharge
}

// EligibleCharges returns the charges a user may pick for country given the
// whole batch: a conditional charge is eligible when any product in the batch
// satisfies it.
func EligibleCharges(charges []ChargeDefinition, products []ProductSnapshot, country string) []ChargeDefinition {
	return lo.Filter(charges, func(charge ChargeDefinition, _ int) bool {
		if !isConditional(charge) {
			return true
		}
		return lo.SomeBy(products, func(p ProductSnapshot) bool {
			return IsApplicable(charge, p, country)
		})
	})
}
