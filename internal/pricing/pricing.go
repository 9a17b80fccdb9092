// Package pricing turns a product listing into per-country sell prices by
// stacking categorical margins and catalog charges on top of a base price.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Compose returns basePrice plus every margin and cost amount. No rounding or
// clamping happens here.
func Compose(basePrice decimal.Decimal, margins []CalculatedMargin, costs []CalculatedCost) decimal.Decimal {
	total := basePrice
	for _, m := range margins {
		total = total.Add(m.CalculatedAmount)
	}
	for _, c := range costs {
		total = total.Add(c.CalculatedAmount)
	}
	return total
}

// Convert rescales a base-currency amount with rate. A nil or zero rate
// leaves the amount unchanged.
func Convert(amount decimal.Decimal, rate *ExchangeRate) decimal.Decimal {
	if rate == nil || rate.Rate.IsZero() {
		return amount
	}
	return amount.Mul(rate.Rate)
}

// Breakdown contains the line items of one country's price.
type Breakdown struct {
	Margins     []CalculatedMargin `json:"margins"`
	Costs       []CalculatedCost   `json:"costs"`
	MarginTotal decimal.Decimal    `json:"marginTotal"`
	CostTotal   decimal.Decimal    `json:"costTotal"`
}

// CountryPrice is the calculated deliverable of a product for one country.
type CountryPrice struct {
	Country        string           `json:"country"`
	CountryCode    string           `json:"countryCode"`
	BasePrice      decimal.Decimal  `json:"basePrice"`
	Breakdown      Breakdown        `json:"breakdown"`
	FinalPrice     decimal.Decimal  `json:"finalPrice"`
	Currency       string           `json:"currency,omitempty"`
	ConvertedPrice *decimal.Decimal `json:"convertedPrice,omitempty"`
}

// QuoteInput groups everything needed to price a product across countries.
// Prices for BaseCountry are never converted, even when a rate exists for it.
type QuoteInput struct {
	Product     ProductSnapshot
	Countries   []string
	Flags       MarginFlags
	Selection   Selection
	Catalog     Catalog
	Margins     MarginSource
	Rates       map[string]ExchangeRate
	BaseCountry string
}

// Quote prices in.Product for every country in in.Countries.
func Quote(in QuoteInput) []CountryPrice {
	prices := make([]CountryPrice, 0, len(in.Countries))
	for _, country := range in.Countries {
		prices = append(prices, quoteCountry(in, country))
	}
	return prices
}

// rateFor returns the exchange rate for country, nil for the base country or
// when no rate is known.
func (in QuoteInput) rateFor(country string) *ExchangeRate {
	if in.BaseCountry != "" && strings.EqualFold(strings.TrimSpace(country), strings.TrimSpace(in.BaseCountry)) {
		return nil
	}
	if r, ok := in.Rates[country]; ok {
		return &r
	}
	for name, r := range in.Rates {
		if strings.EqualFold(name, country) {
			return &r
		}
	}
	return nil
}

func quoteCountry(in QuoteInput, country string) CountryPrice {
	if name, ok := in.Catalog.Resolve(country); ok {
		country = name
	}
	base := in.Product.BasePrice
	rate := in.rateFor(country)

	margins := ResolveMargins(in.Product, in.Flags, base, country, in.Margins)
	costs := ResolveCosts(in.Product, in.Selection.Charges(country, in.Catalog), base, country, rate)

	final := Compose(base, margins, costs)
	price := CountryPrice{
		Country:     country,
		CountryCode: CountryCode(country),
		BasePrice:   base,
		Breakdown: Breakdown{
			Margins:     margins,
			Costs:       costs,
			MarginTotal: Compose(decimal.Zero, margins, nil),
			CostTotal:   Compose(decimal.Zero, nil, costs),
		},
		FinalPrice: final,
	}
	if rate != nil {
		converted := Convert(final, rate)
		price.Currency = rate.Currency
		price.ConvertedPrice = &converted
	}
	return price
}
