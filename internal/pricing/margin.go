package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MarginKind names the categorical source of a margin.
type MarginKind string

const (
	MarginBrand             MarginKind = "brand"
	MarginProductCategory   MarginKind = "productCategory"
	MarginConditionCategory MarginKind = "conditionCategory"
	MarginSellerCategory    MarginKind = "sellerCategory"
	MarginCustomerCategory  MarginKind = "customerCategory"
)

// MarginType says how a margin value is applied.
type MarginType string

const (
	MarginPercentage MarginType = "percentage"
	MarginFixed      MarginType = "fixed"
)

// MarginFlags selects which categorical margins apply to a batch.
type MarginFlags struct {
	Brand             bool `json:"brand"`
	ProductCategory   bool `json:"productCategory"`
	ConditionCategory bool `json:"conditionCategory"`
	SellerCategory    bool `json:"sellerCategory"`
	CustomerCategory  bool `json:"customerCategory"`
}

// Margin is a named markup attached to one categorical key.
type Margin struct {
	ID      int64           `json:"id"`
	Kind    MarginKind      `json:"kind"`
	Key     string          `json:"key"`
	Name    string          `json:"name"`
	Country string          `json:"country,omitempty"`
	Type    MarginType      `json:"marginType"`
	Value   decimal.Decimal `json:"value"`
}

// CalculatedMargin is a margin resolved against one product and country.
type CalculatedMargin struct {
	Margin           Margin          `json:"margin"`
	CalculatedAmount decimal.Decimal `json:"calculatedAmount"`
}

// MarginSource looks up the margin configured for a categorical key.
type MarginSource interface {
	LookupMargin(kind MarginKind, key, country string) (Margin, bool)
}

// MarginTable is an in-memory MarginSource. Country-specific entries win
// over entries with an empty country.
type MarginTable struct {
	entries map[marginKey]Margin
}

type marginKey struct {
	kind    MarginKind
	key     string
	country string
}

// NewMarginTable indexes margins for lookup.
func NewMarginTable(margins []Margin) MarginTable {
	t := MarginTable{entries: make(map[marginKey]Margin, len(margins))}
	for _, m := range margins {
		t.entries[marginKey{kind: m.Kind, key: m.Key, country: foldCountry(m.Country)}] = m
	}
	return t
}

// LookupMargin implements MarginSource.
func (t MarginTable) LookupMargin(kind MarginKind, key, country string) (Margin, bool) {
	if m, ok := t.entries[marginKey{kind: kind, key: key, country: foldCountry(country)}]; ok {
		return m, true
	}
	m, ok := t.entries[marginKey{kind: kind, key: key}]
	return m, ok
}

func foldCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}

// ResolveMargins returns the margins that apply to product in country.
//
// The seller-category flag gates the whole stack: when it is off nothing is
// returned. Customer-category margins apply at order time and are never
// resolved here.
func ResolveMargins(product ProductSnapshot, flags MarginFlags, basePrice decimal.Decimal, country string, source MarginSource) []CalculatedMargin {
	out := make([]CalculatedMargin, 0, 4)
	if !flags.SellerCategory || source == nil {
		return out
	}

	wanted := []struct {
		enabled bool
		kind    MarginKind
		key     string
	}{
		{flags.Brand, MarginBrand, product.Brand},
		{flags.ProductCategory, MarginProductCategory, product.ProductCategory},
		{flags.ConditionCategory, MarginConditionCategory, product.Condition},
		{flags.SellerCategory, MarginSellerCategory, product.SellerCategory},
	}
	for _, w := range wanted {
		if !w.enabled || w.key == "" {
			continue
		}
		m, ok := source.LookupMargin(w.kind, w.key, country)
		if !ok {
			continue
		}
		out = append(out, CalculatedMargin{Margin: m, CalculatedAmount: marginAmount(m, basePrice)})
	}
	return out
}

func marginAmount(m Margin, basePrice decimal.Decimal) decimal.Decimal {
	if m.Type == MarginPercentage {
		return percentOf(basePrice, m.Value)
	}
	return m.Value
}

var hundred = decimal.NewFromInt(100)

func percentOf(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}
