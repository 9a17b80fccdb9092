package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CostType says how a charge's value is applied.
type CostType string

const (
	CostPercentage CostType = "Percentage"
	CostFixed      CostType = "Fixed"
)

// CostField says which part of the listing a charge prices.
type CostField string

const (
	FieldProduct  CostField = "product"
	FieldDelivery CostField = "delivery"
)

// CostUnit qualifies a fixed charge.
type CostUnit string

const (
	UnitNone         CostUnit = ""
	UnitPiece        CostUnit = "pc"
	UnitKilogram     CostUnit = "kg"
	UnitMOQ          CostUnit = "moq"
	UnitOrderAmount  CostUnit = "orderAmount"
	UnitCartQuantity CostUnit = "cartQuantity"
)

// ChargeDefinition is a named cost module from the charge catalog.
type ChargeDefinition struct {
	ID                   int64            `json:"id"`
	Country              string           `json:"country"`
	Name                 string           `json:"name"`
	CostType             CostType         `json:"costType"`
	CostField            CostField        `json:"costField"`
	CostUnit             CostUnit         `json:"costUnit,omitempty"`
	Value                decimal.Decimal  `json:"value"`
	MinValue             *decimal.Decimal `json:"minValue,omitempty"`
	MaxValue             *decimal.Decimal `json:"maxValue,omitempty"`
	GroupID              string           `json:"groupId,omitempty"`
	IsExpressDelivery    bool             `json:"isExpressDelivery"`
	IsSameLocationCharge bool             `json:"isSameLocationCharge"`
}

// ClampedValue returns Value limited to [MinValue, MaxValue].
func (c ChargeDefinition) ClampedValue() decimal.Decimal {
	v := c.Value
	if c.MinValue != nil && v.LessThan(*c.MinValue) {
		v = *c.MinValue
	}
	if c.MaxValue != nil && v.GreaterThan(*c.MaxValue) {
		v = *c.MaxValue
	}
	return v
}

// Catalog maps a destination country name to its available charges.
type Catalog map[string][]ChargeDefinition

// Countries returns the catalog's country names sorted.
func (c Catalog) Countries() []string {
	out := make([]string, 0, len(c))
	for country := range c {
		out = append(out, country)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the catalog's spelling of country. An exact match wins;
// otherwise names are compared case-insensitively.
func (c Catalog) Resolve(country string) (string, bool) {
	country = strings.TrimSpace(country)
	if _, ok := c[country]; ok {
		return country, true
	}
	for name := range c {
		if strings.EqualFold(name, country) {
			return name, true
		}
	}
	return country, false
}

// Find returns the charge with the given id in a country's slice.
func (c Catalog) Find(country string, id int64) (ChargeDefinition, bool) {
	for _, charge := range c[country] {
		if charge.ID == id {
			return charge, true
		}
	}
	return ChargeDefinition{}, false
}
