package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// HongKongCode is the origin code of the Hongkong warehouse.
	HongKongCode = "HK"
	// DubaiCode is the origin code used for every other destination.
	DubaiCode = "D"
)

// CountryCode maps a destination country name to the origin code listings use.
func CountryCode(country string) string {
	name := strings.ReplaceAll(strings.TrimSpace(country), " ", "")
	if strings.EqualFold(name, "Hongkong") {
		return HongKongCode
	}
	return DubaiCode
}

// LocationSet is a normalized set of location codes.
type LocationSet []string

// Contains reports whether code is in the set.
func (s LocationSet) Contains(code string) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// ParseLocationSet normalizes a delivery location that may arrive as a list,
// a JSON-encoded list, a bare code or nothing at all. It never fails: input it
// cannot decode becomes a one-element set holding the raw value.
func ParseLocationSet(raw any) LocationSet {
	switch v := raw.(type) {
	case nil:
		return LocationSet{}
	case LocationSet:
		return normalizeCodes([]string(v))
	case []string:
		return normalizeCodes(v)
	case []any:
		codes := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			codes = append(codes, fmt.Sprint(item))
		}
		return normalizeCodes(codes)
	case []byte:
		return parseLocationString(string(v))
	case json.RawMessage:
		return parseLocationString(string(v))
	case string:
		return parseLocationString(v)
	default:
		return normalizeCodes([]string{fmt.Sprint(v)})
	}
}

func parseLocationString(s string) LocationSet {
	s = strings.TrimSpace(s)
	if s == "" {
		return LocationSet{}
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return normalizeCodes([]string{s})
	}
	switch d := decoded.(type) {
	case nil:
		return LocationSet{}
	case []any:
		return ParseLocationSet(d)
	case string:
		return parseLocationString(d)
	default:
		return normalizeCodes([]string{s})
	}
}

// UnmarshalJSON accepts every shape ParseLocationSet does, including a
// JSON-encoded list inside a string.
func (s *LocationSet) UnmarshalJSON(data []byte) error {
	*s = ParseLocationSet(json.RawMessage(data))
	return nil
}

func normalizeCodes(in []string) LocationSet {
	out := make(LocationSet, 0, len(in))
	for _, code := range in {
		code = NormalizeLocationCode(code)
		if code == "" || out.Contains(code) {
			continue
		}
		out = append(out, code)
	}
	return out
}

// NormalizeLocationCode trims and upper-cases a location code.
func NormalizeLocationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ProductSnapshot is the part of a listing the engine prices.
type ProductSnapshot struct {
	SKU              string           `json:"sku,omitempty"`
	BasePrice        decimal.Decimal  `json:"basePrice"`
	Weight           *decimal.Decimal `json:"weight,omitempty"`
	MOQ              int              `json:"moq"`
	CurrentLocation  string           `json:"currentLocation"`
	DeliveryLocation LocationSet      `json:"deliveryLocation"`

	Brand           string `json:"brand,omitempty"`
	ProductCategory string `json:"productCategory,omitempty"`
	Condition       string `json:"condition,omitempty"`
	SellerCategory  string `json:"sellerCategory,omitempty"`
}

// WeightOrZero returns the product weight, zero when absent.
func (p ProductSnapshot) WeightOrZero() decimal.Decimal {
	if p.Weight == nil {
		return decimal.Zero
	}
	return *p.Weight
}

// shipsWithin reports whether the product both sits at and delivers to code.
func (p ProductSnapshot) shipsWithin(code string) bool {
	return NormalizeLocationCode(p.CurrentLocation) == code && p.DeliveryLocation.Contains(code)
}
