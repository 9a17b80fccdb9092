package store

import (
	"context"
	"strings"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// QuoteRequest asks for the prices of one product.
type QuoteRequest struct {
	Product   pricing.ProductSnapshot `json:"product"`
	Countries []string                `json:"countries"`
	Flags     pricing.MarginFlags     `json:"marginFlags"`
	Selection map[string][]int64      `json:"selection"`
}

// Quote prices a product against the stored catalogs. With no countries the
// product is priced for every catalog country.
func (s *Stores) Quote(ctx context.Context, req QuoteRequest) ([]pricing.CountryPrice, error) {
	if !req.Product.BasePrice.IsPositive() {
		return nil, apperr.Input("base price must be greater than 0")
	}
	if req.Product.MOQ < 0 {
		return nil, apperr.Input("moq must not be negative")
	}
	if req.Product.Weight != nil && req.Product.Weight.IsNegative() {
		return nil, apperr.Input("weight must not be negative")
	}

	catalog, err := s.Charges.ChargesByCountry(ctx)
	if err != nil {
		return nil, err
	}
	table, err := s.Margins.Table(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := s.Rates.RatesByCountry(ctx)
	if err != nil {
		return nil, err
	}

	countries := append([]string(nil), req.Countries...)
	if len(countries) == 0 {
		countries = catalog.Countries()
	}
	for i, country := range countries {
		country = strings.TrimSpace(country)
		if country == "" {
			return nil, apperr.Input("country names must not be empty")
		}
		countries[i], _ = catalog.Resolve(country)
	}

	ids := make(map[string][]int64, len(req.Selection))
	for country, list := range req.Selection {
		name, _ := catalog.Resolve(country)
		ids[name] = append(ids[name], list...)
	}
	selection := pricing.SelectionFromIDs(ids)
	for country := range selection {
		for _, id := range selection.IDs(country) {
			if _, ok := catalog.Find(country, id); !ok {
				return nil, apperr.Newf(apperr.TypeInput, "charge %d is not an active %s charge", id, country)
			}
		}
	}

	if req.Product.MOQ == 0 {
		req.Product.MOQ = 1
	}
	req.Product.DeliveryLocation = pricing.ParseLocationSet(req.Product.DeliveryLocation)
	req.Product.CurrentLocation = pricing.NormalizeLocationCode(req.Product.CurrentLocation)

	return pricing.Quote(pricing.QuoteInput{
		Product:     req.Product,
		Countries:   countries,
		Flags:       req.Flags,
		Selection:   selection,
		Catalog:     catalog,
		Margins:     table,
		Rates:       rates,
		BaseCountry: s.BaseCountry,
	}), nil
}
