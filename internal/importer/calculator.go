package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/logging"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// MarginReader supplies the margin table.
type MarginReader interface {
	ListMargins(ctx context.Context) ([]pricing.Margin, error)
}

// RateReader supplies exchange rates keyed by country.
type RateReader interface {
	RatesByCountry(ctx context.Context) (map[string]pricing.ExchangeRate, error)
}

// LocalCalculator prices a batch in-process against the stores. Prices for
// BaseCountry are left unconverted.
type LocalCalculator struct {
	Catalog     CatalogReader
	Margins     MarginReader
	Rates       RateReader
	BaseCountry string
	Log         *zap.Logger
}

// NewLocalCalculator wires a calculator to its readers.
func NewLocalCalculator(catalog CatalogReader, margins MarginReader, rates RateReader, baseCountry string) *LocalCalculator {
	return &LocalCalculator{
		Catalog:     catalog,
		Margins:     margins,
		Rates:       rates,
		BaseCountry: baseCountry,
		Log:         logging.Named("calculator"),
	}
}

// CalculateBatch validates every row and, when all pass, quotes each row for
// the countries it lists. Country names are matched to the catalog spelling
// without regard to case. Validation failures come back as *RowErrors.
func (c *LocalCalculator) CalculateBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	catalog, err := c.Catalog.ChargesByCountry(ctx)
	if err != nil {
		return BatchResult{}, apperr.Wrap(apperr.TypeInternal, "load charges", err)
	}
	margins, err := c.Margins.ListMargins(ctx)
	if err != nil {
		return BatchResult{}, apperr.Wrap(apperr.TypeInternal, "load margins", err)
	}
	rates, err := c.Rates.RatesByCountry(ctx)
	if err != nil {
		return BatchResult{}, apperr.Wrap(apperr.TypeInternal, "load rates", err)
	}

	rows := make([]ImportRow, len(req.Rows))
	for i, row := range req.Rows {
		rows[i] = row.clone()
	}
	canonicalCountries(rows, catalog)

	var rowErrs []string
	products := make([]pricing.ProductSnapshot, len(rows))
	for i, row := range rows {
		product, problems := RowProduct(row)
		if len(catalog) > 0 {
			for _, country := range row.Countries() {
				if _, ok := catalog.Resolve(country); !ok {
					problems = append(problems, "unknown country "+country)
				}
			}
		}
		for _, p := range problems {
			rowErrs = append(rowErrs, RowError(row.Number, "%s", p))
		}
		products[i] = product
	}
	if len(rowErrs) > 0 {
		if c.Log != nil {
			c.Log.Debug("batch rejected", zap.Int("errors", len(rowErrs)))
		}
		return BatchResult{}, &RowErrors{Errors: rowErrs}
	}

	table := pricing.NewMarginTable(margins)
	selection := pricing.SelectionFromIDs(canonicalSelection(req.Selection, catalog))

	result := BatchResult{Rows: make([]CalculatedRow, 0, len(rows))}
	for i, row := range rows {
		prices := pricing.Quote(pricing.QuoteInput{
			Product:     products[i],
			Countries:   row.Countries(),
			Flags:       req.Flags,
			Selection:   selection,
			Catalog:     catalog,
			Margins:     table,
			Rates:       rates,
			BaseCountry: c.BaseCountry,
		})
		result.Rows = append(result.Rows, CalculatedRow{
			Row:     row,
			Product: products[i],
			Prices:  prices,
		})
	}
	return result, nil
}

func canonicalSelection(ids map[string][]int64, catalog pricing.Catalog) map[string][]int64 {
	out := make(map[string][]int64, len(ids))
	for country, list := range ids {
		name, _ := catalog.Resolve(country)
		out[name] = append(out[name], list...)
	}
	return out
}
