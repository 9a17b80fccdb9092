package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// RateStore keeps one exchange rate per destination country.
type RateStore struct {
	db  *sql.DB
	log *zap.Logger
}

// List returns every rate ordered by country.
func (s *RateStore) List(ctx context.Context) ([]pricing.ExchangeRate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT country, currency, rate FROM currency_rates ORDER BY country`)
	if err != nil {
		return nil, fmt.Errorf("query currency rates: %w", err)
	}
	defer rows.Close()

	rates := make([]pricing.ExchangeRate, 0)
	for rows.Next() {
		var r pricing.ExchangeRate
		if err := rows.Scan(&r.Country, &r.Currency, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan currency rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currency rates: %w", err)
	}
	return rates, nil
}

// RatesByCountry returns the rates keyed by country.
func (s *RateStore) RatesByCountry(ctx context.Context) (map[string]pricing.ExchangeRate, error) {
	rates, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]pricing.ExchangeRate, len(rates))
	for _, r := range rates {
		out[r.Country] = r
	}
	return out, nil
}

// Upsert stores the rate for r.Country.
func (s *RateStore) Upsert(ctx context.Context, r pricing.ExchangeRate) (pricing.ExchangeRate, error) {
	r.Country = strings.TrimSpace(r.Country)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	switch {
	case r.Country == "":
		return pricing.ExchangeRate{}, apperr.Input("country is required")
	case r.Currency == "":
		return pricing.ExchangeRate{}, apperr.Input("currency is required")
	case !r.Rate.IsPositive():
		return pricing.ExchangeRate{}, apperr.Input("rate must be greater than 0")
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO currency_rates (country, currency, rate)
		VALUES (?, ?, ?)
		ON CONFLICT(country) DO UPDATE SET
			currency = excluded.currency,
			rate = excluded.rate,
			updated_at = CURRENT_TIMESTAMP
	`, r.Country, r.Currency, r.Rate); err != nil {
		return pricing.ExchangeRate{}, fmt.Errorf("upsert currency rate: %w", err)
	}
	s.log.Info("currency rate saved", zap.String("country", r.Country), zap.String("currency", r.Currency), zap.Stringer("rate", r.Rate))
	return r, nil
}
