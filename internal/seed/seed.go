package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/tradedesk/internal/pricing"
	"github.com/Simplici0/tradedesk/internal/store"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

type defaultCharge struct {
	country  string
	name     string
	costType pricing.CostType
	field    pricing.CostField
	unit     pricing.CostUnit
	value    string
	express  bool
	sameLoc  bool
	group    string
}

var defaultCharges = []defaultCharge{
	{"Dubai", "Express air freight", pricing.CostFixed, pricing.FieldDelivery, pricing.UnitKilogram, "38", true, false, ""},
	{"Dubai", "Local courier", pricing.CostFixed, pricing.FieldDelivery, pricing.UnitPiece, "15", false, true, ""},
	{"Dubai", "Handling", pricing.CostFixed, pricing.FieldProduct, pricing.UnitMOQ, "20", false, false, "handling"},
	{"Dubai", "Inspection", pricing.CostFixed, pricing.FieldProduct, pricing.UnitPiece, "4", false, false, "handling"},
	{"Dubai", "Payment processing", pricing.CostPercentage, pricing.FieldProduct, pricing.UnitNone, "2.5", false, false, ""},
	{"Hongkong", "Express air freight", pricing.CostFixed, pricing.FieldDelivery, pricing.UnitKilogram, "30", true, false, ""},
	{"Hongkong", "Local courier", pricing.CostFixed, pricing.FieldDelivery, pricing.UnitPiece, "12", false, true, ""},
	{"Hongkong", "Payment processing", pricing.CostPercentage, pricing.FieldProduct, pricing.UnitNone, "2", false, false, ""},
}

var defaultMargins = []pricing.Margin{
	{Kind: pricing.MarginSellerCategory, Key: "standard", Name: "Standard seller", Type: pricing.MarginPercentage, Value: decimal.NewFromInt(8)},
	{Kind: pricing.MarginSellerCategory, Key: "premium", Name: "Premium seller", Type: pricing.MarginPercentage, Value: decimal.NewFromInt(5)},
}

var defaultRates = []pricing.ExchangeRate{
	{Country: "Hongkong", Currency: "HKD", Rate: decimal.NewFromInt(1)},
	{Country: "Dubai", Currency: "AED", Rate: decimal.RequireFromString("0.47")},
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}
	steps := []func(context.Context, *sql.Tx, *Stats) error{
		func(ctx context.Context, tx *sql.Tx, stats *Stats) error {
			return seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, stats)
		},
		ensureCharges,
		ensureMargins,
		ensureRates,
	}
	for _, step := range steps {
		if err := step(ctx, tx, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(ctx context.Context, tx *sql.Tx, email, password string, stats *Stats) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		stats.Skipped++
		return nil
	}

	hash, err := store.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, hash); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureCharges(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, c := range defaultCharges {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM charges WHERE country = ? AND name = ? LIMIT 1)
		`, c.country, c.name).Scan(&exists); err != nil {
			return fmt.Errorf("check charge %s/%s existence: %w", c.country, c.name, err)
		}
		if exists {
			stats.Skipped++
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO charges (
				country, name, cost_type, cost_field, cost_unit, value,
				group_id, is_express_delivery, is_same_location_charge, active
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
		`, c.country, c.name, c.costType, c.field, c.unit, c.value, c.group, c.express, c.sameLoc); err != nil {
			return fmt.Errorf("insert charge %s/%s: %w", c.country, c.name, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureMargins(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, m := range defaultMargins {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM margins WHERE kind = ? AND margin_key = ? AND country = ? LIMIT 1)
		`, m.Kind, m.Key, m.Country).Scan(&exists); err != nil {
			return fmt.Errorf("check margin %s/%s existence: %w", m.Kind, m.Key, err)
		}
		if exists {
			stats.Skipped++
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO margins (kind, margin_key, name, country, margin_type, value)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.Kind, m.Key, m.Name, m.Country, m.Type, m.Value); err != nil {
			return fmt.Errorf("insert margin %s/%s: %w", m.Kind, m.Key, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureRates(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	for _, r := range defaultRates {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO currency_rates (country, currency, rate)
			VALUES (?, ?, ?)
			ON CONFLICT(country) DO NOTHING
		`, r.Country, r.Currency, r.Rate)
		if err != nil {
			return fmt.Errorf("insert currency rate for %s: %w", r.Country, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("read affected rows for %s rate: %w", r.Country, err)
		}
		if affected == 0 {
			stats.Skipped++
			continue
		}
		stats.Inserts++
	}
	return nil
}
