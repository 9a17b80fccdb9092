package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// Charge is a catalog row.
type Charge struct {
	pricing.ChargeDefinition
	Active bool `json:"active"`
}

// ChargeStore reads and writes the charge catalog.
type ChargeStore struct {
	db  *sql.DB
	log *zap.Logger
}

var hundred = decimal.NewFromInt(100)

// ValidateCharge checks a charge before it is written.
func ValidateCharge(c pricing.ChargeDefinition) error {
	switch {
	case strings.TrimSpace(c.Country) == "":
		return apperr.Input("country is required")
	case strings.TrimSpace(c.Name) == "":
		return apperr.Input("name is required")
	}

	switch c.CostType {
	case pricing.CostPercentage, pricing.CostFixed:
	default:
		return apperr.Newf(apperr.TypeInput, "cost type must be Percentage or Fixed, got %q", c.CostType)
	}
	switch c.CostField {
	case pricing.FieldProduct, pricing.FieldDelivery:
	default:
		return apperr.Newf(apperr.TypeInput, "cost field must be product or delivery, got %q", c.CostField)
	}
	switch c.CostUnit {
	case pricing.UnitNone, pricing.UnitPiece, pricing.UnitKilogram, pricing.UnitMOQ,
		pricing.UnitOrderAmount, pricing.UnitCartQuantity:
	default:
		return apperr.Newf(apperr.TypeInput, "unknown cost unit %q", c.CostUnit)
	}

	if c.Value.IsNegative() {
		return apperr.Input("value must be greater than or equal to 0")
	}
	if c.CostType == pricing.CostPercentage && c.Value.GreaterThan(hundred) {
		return apperr.Input("percentage value must be between 0 and 100")
	}
	if c.MinValue != nil && c.MaxValue != nil && c.MinValue.GreaterThan(*c.MaxValue) {
		return apperr.Input("min value must not exceed max value")
	}
	if c.IsExpressDelivery && c.IsSameLocationCharge {
		return apperr.Input("a charge cannot be both express and same-location")
	}
	if c.IsExpressDelivery && c.GroupID != "" {
		return apperr.Input("express charges cannot belong to a group")
	}
	return nil
}

const chargeColumns = `
	id, country, name, cost_type, cost_field, cost_unit, value, min_value, max_value,
	group_id, is_express_delivery, is_same_location_charge, active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharge(row rowScanner) (Charge, error) {
	var (
		c          Charge
		minV, maxV decimal.NullDecimal
	)
	if err := row.Scan(
		&c.ID, &c.Country, &c.Name, &c.CostType, &c.CostField, &c.CostUnit, &c.Value, &minV, &maxV,
		&c.GroupID, &c.IsExpressDelivery, &c.IsSameLocationCharge, &c.Active,
	); err != nil {
		return Charge{}, err
	}
	c.MinValue = decimalPtr(minV)
	c.MaxValue = decimalPtr(maxV)
	return c, nil
}

// List returns charges ordered by country then id. An empty country lists
// every country.
func (s *ChargeStore) List(ctx context.Context, country string) ([]Charge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chargeColumns+`
		FROM charges
		WHERE (? = '' OR country = ?)
		ORDER BY country, id
	`, country, country)
	if err != nil {
		return nil, fmt.Errorf("query charges: %w", err)
	}
	defer rows.Close()

	charges := make([]Charge, 0)
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charges: %w", err)
	}
	return charges, nil
}

// Get returns one charge.
func (s *ChargeStore) Get(ctx context.Context, id int64) (Charge, error) {
	c, err := scanCharge(s.db.QueryRowContext(ctx, `SELECT `+chargeColumns+` FROM charges WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Charge{}, apperr.NotFound("charge", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return Charge{}, fmt.Errorf("query charge: %w", err)
	}
	return c, nil
}

// Create validates and inserts a charge.
func (s *ChargeStore) Create(ctx context.Context, c Charge) (Charge, error) {
	if err := ValidateCharge(c.ChargeDefinition); err != nil {
		return Charge{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO charges (
			country, name, cost_type, cost_field, cost_unit, value, min_value, max_value,
			group_id, is_express_delivery, is_same_location_charge, active
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(c.Country), strings.TrimSpace(c.Name), c.CostType, c.CostField, c.CostUnit,
		c.Value, nullDecimal(c.MinValue), nullDecimal(c.MaxValue),
		c.GroupID, c.IsExpressDelivery, c.IsSameLocationCharge, c.Active)
	if err != nil {
		return Charge{}, fmt.Errorf("insert charge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Charge{}, fmt.Errorf("read charge id: %w", err)
	}
	s.log.Info("charge created", zap.Int64("id", id), zap.String("country", c.Country), zap.String("name", c.Name))
	return s.Get(ctx, id)
}

// Update validates and overwrites a charge.
func (s *ChargeStore) Update(ctx context.Context, id int64, c Charge) (Charge, error) {
	if err := ValidateCharge(c.ChargeDefinition); err != nil {
		return Charge{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE charges
		SET
			country = ?,
			name = ?,
			cost_type = ?,
			cost_field = ?,
			cost_unit = ?,
			value = ?,
			min_value = ?,
			max_value = ?,
			group_id = ?,
			is_express_delivery = ?,
			is_same_location_charge = ?,
			active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, strings.TrimSpace(c.Country), strings.TrimSpace(c.Name), c.CostType, c.CostField, c.CostUnit,
		c.Value, nullDecimal(c.MinValue), nullDecimal(c.MaxValue),
		c.GroupID, c.IsExpressDelivery, c.IsSameLocationCharge, c.Active, id)
	if err != nil {
		return Charge{}, fmt.Errorf("update charge: %w", err)
	}
	if err := checkAffected(result, "charge"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Charge{}, apperr.NotFound("charge", strconv.FormatInt(id, 10))
		}
		return Charge{}, err
	}
	return s.Get(ctx, id)
}

// ChargesByCountry returns the active catalog grouped by country.
func (s *ChargeStore) ChargesByCountry(ctx context.Context) (pricing.Catalog, error) {
	charges, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	catalog := make(pricing.Catalog)
	for _, c := range charges {
		if !c.Active {
			continue
		}
		catalog[c.Country] = append(catalog[c.Country], c.ChargeDefinition)
	}
	return catalog, nil
}
