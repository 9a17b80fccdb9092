package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// MarginStore reads and writes the margin table.
type MarginStore struct {
	db  *sql.DB
	log *zap.Logger
}

// ValidateMargin checks a margin before it is written.
func ValidateMargin(m pricing.Margin) error {
	switch m.Kind {
	case pricing.MarginBrand, pricing.MarginProductCategory, pricing.MarginConditionCategory,
		pricing.MarginSellerCategory, pricing.MarginCustomerCategory:
	default:
		return apperr.Newf(apperr.TypeInput, "unknown margin kind %q", m.Kind)
	}
	if strings.TrimSpace(m.Key) == "" {
		return apperr.Input("key is required")
	}
	switch m.Type {
	case pricing.MarginPercentage:
		if m.Value.Abs().GreaterThan(hundred) {
			return apperr.Input("percentage margin must be between -100 and 100")
		}
	case pricing.MarginFixed:
	default:
		return apperr.Newf(apperr.TypeInput, "margin type must be percentage or fixed, got %q", m.Type)
	}
	return nil
}

const marginColumns = `id, kind, margin_key, name, country, margin_type, value`

func scanMargin(row rowScanner) (pricing.Margin, error) {
	var m pricing.Margin
	err := row.Scan(&m.ID, &m.Kind, &m.Key, &m.Name, &m.Country, &m.Type, &m.Value)
	return m, err
}

// ListMargins returns every margin ordered by kind and key.
func (s *MarginStore) ListMargins(ctx context.Context) ([]pricing.Margin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+marginColumns+`
		FROM margins
		ORDER BY kind, margin_key, country
	`)
	if err != nil {
		return nil, fmt.Errorf("query margins: %w", err)
	}
	defer rows.Close()

	margins := make([]pricing.Margin, 0)
	for rows.Next() {
		m, err := scanMargin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan margin: %w", err)
		}
		margins = append(margins, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate margins: %w", err)
	}
	return margins, nil
}

// Table loads the margins into a lookup table for the engine.
func (s *MarginStore) Table(ctx context.Context) (pricing.MarginTable, error) {
	margins, err := s.ListMargins(ctx)
	if err != nil {
		return pricing.MarginTable{}, err
	}
	return pricing.NewMarginTable(margins), nil
}

// Get returns one margin.
func (s *MarginStore) Get(ctx context.Context, id int64) (pricing.Margin, error) {
	m, err := scanMargin(s.db.QueryRowContext(ctx, `SELECT `+marginColumns+` FROM margins WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Margin{}, apperr.NotFound("margin", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return pricing.Margin{}, fmt.Errorf("query margin: %w", err)
	}
	return m, nil
}

// Create validates and inserts a margin. A second margin for the same kind,
// key and country is a conflict.
func (s *MarginStore) Create(ctx context.Context, m pricing.Margin) (pricing.Margin, error) {
	if err := ValidateMargin(m); err != nil {
		return pricing.Margin{}, err
	}
	if err := s.ensureUnique(ctx, 0, m); err != nil {
		return pricing.Margin{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO margins (kind, margin_key, name, country, margin_type, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.Kind, strings.TrimSpace(m.Key), strings.TrimSpace(m.Name), strings.TrimSpace(m.Country), m.Type, m.Value)
	if err != nil {
		return pricing.Margin{}, fmt.Errorf("insert margin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return pricing.Margin{}, fmt.Errorf("read margin id: %w", err)
	}
	s.log.Info("margin created", zap.Int64("id", id), zap.String("kind", string(m.Kind)), zap.String("key", m.Key))
	return s.Get(ctx, id)
}

// Update validates and overwrites a margin.
func (s *MarginStore) Update(ctx context.Context, id int64, m pricing.Margin) (pricing.Margin, error) {
	if err := ValidateMargin(m); err != nil {
		return pricing.Margin{}, err
	}
	if err := s.ensureUnique(ctx, id, m); err != nil {
		return pricing.Margin{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE margins
		SET
			kind = ?,
			margin_key = ?,
			name = ?,
			country = ?,
			margin_type = ?,
			value = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, m.Kind, strings.TrimSpace(m.Key), strings.TrimSpace(m.Name), strings.TrimSpace(m.Country), m.Type, m.Value, id)
	if err != nil {
		return pricing.Margin{}, fmt.Errorf("update margin: %w", err)
	}
	if err := checkAffected(result, "margin"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pricing.Margin{}, apperr.NotFound("margin", strconv.FormatInt(id, 10))
		}
		return pricing.Margin{}, err
	}
	return s.Get(ctx, id)
}

func (s *MarginStore) ensureUnique(ctx context.Context, id int64, m pricing.Margin) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM margins
			WHERE kind = ? AND margin_key = ? AND country = ? AND id <> ?
		)
	`, m.Kind, strings.TrimSpace(m.Key), strings.TrimSpace(m.Country), id).Scan(&exists); err != nil {
		return fmt.Errorf("check margin uniqueness: %w", err)
	}
	if exists {
		return apperr.Newf(apperr.TypeConflict, "a %s margin for %q already exists", m.Kind, m.Key)
	}
	return nil
}
