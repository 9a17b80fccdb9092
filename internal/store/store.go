// Package store persists the pricing catalogs and committed products in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/logging"
)

// Stores bundles every store over one database handle. BaseCountry is the
// marketplace's own country; quotes for it stay in the base currency.
type Stores struct {
	Charges  *ChargeStore
	Margins  *MarginStore
	Rates    *RateStore
	Products *ProductStore
	Users    *UserStore

	BaseCountry string
}

// New returns all stores backed by db.
func New(db *sql.DB, baseCountry string) *Stores {
	log := logging.Named("store")
	return &Stores{
		Charges:     &ChargeStore{db: db, log: log},
		Margins:     &MarginStore{db: db, log: log},
		Rates:       &RateStore{db: db, log: log},
		Products:    &ProductStore{db: db, log: log},
		Users:       &UserStore{db: db},
		BaseCountry: baseCountry,
	}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func checkAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows for %s: %w", what, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, log *zap.Logger, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
