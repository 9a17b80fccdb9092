package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

// Product is a committed listing.
type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	pricing.ProductSnapshot
	SourceFile string        `json:"sourceFile,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	Prices     []StoredPrice `json:"prices,omitempty"`
}

// StoredPrice is a persisted per-country deliverable.
type StoredPrice struct {
	Country        string            `json:"country"`
	CountryCode    string            `json:"countryCode"`
	FinalPrice     decimal.Decimal   `json:"finalPrice"`
	Currency       string            `json:"currency,omitempty"`
	ConvertedPrice *decimal.Decimal  `json:"convertedPrice,omitempty"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ProductStore reads and writes committed products.
type ProductStore struct {
	db  *sql.DB
	log *zap.Logger
}

const productColumns = `
	id, sku, name, brand, category, condition_category, seller_category, base_price, weight, moq,
	current_location, delivery_location, source_file, created_at, updated_at`

func scanProduct(row rowScanner) (Product, error) {
	var (
		p        Product
		weight   decimal.NullDecimal
		delivery string
	)
	if err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Brand, &p.ProductCategory, &p.Condition, &p.SellerCategory,
		&p.BasePrice, &weight, &p.MOQ, &p.CurrentLocation, &delivery, &p.SourceFile,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return Product{}, err
	}
	p.Weight = decimalPtr(weight)
	p.DeliveryLocation = pricing.ParseLocationSet(delivery)
	return p, nil
}

// List returns products whose sku or name contains query, newest first.
func (s *ProductStore) List(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (? = '' OR sku LIKE ? OR name LIKE ?)
		ORDER BY datetime(updated_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Get returns a product with its stored prices.
func (s *ProductStore) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, apperr.NotFound("product", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return Product{}, fmt.Errorf("query product: %w", err)
	}

	p.Prices, err = s.prices(ctx, id)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *ProductStore) prices(ctx context.Context, productID int64) ([]StoredPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT country, country_code, final_price, currency, converted_price, breakdown, updated_at
		FROM product_prices
		WHERE product_id = ?
		ORDER BY country
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product prices: %w", err)
	}
	defer rows.Close()

	prices := make([]StoredPrice, 0)
	for rows.Next() {
		var (
			sp        StoredPrice
			converted decimal.NullDecimal
			breakdown string
		)
		if err := rows.Scan(&sp.Country, &sp.CountryCode, &sp.FinalPrice, &sp.Currency, &converted, &breakdown, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		sp.ConvertedPrice = decimalPtr(converted)
		if err := json.Unmarshal([]byte(breakdown), &sp.Breakdown); err != nil {
			return nil, fmt.Errorf("decode price breakdown for %s: %w", sp.Country, err)
		}
		prices = append(prices, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product prices: %w", err)
	}
	return prices, nil
}

// ReplacePrices overwrites the stored prices of one product.
func (s *ProductStore) ReplacePrices(ctx context.Context, productID int64, prices []pricing.CountryPrice) error {
	return withTx(ctx, s.db, s.log, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID).Scan(&exists); err != nil {
			return fmt.Errorf("check product existence: %w", err)
		}
		if !exists {
			return apperr.NotFound("product", strconv.FormatInt(productID, 10))
		}
		return writePrices(ctx, tx, productID, prices)
	})
}

// CommitBatch stores a calculated import batch in one transaction. Products
// are upserted by sku. A sku repeated inside the batch rejects the whole batch
// with row errors.
func (s *ProductStore) CommitBatch(ctx context.Context, filePath string, rows []importer.CalculatedRow) error {
	if len(rows) == 0 {
		return apperr.Input("nothing to commit")
	}

	seen := make(map[string]int, len(rows))
	var dupes []string
	for _, row := range rows {
		sku := strings.TrimSpace(row.Product.SKU)
		if first, ok := seen[sku]; ok {
			dupes = append(dupes, importer.RowError(row.Row.Number, "sku %s is already used by row %d", sku, first))
			continue
		}
		seen[sku] = row.Row.Number
	}
	if len(dupes) > 0 {
		return &importer.RowErrors{Errors: dupes}
	}

	err := withTx(ctx, s.db, s.log, func(tx *sql.Tx) error {
		for _, row := range rows {
			id, err := upsertProduct(ctx, tx, row, filePath)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Row.Number, err)
			}
			if err := writePrices(ctx, tx, id, row.Prices); err != nil {
				return fmt.Errorf("row %d: %w", row.Row.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("import committed", zap.String("file", filePath), zap.Int("products", len(rows)))
	return nil
}

func upsertProduct(ctx context.Context, tx *sql.Tx, row importer.CalculatedRow, filePath string) (int64, error) {
	p := row.Product
	delivery, err := json.Marshal(pricing.ParseLocationSet(p.DeliveryLocation))
	if err != nil {
		return 0, fmt.Errorf("encode delivery locations: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO products (
			sku, name, brand, category, condition_category, seller_category, base_price, weight, moq,
			current_location, delivery_location, source_file
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			category = excluded.category,
			condition_category = excluded.condition_category,
			seller_category = excluded.seller_category,
			base_price = excluded.base_price,
			weight = excluded.weight,
			moq = excluded.moq,
			current_location = excluded.current_location,
			delivery_location = excluded.delivery_location,
			source_file = excluded.source_file,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, p.SKU, row.Row.Field(importer.ColName), p.Brand, p.ProductCategory, p.Condition, p.SellerCategory,
		p.BasePrice, nullDecimal(p.Weight), p.MOQ, p.CurrentLocation, string(delivery), filePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert product %s: %w", p.SKU, err)
	}
	return id, nil
}

func writePrices(ctx context.Context, tx *sql.Tx, productID int64, prices []pricing.CountryPrice) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_prices WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("clear product prices: %w", err)
	}
	for _, cp := range prices {
		breakdown, err := json.Marshal(cp.Breakdown)
		if err != nil {
			return fmt.Errorf("encode price breakdown for %s: %w", cp.Country, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO product_prices (product_id, country, country_code, final_price, currency, converted_price, breakdown)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, productID, cp.Country, cp.CountryCode, cp.FinalPrice, cp.Currency, nullDecimal(cp.ConvertedPrice), string(breakdown)); err != nil {
			return fmt.Errorf("insert product price for %s: %w", cp.Country, err)
		}
	}
	return nil
}
