package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/tradedesk/internal/apperr"
	"github.com/Simplici0/tradedesk/internal/db"
	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/migrations"
	"github.com/Simplici0/tradedesk/internal/pricing"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := migrations.Up(ctx, database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return New(database, "Hongkong")
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestValidateCharge(t *testing.T) {
	valid := pricing.ChargeDefinition{
		Country: "Dubai", Name: "Handling", CostType: pricing.CostFixed,
		CostField: pricing.FieldProduct, CostUnit: pricing.UnitPiece, Value: dec("3"),
	}
	if err := ValidateCharge(valid); err != nil {
		t.Fatalf("valid charge rejected: %v", err)
	}

	cases := map[string]func(c *pricing.ChargeDefinition){
		"missing name":        func(c *pricing.ChargeDefinition) { c.Name = " " },
		"missing country":     func(c *pricing.ChargeDefinition) { c.Country = "" },
		"bad cost type":       func(c *pricing.ChargeDefinition) { c.CostType = "Flat" },
		"bad unit":            func(c *pricing.ChargeDefinition) { c.CostUnit = "lb" },
		"negative value":      func(c *pricing.ChargeDefinition) { c.Value = dec("-1") },
		"percentage over 100": func(c *pricing.ChargeDefinition) { c.CostType = pricing.CostPercentage; c.Value = dec("101") },
		"min above max":       func(c *pricing.ChargeDefinition) { c.MinValue = decPtr("5"); c.MaxValue = decPtr("2") },
		"express and same-location": func(c *pricing.ChargeDefinition) {
			c.IsExpressDelivery = true
			c.IsSameLocationCharge = true
		},
		"grouped express": func(c *pricing.ChargeDefinition) { c.IsExpressDelivery = true; c.GroupID = "g1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := ValidateCharge(c); !apperr.IsType(err, apperr.TypeInput) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}
}

func TestChargeStore_CreateUpdateAndCatalog(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	express, err := s.Charges.Create(ctx, Charge{
		ChargeDefinition: pricing.ChargeDefinition{
			Country: "Dubai", Name: "Express", CostType: pricing.CostFixed, CostField: pricing.FieldDelivery,
			CostUnit: pricing.UnitKilogram, Value: dec("4.25"), MaxValue: decPtr("10"), IsExpressDelivery: true,
		},
		Active: true,
	})
	if err != nil {
		t.Fatalf("create express: %v", err)
	}
	if express.ID == 0 || !express.Value.Equal(dec("4.25")) || express.MaxValue == nil || express.MinValue != nil {
		t.Fatalf("unexpected stored charge: %+v", express)
	}

	inactive, err := s.Charges.Create(ctx, Charge{
		ChargeDefinition: pricing.ChargeDefinition{
			Country: "Dubai", Name: "Old fee", CostType: pricing.CostPercentage, CostField: pricing.FieldProduct, Value: dec("1"),
		},
	})
	if err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	catalog, err := s.Charges.ChargesByCountry(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(catalog["Dubai"]) != 1 || catalog["Dubai"][0].ID != express.ID {
		t.Fatalf("catalog must hold only active charges: %+v", catalog)
	}

	inactive.Active = true
	inactive.Value = dec("2")
	updated, err := s.Charges.Update(ctx, inactive.ID, inactive)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Active || !updated.Value.Equal(dec("2")) {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := s.Charges.Update(ctx, 999, inactive); !apperr.IsType(err, apperr.TypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Charges.Get(ctx, 999); !apperr.IsType(err, apperr.TypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarginStore_UniquePerKindKeyCountry(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	m := pricing.Margin{Kind: pricing.MarginSellerCategory, Key: "gold", Type: pricing.MarginPercentage, Value: dec("10")}
	created, err := s.Margins.Create(ctx, m)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Margins.Create(ctx, m); !apperr.IsType(err, apperr.TypeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	m.Country = "Hongkong"
	m.Value = dec("12")
	if _, err := s.Margins.Create(ctx, m); err != nil {
		t.Fatalf("country-specific margin: %v", err)
	}

	table, err := s.Margins.Table(ctx)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	got, ok := table.LookupMargin(pricing.MarginSellerCategory, "gold", "Hongkong")
	if !ok || !got.Value.Equal(dec("12")) {
		t.Fatalf("lookup=%+v ok=%v", got, ok)
	}

	created.Value = dec("11")
	if _, err := s.Margins.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("update own row must not conflict: %v", err)
	}
}

func TestRateStore_Upsert(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if _, err := s.Rates.Upsert(ctx, pricing.ExchangeRate{Country: "Dubai", Currency: "aed", Rate: dec("3.67")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := s.Rates.Upsert(ctx, pricing.ExchangeRate{Country: "Dubai", Currency: "AED", Rate: dec("3.70")}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if _, err := s.Rates.Upsert(ctx, pricing.ExchangeRate{Country: "Dubai", Currency: "AED"}); !apperr.IsType(err, apperr.TypeInput) {
		t.Fatalf("zero rate must be rejected, got %v", err)
	}

	rates, err := s.Rates.RatesByCountry(ctx)
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	if len(rates) != 1 || rates["Dubai"].Currency != "AED" || !rates["Dubai"].Rate.Equal(dec("3.70")) {
		t.Fatalf("rates=%+v", rates)
	}
}

func calculatedRow(n int, sku, price string, countries ...string) importer.CalculatedRow {
	product := pricing.ProductSnapshot{
		SKU: sku, BasePrice: dec(price), MOQ: 1,
		CurrentLocation: "HK", DeliveryLocation: pricing.LocationSet{"HK"},
	}
	prices := pricing.Quote(pricing.QuoteInput{
		Product:   product,
		Countries: countries,
		Margins:   pricing.NewMarginTable(nil),
		Rates:     map[string]pricing.ExchangeRate{"Dubai": {Country: "Dubai", Currency: "AED", Rate: dec("2")}},
	})
	return importer.CalculatedRow{
		Row:     importer.ImportRow{Number: n, Fields: map[string]string{importer.ColName: "Item " + sku}},
		Product: product,
		Prices:  prices,
	}
}

func TestProductStore_CommitBatchUpsertsBySKU(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	if err := s.Products.CommitBatch(ctx, "a.xlsx", []importer.CalculatedRow{
		calculatedRow(1, "A-1", "100", "Dubai", "Hongkong"),
		calculatedRow(2, "A-2", "50", "Dubai"),
	}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Products.CommitBatch(ctx, "b.xlsx", []importer.CalculatedRow{
		calculatedRow(1, "A-1", "120", "Dubai"),
	}); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	products, err := s.Products.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}

	found, err := s.Products.List(ctx, "A-1")
	if err != nil || len(found) != 1 {
		t.Fatalf("search: %v %+v", err, found)
	}
	p, err := s.Products.Get(ctx, found[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.BasePrice.Equal(dec("120")) || p.SourceFile != "b.xlsx" || p.Name != "Item A-1" {
		t.Fatalf("upsert not applied: %+v", p)
	}
	if !p.DeliveryLocation.Contains("HK") {
		t.Fatalf("delivery locations lost: %v", p.DeliveryLocation)
	}
	if len(p.Prices) != 1 || p.Prices[0].Country != "Dubai" {
		t.Fatalf("prices must be replaced: %+v", p.Prices)
	}
	if p.Prices[0].ConvertedPrice == nil || !p.Prices[0].ConvertedPrice.Equal(dec("240")) {
		t.Fatalf("converted price=%v", p.Prices[0].ConvertedPrice)
	}
}

func TestProductStore_DuplicateSKUInBatchIsRowError(t *testing.T) {
	s := newTestStores(t)

	err := s.Products.CommitBatch(context.Background(), "dup.xlsx", []importer.CalculatedRow{
		calculatedRow(1, "A-1", "10", "Dubai"),
		calculatedRow(2, "B-1", "10", "Dubai"),
		calculatedRow(3, "A-1", "10", "Dubai"),
	})
	var rowErrs *importer.RowErrors
	if !errors.As(err, &rowErrs) {
		t.Fatalf("expected row errors, got %v", err)
	}
	if len(rowErrs.Errors) != 1 || rowErrs.Errors[0] != "Row 3: sku A-1 is already used by row 1" {
		t.Fatalf("errors=%v", rowErrs.Errors)
	}

	products, err := s.Products.List(context.Background(), "")
	if err != nil || len(products) != 0 {
		t.Fatalf("nothing may be written: %v %d", err, len(products))
	}
}

func TestProductStore_ReplacePricesUnknownProduct(t *testing.T) {
	s := newTestStores(t)
	if err := s.Products.ReplacePrices(context.Background(), 42, nil); !apperr.IsType(err, apperr.TypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserStore_Authenticate(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := s.Users.db.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES (?, ?)`, "admin@example.com", hash); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	ok, err := s.Users.Authenticate(ctx, " Admin@Example.com ", "s3cret")
	if err != nil || !ok {
		t.Fatalf("expected match: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.Users.Authenticate(ctx, "admin@example.com", "wrong"); ok {
		t.Fatalf("wrong password accepted")
	}
	if ok, _ := s.Users.Authenticate(ctx, "nobody@example.com", "s3cret"); ok {
		t.Fatalf("unknown user accepted")
	}
}

func TestStores_Quote(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	express, err := s.Charges.Create(ctx, Charge{
		ChargeDefinition: pricing.ChargeDefinition{
			Country: "Dubai", Name: "Express", CostType: pricing.CostFixed, CostField: pricing.FieldDelivery,
			CostUnit: pricing.UnitMOQ, Value: dec("50"), IsExpressDelivery: true,
		},
		Active: true,
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if _, err := s.Margins.Create(ctx, pricing.Margin{
		Kind: pricing.MarginSellerCategory, Key: "gold", Type: pricing.MarginPercentage, Value: dec("10"),
	}); err != nil {
		t.Fatalf("create margin: %v", err)
	}

	prices, err := s.Quote(ctx, QuoteRequest{
		Product: pricing.ProductSnapshot{
			BasePrice: dec("100"), MOQ: 10, SellerCategory: "gold",
			CurrentLocation: "hk", DeliveryLocation: pricing.LocationSet{"hk"},
		},
		Flags:     pricing.MarginFlags{SellerCategory: true},
		Selection: map[string][]int64{"Dubai": {express.ID}},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(prices) != 1 || prices[0].Country != "Dubai" {
		t.Fatalf("expected a Dubai price, got %+v", prices)
	}
	// 100 + 10 seller margin + 50/10 express.
	if !prices[0].FinalPrice.Equal(dec("115")) {
		t.Fatalf("final=%s", prices[0].FinalPrice)
	}

	_, err = s.Quote(ctx, QuoteRequest{
		Product:   pricing.ProductSnapshot{BasePrice: dec("1")},
		Selection: map[string][]int64{"Dubai": {999}},
	})
	if !apperr.IsType(err, apperr.TypeInput) {
		t.Fatalf("unknown charge must be rejected, got %v", err)
	}
	if _, err := s.Quote(ctx, QuoteRequest{}); !apperr.IsType(err, apperr.TypeInput) {
		t.Fatalf("zero price must be rejected, got %v", err)
	}
}
