package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func equalAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestCompose_IdentityWithoutMarginsOrCosts(t *testing.T) {
	equalAmount(t, "compose", Compose(dec("100"), nil, nil), "100")
	equalAmount(t, "compose empty slices", Compose(dec("100"), []CalculatedMargin{}, []CalculatedCost{}), "100")
}

func TestCompose_SumsMarginsAndCosts(t *testing.T) {
	margins := []CalculatedMargin{
		{CalculatedAmount: dec("10")},
		{CalculatedAmount: dec("2.5")},
	}
	costs := []CalculatedCost{
		{CalculatedAmount: dec("5")},
		{CalculatedAmount: dec("0.125")},
	}

	equalAmount(t, "compose", Compose(dec("100"), margins, costs), "117.625")

	reversed := []CalculatedCost{costs[1], costs[0]}
	equalAmount(t, "compose reversed", Compose(dec("100"), margins, reversed), "117.625")
}

func TestConvert_NilOrZeroRateIsIdentity(t *testing.T) {
	equalAmount(t, "nil rate", Convert(dec("42"), nil), "42")
	equalAmount(t, "zero rate", Convert(dec("42"), &ExchangeRate{Rate: decimal.Zero}), "42")
	equalAmount(t, "aed", Convert(dec("10"), &ExchangeRate{Rate: dec("3.67")}), "36.7")
}

func TestQuote_HongKongListingPricedForDubaiAndHongkong(t *testing.T) {
	catalog := Catalog{
		"Dubai": {
			{ID: 1, Country: "Dubai", Name: "Express", CostType: CostFixed, CostField: FieldDelivery, CostUnit: UnitPiece, Value: dec("20"), IsExpressDelivery: true},
			{ID: 2, Country: "Dubai", Name: "Local handling", CostType: CostFixed, CostField: FieldDelivery, Value: dec("5"), IsSameLocationCharge: true},
			{ID: 5, Country: "Dubai", Name: "Platform fee", CostType: CostPercentage, CostField: FieldProduct, Value: dec("2")},
		},
		"Hongkong": {
			{ID: 3, Country: "Hongkong", Name: "Express", CostType: CostFixed, CostField: FieldDelivery, Value: dec("30"), IsExpressDelivery: true},
			{ID: 4, Country: "Hongkong", Name: "Local handling", CostType: CostFixed, CostField: FieldDelivery, Value: dec("7"), IsSameLocationCharge: true},
		},
	}
	sel := SelectionFromIDs(map[string][]int64{"Dubai": {1, 2, 5}, "Hongkong": {3, 4}})

	prices := Quote(QuoteInput{
		Product: ProductSnapshot{
			SKU:              "IPH-15",
			BasePrice:        dec("100"),
			MOQ:              1,
			CurrentLocation:  "HK",
			DeliveryLocation: ParseLocationSet([]string{"D"}),
			SellerCategory:   "gold",
		},
		Countries: []string{"Dubai", "Hongkong"},
		Flags:     MarginFlags{SellerCategory: true},
		Selection: sel,
		Catalog:   catalog,
		Margins: NewMarginTable([]Margin{
			{ID: 1, Kind: MarginSellerCategory, Key: "gold", Type: MarginPercentage, Value: dec("10")},
		}),
		Rates: map[string]ExchangeRate{"Dubai": {Country: "Dubai", Currency: "AED", Rate: dec("3.67")}},
	})

	if len(prices) != 2 {
		t.Fatalf("expected 2 country prices, got %d", len(prices))
	}

	dubai := prices[0]
	if dubai.CountryCode != DubaiCode {
		t.Fatalf("dubai code = %q", dubai.CountryCode)
	}
	if len(dubai.Breakdown.Costs) != 2 {
		t.Fatalf("expected express + platform fee for Dubai, got %+v", dubai.Breakdown.Costs)
	}
	equalAmount(t, "dubai margin total", dubai.Breakdown.MarginTotal, "10")
	equalAmount(t, "dubai cost total", dubai.Breakdown.CostTotal, "22")
	equalAmount(t, "dubai final", dubai.FinalPrice, "132")
	if dubai.ConvertedPrice == nil || dubai.Currency != "AED" {
		t.Fatalf("expected AED conversion for Dubai, got %+v", dubai)
	}
	equalAmount(t, "dubai converted", *dubai.ConvertedPrice, "484.44")

	hk := prices[1]
	if len(hk.Breakdown.Costs) != 1 || hk.Breakdown.Costs[0].Charge.ID != 3 {
		t.Fatalf("expected only express for Hongkong, got %+v", hk.Breakdown.Costs)
	}
	equalAmount(t, "hongkong final", hk.FinalPrice, "140")
	if hk.ConvertedPrice != nil {
		t.Fatalf("no rate configured for Hongkong, got converted price %s", hk.ConvertedPrice)
	}
}

func TestQuote_BaseCountryIsNotConverted(t *testing.T) {
	catalog := Catalog{
		"Dubai": {
			{ID: 1, Country: "Dubai", Name: "Express", CostType: CostFixed, CostField: FieldDelivery, Value: dec("20"), IsExpressDelivery: true},
		},
		"Hongkong": {
			{ID: 2, Country: "Hongkong", Name: "Local handling", CostType: CostFixed, CostField: FieldDelivery, Value: dec("7"), IsSameLocationCharge: true},
		},
	}

	prices := Quote(QuoteInput{
		Product: ProductSnapshot{
			BasePrice:        dec("100"),
			MOQ:              1,
			CurrentLocation:  "HK",
			DeliveryLocation: ParseLocationSet([]string{"HK"}),
		},
		Countries: []string{"Dubai", "Hongkong"},
		Selection: SelectionFromIDs(map[string][]int64{"Dubai": {1}, "Hongkong": {2}}),
		Catalog:   catalog,
		Margins:   NewMarginTable(nil),
		Rates: map[string]ExchangeRate{
			"Dubai":    {Country: "Dubai", Currency: "AED", Rate: dec("3.67")},
			"Hongkong": {Country: "Hongkong", Currency: "HKD", Rate: dec("7.8")},
		},
		BaseCountry: "hongkong",
	})

	dubai, hk := prices[0], prices[1]
	if dubai.ConvertedPrice == nil {
		t.Fatalf("Dubai must still be converted")
	}
	equalAmount(t, "dubai converted", *dubai.ConvertedPrice, "440.4")

	equalAmount(t, "hongkong final", hk.FinalPrice, "107")
	if hk.ConvertedPrice != nil || hk.Currency != "" {
		t.Fatalf("base country must stay in the base currency, got %s %s", hk.ConvertedPrice, hk.Currency)
	}
	if len(hk.Breakdown.Costs) != 1 || hk.Breakdown.Costs[0].LocalAmount != nil {
		t.Fatalf("base country costs must not carry a local amount: %+v", hk.Breakdown.Costs)
	}
}

func TestQuote_CountryCaseFollowsCatalog(t *testing.T) {
	catalog := Catalog{
		"Dubai": {
			{ID: 3, Country: "Dubai", Name: "Bank fee", CostType: CostPercentage, CostField: FieldProduct, Value: dec("2")},
		},
	}

	prices := Quote(QuoteInput{
		Product: ProductSnapshot{
			BasePrice:      dec("100"),
			MOQ:            1,
			SellerCategory: "gold",
		},
		Countries: []string{"dubai"},
		Flags:     MarginFlags{SellerCategory: true},
		Selection: SelectionFromIDs(map[string][]int64{"Dubai": {3}}),
		Catalog:   catalog,
		Margins: NewMarginTable([]Margin{
			{ID: 1, Country: "DUBAI", Kind: MarginSellerCategory, Key: "gold", Type: MarginPercentage, Value: dec("10")},
		}),
		Rates: map[string]ExchangeRate{"Dubai": {Country: "Dubai", Currency: "AED", Rate: dec("2")}},
	})

	p := prices[0]
	if p.Country != "Dubai" {
		t.Fatalf("country = %q, want the catalog spelling", p.Country)
	}
	equalAmount(t, "cost total", p.Breakdown.CostTotal, "2")
	equalAmount(t, "margin total", p.Breakdown.MarginTotal, "10")
	equalAmount(t, "final", p.FinalPrice, "112")
	if p.ConvertedPrice == nil {
		t.Fatalf("rate lookup must ignore case")
	}
	equalAmount(t, "converted", *p.ConvertedPrice, "224")
}
