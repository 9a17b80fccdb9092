package pricing

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCountryCode(t *testing.T) {
	cases := map[string]string{
		"Hongkong":  "HK",
		"Hong Kong": "HK",
		"hongkong":  "HK",
		"Dubai":     "D",
		"Germany":   "D",
		"":          "D",
	}
	for country, want := range cases {
		if got := CountryCode(country); got != want {
			t.Fatalf("CountryCode(%q)=%q, want %q", country, got, want)
		}
	}
}

func TestParseLocationSet_NormalizesEveryShape(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want LocationSet
	}{
		{"nil", nil, LocationSet{}},
		{"string slice", []string{"d", " HK "}, LocationSet{"D", "HK"}},
		{"any slice", []any{"D", nil, 7}, LocationSet{"D", "7"}},
		{"json array", `["HK","D","HK"]`, LocationSet{"HK", "D"}},
		{"json string", `"HK"`, LocationSet{"HK"}},
		{"bare code", "D", LocationSet{"D"}},
		{"garbage json", `["HK",`, LocationSet{`["HK",`}},
		{"json object", `{"a":1}`, LocationSet{`{"A":1}`}},
		{"empty string", "   ", LocationSet{}},
		{"bytes", []byte(`["D"]`), LocationSet{"D"}},
		{"raw message", json.RawMessage(`["HK"]`), LocationSet{"HK"}},
		{"number", 42, LocationSet{"42"}},
		{"json list inside string", `"[\"hk\",\"d\"]"`, LocationSet{"HK", "D"}},
		{"json null", "null", LocationSet{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseLocationSet(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseLocationSet(%#v)=%#v, want %#v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestLocationSet_UnmarshalJSON(t *testing.T) {
	var got struct {
		A LocationSet `json:"a"`
		B LocationSet `json:"b"`
		C LocationSet `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":["hk"],"b":"D","c":null}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got.A, LocationSet{"HK"}) || !reflect.DeepEqual(got.B, LocationSet{"D"}) || len(got.C) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestIsApplicable_NeverPanicsOnMalformedDeliveryLocation(t *testing.T) {
	express := ChargeDefinition{ID: 1, IsExpressDelivery: true}
	same := ChargeDefinition{ID: 2, IsSameLocationCharge: true}

	inputs := []any{nil, "", "D", `["D"`, `{}`, `null`, []any{nil}, map[string]int{"x": 1}, 3.5, []byte{0xff, 0xfe}}
	for _, raw := range inputs {
		product := ProductSnapshot{CurrentLocation: "D", DeliveryLocation: ParseLocationSet(raw)}
		for _, country := range []string{"Dubai", "Hongkong"} {
			_ = IsApplicable(express, product, country)
			_ = IsApplicable(same, product, country)
		}
	}

	broken := ProductSnapshot{CurrentLocation: "D", DeliveryLocation: ParseLocationSet(`["D"`)}
	if IsApplicable(same, broken, "Dubai") {
		t.Fatalf("malformed delivery location must not match a same-location charge")
	}
	if !IsApplicable(express, broken, "Dubai") {
		t.Fatalf("malformed delivery location leaves express delivery applicable")
	}
}

func TestIsApplicable_HongKongListingSoldInDubai(t *testing.T) {
	product := ProductSnapshot{CurrentLocation: "HK", DeliveryLocation: ParseLocationSet([]string{"D"})}
	express := ChargeDefinition{ID: 1, IsExpressDelivery: true}
	same := ChargeDefinition{ID: 2, IsSameLocationCharge: true}
	plain := ChargeDefinition{ID: 3}

	if IsApplicable(same, product, "Dubai") {
		t.Fatalf("same-location charge must not apply when origin and destination differ")
	}
	if !IsApplicable(express, product, "Dubai") {
		t.Fatalf("express charge must apply when origin and destination differ")
	}
	if !IsApplicable(plain, product, "Dubai") {
		t.Fatalf("unconditional charge always applies")
	}
}

func TestIsApplicable_LocalListing(t *testing.T) {
	product := ProductSnapshot{CurrentLocation: "d", DeliveryLocation: ParseLocationSet(`["D","HK"]`)}
	express := ChargeDefinition{ID: 1, IsExpressDelivery: true}
	same := ChargeDefinition{ID: 2, IsSameLocationCharge: true}

	if IsApplicable(express, product, "Dubai") {
		t.Fatalf("express charge must not apply to a listing shipping within Dubai")
	}
	if !IsApplicable(same, product, "Dubai") {
		t.Fatalf("same-location charge applies to a listing shipping within Dubai")
	}
	if !IsApplicable(express, product, "Hongkong") {
		t.Fatalf("express applies for Hongkong: listing is not located there")
	}
}

func TestEligibleCharges_AnyProductInBatchQualifies(t *testing.T) {
	charges := []ChargeDefinition{
		{ID: 1, Name: "express", IsExpressDelivery: true},
		{ID: 2, Name: "same", IsSameLocationCharge: true},
		{ID: 3, Name: "fee"},
	}
	local := ProductSnapshot{CurrentLocation: "D", DeliveryLocation: LocationSet{"D"}}
	remote := ProductSnapshot{CurrentLocation: "HK", DeliveryLocation: LocationSet{"D"}}

	onlyLocal := EligibleCharges(charges, []ProductSnapshot{local}, "Dubai")
	if ids := chargeIDs(onlyLocal); !reflect.DeepEqual(ids, []int64{2, 3}) {
		t.Fatalf("local batch eligible=%v, want [2 3]", ids)
	}

	mixed := EligibleCharges(charges, []ProductSnapshot{local, remote}, "Dubai")
	if ids := chargeIDs(mixed); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("mixed batch eligible=%v, want [1 2 3]", ids)
	}

	empty := EligibleCharges(charges, nil, "Dubai")
	if ids := chargeIDs(empty); !reflect.DeepEqual(ids, []int64{3}) {
		t.Fatalf("empty batch eligible=%v, want [3]", ids)
	}
}

func chargeIDs(charges []ChargeDefinition) []int64 {
	ids := make([]int64, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, c.ID)
	}
	return ids
}
