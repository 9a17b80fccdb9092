package pricing

import (
	"reflect"
	"testing"
)

func dubaiCharges() []ChargeDefinition {
	return []ChargeDefinition{
		{ID: 1, Name: "Express A", IsExpressDelivery: true},
		{ID: 2, Name: "Express B", IsExpressDelivery: true},
		{ID: 3, Name: "Insurance", GroupID: "cover"},
		{ID: 4, Name: "Insurance admin", GroupID: "cover"},
		{ID: 5, Name: "Packaging"},
		{ID: 6, Name: "Customs", GroupID: "customs"},
	}
}

func TestToggle_TwiceRestoresOriginal(t *testing.T) {
	charges := dubaiCharges()
	original := SelectionFromIDs(map[string][]int64{"Dubai": {1}, "Hongkong": {9}})

	once := Toggle(original, "Dubai", charges[4], charges)
	if !once.Has("Dubai", 5) {
		t.Fatalf("expected charge 5 to be selected")
	}
	twice := Toggle(once, "Dubai", charges[4], charges)
	if !reflect.DeepEqual(twice, original) {
		t.Fatalf("round trip changed selection: got %v, want %v", twice.AsIDs(), original.AsIDs())
	}

	fromEmpty := Toggle(Toggle(NewSelection(), "Dubai", charges[4], charges), "Dubai", charges[4], charges)
	if !reflect.DeepEqual(fromEmpty, NewSelection()) {
		t.Fatalf("round trip from empty left %v", fromEmpty.AsIDs())
	}
}

func TestToggle_DoesNotMutateInput(t *testing.T) {
	charges := dubaiCharges()
	sel := SelectionFromIDs(map[string][]int64{"Dubai": {5}})

	_ = Toggle(sel, "Dubai", charges[0], charges)
	_ = Toggle(sel, "Dubai", charges[4], charges)

	if got := sel.IDs("Dubai"); !reflect.DeepEqual(got, []int64{5}) {
		t.Fatalf("input selection mutated: %v", got)
	}
}

func TestToggle_GroupJoinSelectsEveryMember(t *testing.T) {
	charges := dubaiCharges()

	sel := Toggle(NewSelection(), "Dubai", charges[3], charges)
	if got := sel.IDs("Dubai"); !reflect.DeepEqual(got, []int64{3, 4}) {
		t.Fatalf("group join selected %v, want [3 4]", got)
	}
	if sel.Has("Hongkong", 3) {
		t.Fatalf("group join must stay within the country")
	}
}

func TestToggle_GroupLeaveOnlyRemovesToggledMember(t *testing.T) {
	charges := dubaiCharges()
	sel := Toggle(NewSelection(), "Dubai", charges[2], charges)

	sel = Toggle(sel, "Dubai", charges[2], charges)
	if got := sel.IDs("Dubai"); !reflect.DeepEqual(got, []int64{4}) {
		t.Fatalf("group leave left %v, want [4]", got)
	}
}

func TestToggle_SecondExpressReplacesFirst(t *testing.T) {
	charges := dubaiCharges()

	sel := Toggle(NewSelection(), "Dubai", charges[0], charges)
	sel = Toggle(sel, "Dubai", charges[4], charges)
	sel = Toggle(sel, "Dubai", charges[1], charges)

	express := 0
	for _, c := range sel.Charges("Dubai", Catalog{"Dubai": charges}) {
		if c.IsExpressDelivery {
			express++
		}
	}
	if express != 1 {
		t.Fatalf("expected exactly one express charge, got %d (%v)", express, sel.IDs("Dubai"))
	}
	if !sel.Has("Dubai", 2) || sel.Has("Dubai", 1) {
		t.Fatalf("expected express B to replace express A, got %v", sel.IDs("Dubai"))
	}
	if !sel.Has("Dubai", 5) {
		t.Fatalf("non-express charge must survive an express swap")
	}
}

func TestToggle_ExpressIsPerCountry(t *testing.T) {
	charges := dubaiCharges()
	hk := []ChargeDefinition{{ID: 11, IsExpressDelivery: true}}

	sel := Toggle(NewSelection(), "Dubai", charges[0], charges)
	sel = Toggle(sel, "Hongkong", hk[0], hk)

	if !sel.Has("Dubai", 1) || !sel.Has("Hongkong", 11) {
		t.Fatalf("express choice in one country must not affect another: %v", sel.AsIDs())
	}
}

func TestSelectionCharges_FollowsCatalogOrder(t *testing.T) {
	charges := dubaiCharges()
	sel := SelectionFromIDs(map[string][]int64{"Dubai": {6, 1, 99}})

	got := sel.Charges("Dubai", Catalog{"Dubai": charges})
	if ids := chargeIDs(got); !reflect.DeepEqual(ids, []int64{1, 6}) {
		t.Fatalf("charges=%v, want [1 6]", ids)
	}
}
