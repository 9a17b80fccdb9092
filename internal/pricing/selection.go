package pricing

import (
	"sort"

	"github.com/samber/lo"
)

// Selection holds the chosen charge ids per country.
type Selection map[string]map[int64]struct{}

// NewSelection returns an empty selection.
func NewSelection() Selection {
	return Selection{}
}

// SelectionFromIDs builds a selection from plain id lists.
func SelectionFromIDs(ids map[string][]int64) Selection {
	sel := NewSelection()
	for country, list := range ids {
		if len(list) == 0 {
			continue
		}
		set := make(map[int64]struct{}, len(list))
		for _, id := range list {
			set[id] = struct{}{}
		}
		sel[country] = set
	}
	return sel
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for country, ids := range s {
		set := make(map[int64]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		out[country] = set
	}
	return out
}

// Has reports whether id is selected for country.
func (s Selection) Has(country string, id int64) bool {
	_, ok := s[country][id]
	return ok
}

// IDs returns the selected ids for country in ascending order.
func (s Selection) IDs(country string) []int64 {
	ids := lo.Keys(s[country])
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AsIDs flattens the selection into plain id lists.
func (s Selection) AsIDs() map[string][]int64 {
	out := make(map[string][]int64, len(s))
	for country := range s {
		out[country] = s.IDs(country)
	}
	return out
}

// Charges returns the selected definitions for country in catalog order.
func (s Selection) Charges(country string, catalog Catalog) []ChargeDefinition {
	return lo.Filter(catalog[country], func(c ChargeDefinition, _ int) bool {
		return s.Has(country, c.ID)
	})
}

// Toggle flips charge for country and returns the resulting selection; sel is
// not modified. countryCharges is the country's catalog slice.
//
// Selecting an express charge drops any other express charge in the country.
// Selecting a grouped charge selects every charge sharing its GroupID.
// Deselecting only ever removes the toggled charge, group members stay.
func Toggle(sel Selection, country string, charge ChargeDefinition, countryCharges []ChargeDefinition) Selection {
	next := sel.Clone()
	ids := next[country]

	if _, selected := ids[charge.ID]; selected {
		delete(ids, charge.ID)
		if len(ids) == 0 {
			delete(next, country)
		}
		return next
	}

	if ids == nil {
		ids = make(map[int64]struct{})
		next[country] = ids
	}

	if charge.IsExpressDelivery {
		for _, c := range countryCharges {
			if c.IsExpressDelivery && c.ID != charge.ID {
				delete(ids, c.ID)
			}
		}
	}

	ids[charge.ID] = struct{}{}

	if charge.GroupID != "" {
		for _, c := range countryCharges {
			if c.GroupID == charge.GroupID {
				ids[c.ID] = struct{}{}
			}
		}
	}

	return next
}
