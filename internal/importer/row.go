package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/tradedesk/internal/pricing"
)

// Spreadsheet columns understood by the importer, after header normalization.
const (
	ColSKU              = "sku"
	ColName             = "name"
	ColBrand            = "brand"
	ColCategory         = "category"
	ColCondition        = "condition"
	ColSellerCategory   = "seller_category"
	ColPrice            = "price"
	ColWeight           = "weight"
	ColMOQ              = "moq"
	ColCurrentLocation  = "current_location"
	ColDeliveryLocation = "delivery_location"
	ColCountries        = "countries"
)

// ImportRow is one data row of an uploaded spreadsheet.
type ImportRow struct {
	Number  int               `json:"number"`
	Fields  map[string]string `json:"fields"`
	Errors  []string          `json:"errors"`
	IsValid bool              `json:"isValid"`
}

// Field returns the trimmed value of a column.
func (r ImportRow) Field(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

func (r ImportRow) clone() ImportRow {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	r.Fields = fields
	r.Errors = append([]string(nil), r.Errors...)
	return r
}

// Countries returns the destination countries listed on the row.
func (r ImportRow) Countries() []string {
	return splitList(r.Field(ColCountries))
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(c rune) bool { return c == ',' || c == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return lo.Uniq(out)
}

// batchCountries returns the distinct countries across rows in first-seen order.
func batchCountries(rows []ImportRow) []string {
	all := make([]string, 0)
	for _, row := range rows {
		all = append(all, row.Countries()...)
	}
	return lo.Uniq(all)
}

// canonicalCountries rewrites each row's countries to the catalog's spelling.
// Countries the catalog does not know are kept as written.
func canonicalCountries(rows []ImportRow, catalog pricing.Catalog) {
	for i := range rows {
		countries := rows[i].Countries()
		if len(countries) == 0 {
			continue
		}
		for j, country := range countries {
			if name, ok := catalog.Resolve(country); ok {
				countries[j] = name
			}
		}
		rows[i].Fields[ColCountries] = strings.Join(lo.Uniq(countries), ", ")
	}
}

// RowErrors is returned by collaborators when rows fail validation. Each
// entry is formatted "Row {n}: {message}".
type RowErrors struct {
	Errors []string `json:"errors"`
}

func (e *RowErrors) Error() string {
	return fmt.Sprintf("%d row validation errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// RowError formats a validation message for row n.
func RowError(n int, format string, args ...any) string {
	return fmt.Sprintf("Row %d: %s", n, fmt.Sprintf(format, args...))
}

var rowErrorPattern = regexp.MustCompile(`^\s*Row\s+(\d+)\s*:`)

// ApplyRowErrors writes each "Row {n}: ..." message onto the matching row and
// marks it invalid. Rows that are not mentioned are left untouched. Messages
// that match no row are returned.
func ApplyRowErrors(rows []ImportRow, messages []string) []string {
	index := make(map[int]int, len(rows))
	for i, row := range rows {
		index[row.Number] = i
	}

	fresh := make(map[int]bool)
	var unmatched []string
	for _, msg := range messages {
		m := rowErrorPattern.FindStringSubmatch(msg)
		if m == nil {
			unmatched = append(unmatched, msg)
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			unmatched = append(unmatched, msg)
			continue
		}
		i, ok := index[n]
		if !ok {
			unmatched = append(unmatched, msg)
			continue
		}
		if !fresh[i] {
			rows[i].Errors = nil
			fresh[i] = true
		}
		rows[i].Errors = append(rows[i].Errors, msg)
		rows[i].IsValid = false
	}
	return unmatched
}

// RowProduct converts a row into a product snapshot. Problems are returned as
// plain messages without the row prefix.
func RowProduct(row ImportRow) (pricing.ProductSnapshot, []string) {
	var problems []string

	p := pricing.ProductSnapshot{
		SKU:              row.Field(ColSKU),
		CurrentLocation:  pricing.NormalizeLocationCode(row.Field(ColCurrentLocation)),
		DeliveryLocation: pricing.ParseLocationSet(row.Field(ColDeliveryLocation)),
		Brand:            row.Field(ColBrand),
		ProductCategory:  row.Field(ColCategory),
		Condition:        row.Field(ColCondition),
		SellerCategory:   row.Field(ColSellerCategory),
		MOQ:              1,
	}

	if p.SKU == "" {
		problems = append(problems, "sku is required")
	}

	switch raw := row.Field(ColPrice); {
	case raw == "":
		problems = append(problems, "price is required")
	default:
		price, err := decimal.NewFromString(raw)
		if err != nil {
			problems = append(problems, "price must be numeric")
		} else if !price.IsPositive() {
			problems = append(problems, "price must be positive")
		} else {
			p.BasePrice = price
		}
	}

	if raw := row.Field(ColWeight); raw != "" {
		weight, err := decimal.NewFromString(raw)
		if err != nil {
			problems = append(problems, "weight must be numeric")
		} else if weight.IsNegative() {
			problems = append(problems, "weight must not be negative")
		} else {
			p.Weight = &weight
		}
	}

	if raw := row.Field(ColMOQ); raw != "" {
		moq, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, "moq must be a whole number")
		} else if moq < 0 {
			problems = append(problems, "moq must not be negative")
		} else {
			p.MOQ = moq
		}
	}

	if len(row.Countries()) == 0 {
		problems = append(problems, "at least one destination country is required")
	}

	return p, problems
}
