package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Simplici0/tradedesk/internal/pricing"
	"github.com/Simplici0/tradedesk/internal/store"
)

type quoteOptions struct {
	sku            string
	price          string
	weight         string
	moq            int
	current        string
	delivery       string
	brand          string
	category       string
	condition      string
	sellerCategory string
	countries      []string
	charges        []string
	margins        []string
	format         string
}

func newQuoteCmd(root *rootOptions) *cobra.Command {
	opts := &quoteOptions{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price one product for one or more countries",
		Long: `Prices a single product against the stored catalogs.

Without --country the product is priced for every country that has charges.
Charges are selected with --charge COUNTRY:ID and are only applied when they
apply to the product's locations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			stores, closeDB, err := root.openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			prices, err := stores.Quote(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), prices)
			}
			return renderPrices(cmd.OutOrStdout(), prices)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sku, "sku", "", "product sku")
	f.StringVar(&opts.price, "price", "", "base price in the base currency (required)")
	f.StringVar(&opts.weight, "weight", "", "weight in kg")
	f.IntVar(&opts.moq, "moq", 1, "minimum order quantity")
	f.StringVar(&opts.current, "current", "", "current location code (HK or D)")
	f.StringVar(&opts.delivery, "delivery", "", "delivery location codes, comma separated or a JSON list")
	f.StringVar(&opts.brand, "brand", "", "brand used for brand margins")
	f.StringVar(&opts.category, "category", "", "product category used for category margins")
	f.StringVar(&opts.condition, "condition", "", "condition used for condition margins")
	f.StringVar(&opts.sellerCategory, "seller-category", "", "seller category used for seller margins")
	f.StringSliceVar(&opts.countries, "country", nil, "destination country (repeatable)")
	f.StringArrayVar(&opts.charges, "charge", nil, "selected charge as COUNTRY:ID (repeatable)")
	f.StringSliceVar(&opts.margins, "margin", nil, "margins to apply: brand, category, condition, seller, customer")
	f.StringVarP(&opts.format, "format", "f", "table", "output format (table, json)")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func (o *quoteOptions) request() (store.QuoteRequest, error) {
	price, err := decimal.NewFromString(o.price)
	if err != nil {
		return store.QuoteRequest{}, fmt.Errorf("price %q is not a number", o.price)
	}

	product := pricing.ProductSnapshot{
		SKU:              o.sku,
		BasePrice:        price,
		MOQ:              o.moq,
		CurrentLocation:  o.current,
		DeliveryLocation: pricing.ParseLocationSet(o.delivery),
		Brand:            o.brand,
		ProductCategory:  o.category,
		Condition:        o.condition,
		SellerCategory:   o.sellerCategory,
	}
	if o.weight != "" {
		w, err := decimal.NewFromString(o.weight)
		if err != nil {
			return store.QuoteRequest{}, fmt.Errorf("weight %q is not a number", o.weight)
		}
		product.Weight = &w
	}

	flags, err := parseMarginFlags(o.margins)
	if err != nil {
		return store.QuoteRequest{}, err
	}
	selection, err := parseSelection(o.charges)
	if err != nil {
		return store.QuoteRequest{}, err
	}

	switch o.format {
	case "table", "json":
	default:
		return store.QuoteRequest{}, fmt.Errorf("unknown format %q", o.format)
	}

	return store.QuoteRequest{
		Product:   product,
		Countries: o.countries,
		Flags:     flags,
		Selection: selection,
	}, nil
}

func renderPrices(w io.Writer, prices []pricing.CountryPrice) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tCODE\tBASE\tMARGINS\tCOSTS\tFINAL\tLOCAL")
	for _, p := range prices {
		local := "-"
		if p.ConvertedPrice != nil {
			local = p.ConvertedPrice.StringFixed(2) + " " + p.Currency
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Country,
			p.CountryCode,
			p.BasePrice.StringFixed(2),
			p.Breakdown.MarginTotal.StringFixed(2),
			p.Breakdown.CostTotal.StringFixed(2),
			p.FinalPrice.StringFixed(2),
			local)
		for _, c := range p.Breakdown.Costs {
			fmt.Fprintf(tw, "  %s\t\t\t\t%s\t\t\n", c.Charge.Name, c.CalculatedAmount.StringFixed(2))
		}
	}
	return tw.Flush()
}
