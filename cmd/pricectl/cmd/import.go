package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/logging"
)

type importOptions struct {
	charges []string
	margins []string
	commit  bool
	format  string
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Price a product spreadsheet",
		Long: `Parses an .xlsx product sheet and prices every row for the countries it
lists. Nothing is stored unless --commit is given.

Row problems are printed as "Row N: message" and make the command fail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.charges, "charge", nil, "selected charge as COUNTRY:ID (repeatable)")
	f.StringSliceVar(&opts.margins, "margin", nil, "margins to apply: brand, category, condition, seller, customer")
	f.BoolVar(&opts.commit, "commit", false, "store products and prices after a clean calculation")
	f.StringVarP(&opts.format, "format", "f", "table", "output format (table, json)")
	return cmd
}

func runImport(cmd *cobra.Command, root *rootOptions, opts *importOptions, path string) error {
	ctx := cmd.Context()
	log := logging.Named("import")

	if err := importer.ValidateFileName(path); err != nil {
		return err
	}
	flags, err := parseMarginFlags(opts.margins)
	if err != nil {
		return err
	}
	selection, err := parseSelection(opts.charges)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := importer.ParseSpreadsheet(f)
	if err != nil {
		return err
	}
	log.Debug("spreadsheet parsed", zap.String("file", path), zap.Int("rows", len(rows)))

	stores, closeDB, err := root.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	calc := importer.NewLocalCalculator(stores.Charges, stores.Margins, stores.Rates, stores.BaseCountry)
	result, err := calc.CalculateBatch(ctx, importer.BatchRequest{
		Rows:      rows,
		Flags:     flags,
		Selection: selection,
	})
	if err != nil {
		var rowErrs *importer.RowErrors
		if errors.As(err, &rowErrs) {
			for _, msg := range rowErrs.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return fmt.Errorf("%d rows failed validation", len(rowErrs.Errors))
		}
		return err
	}

	if opts.format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if err := renderBatch(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if !opts.commit {
		return nil
	}
	if err := stores.Products.CommitBatch(ctx, path, result.Rows); err != nil {
		var rowErrs *importer.RowErrors
		if errors.As(err, &rowErrs) {
			for _, msg := range rowErrs.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
		}
		return err
	}
	log.Info("batch committed", zap.String("file", path), zap.Int("rows", len(result.Rows)))
	fmt.Fprintf(cmd.OutOrStdout(), "committed %d products\n", len(result.Rows))
	return nil
}

func renderBatch(w io.Writer, result importer.BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSKU\tCOUNTRY\tBASE\tFINAL\tLOCAL")
	for _, row := range result.Rows {
		for _, p := range row.Prices {
			local := "-"
			if p.ConvertedPrice != nil {
				local = p.ConvertedPrice.StringFixed(2) + " " + p.Currency
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				row.Row.Number,
				row.Product.SKU,
				p.Country,
				p.BasePrice.StringFixed(2),
				p.FinalPrice.StringFixed(2),
				local)
		}
	}
	return tw.Flush()
}
