// Package cmd provides the pricectl commands.
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/config"
	"github.com/Simplici0/tradedesk/internal/db"
	"github.com/Simplici0/tradedesk/internal/logging"
	"github.com/Simplici0/tradedesk/internal/migrations"
	"github.com/Simplici0/tradedesk/internal/pricing"
	"github.com/Simplici0/tradedesk/internal/store"
)

type rootOptions struct {
	dbPath  string
	verbose bool
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pricectl",
		Short: "Price marketplace listings against the admin database",
		Long: `pricectl runs the listing pricing engine against a tradedesk database.

It uses the same charge catalog, margin table and exchange rates as the
admin console, so quotes match what a batch import would store.

Examples:
  pricectl seed
  pricectl quote --price 120 --current HK --delivery HK --country Dubai --margin seller --seller-category standard
  pricectl import products.xlsx --charge Dubai:3 --format json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg = config.Load()
			lc := opts.cfg.Logging()
			if opts.verbose {
				lc.Level = "debug"
			}
			if err := logging.Initialize(lc); err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}
			if opts.dbPath == "" {
				opts.dbPath = opts.cfg.DBPath
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "sqlite database path (default is DB_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newQuoteCmd(opts))
	root.AddCommand(newImportCmd(opts))
	return root
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

// openDB opens the database and brings its schema up to date.
func (o *rootOptions) openDB(ctx context.Context) (*sql.DB, error) {
	database, err := db.Open(ctx, o.dbPath)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, database); err != nil {
		database.Close()
		return nil, err
	}
	logging.Logger.Debug("database ready", zap.String("path", o.dbPath))
	return database, nil
}

func (o *rootOptions) openStores(ctx context.Context) (*store.Stores, func(), error) {
	database, err := o.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store.New(database, o.cfg.BaseCountry), func() { _ = database.Close() }, nil
}

// parseSelection reads COUNTRY:ID pairs into a charge selection.
func parseSelection(values []string) (map[string][]int64, error) {
	out := make(map[string][]int64)
	for _, v := range values {
		country, rawID, ok := strings.Cut(v, ":")
		country = strings.TrimSpace(country)
		if !ok || country == "" {
			return nil, fmt.Errorf("charge %q must look like COUNTRY:ID", v)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("charge %q has an invalid id", v)
		}
		out[country] = append(out[country], id)
	}
	return out, nil
}

// parseMarginFlags turns margin names into flags. Margins only apply when
// seller is among them.
func parseMarginFlags(values []string) (pricing.MarginFlags, error) {
	var flags pricing.MarginFlags
	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "brand":
			flags.Brand = true
		case "category":
			flags.ProductCategory = true
		case "condition":
			flags.ConditionCategory = true
		case "seller":
			flags.SellerCategory = true
		case "customer":
			flags.CustomerCategory = true
		case "":
		default:
			return flags, fmt.Errorf("unknown margin %q (brand, category, condition, seller, customer)", v)
		}
	}
	return flags, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
