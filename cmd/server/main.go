package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/config"
	"github.com/Simplici0/tradedesk/internal/db"
	"github.com/Simplici0/tradedesk/internal/importer"
	"github.com/Simplici0/tradedesk/internal/logging"
	"github.com/Simplici0/tradedesk/internal/migrations"
	"github.com/Simplici0/tradedesk/internal/seed"
	"github.com/Simplici0/tradedesk/internal/store"
)

func main() {
	cfg := config.Load()
	if err := logging.Initialize(cfg.Logging()); err != nil {
		logging.Logger.Fatal("failed to initialize logging", zap.Error(err))
	}
	defer logging.Sync()
	log := logging.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.Up(ctx, database); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}

	stats, err := seed.Run(ctx, database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		log.Fatal("failed to seed database", zap.Error(err))
	}
	log.Info("seed complete", zap.Int("inserts", stats.Inserts), zap.Int("skipped", stats.Skipped))

	srv := newServer(cfg, store.New(database, cfg.BaseCountry), log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.Env))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newServer(cfg config.Config, stores *store.Stores, log *zap.Logger) *server {
	return &server{
		auth:   newAuthService(stores.Users, cfg.SessionHashKey, cfg.SessionBlockKey, !cfg.IsDev(), log),
		stores: stores,
		imports: importer.NewRegistry(importer.Deps{
			Catalog:    stores.Charges,
			Calculator: importer.NewLocalCalculator(stores.Charges, stores.Margins, stores.Rates, stores.BaseCountry),
			Committer:  stores.Products,
			Log:        logging.Named("importer"),
		}),
		uploadDir: cfg.UploadDir,
		log:       log,
	}
}
