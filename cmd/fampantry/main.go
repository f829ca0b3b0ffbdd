package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vbonduro/fampantry/internal/auth"
	"github.com/vbonduro/fampantry/internal/client"
	"github.com/vbonduro/fampantry/internal/config"
	"github.com/vbonduro/fampantry/internal/db"
	"github.com/vbonduro/fampantry/internal/logging"
	"github.com/vbonduro/fampantry/internal/lookup"
	"github.com/vbonduro/fampantry/internal/lookup/claude"
	"github.com/vbonduro/fampantry/internal/lookup/openfoodfacts"
	"github.com/vbonduro/fampantry/internal/metrics"
	"github.com/vbonduro/fampantry/internal/store"
	"github.com/vbonduro/fampantry/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	docs := store.NewDocumentStore(database, cfg.DBDriver, logger)
	defer docs.Close()
	provider := auth.NewPasswordProvider(store.NewAccountStore(database, cfg.DBDriver))
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	m := metrics.New()
	lookups := newLookupService(cfg, logger)

	registry := web.NewRegistry(func() *client.Client {
		return client.New(client.Deps{
			Docs:     docs,
			Identity: provider,
			Lookup:   lookups,
			Observer: m,
			Logger:   logger,
		})
	}, tokens, cfg.SessionIdle, m, logger)
	server := web.NewServer(registry, tokens, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.TestMode {
		cfg.DBDriver = db.DriverSQLite
		return db.OpenForTesting()
	}
	return db.Open(cfg.DBDriver, cfg.DSN())
}

func newLookupService(cfg *config.Config, logger *slog.Logger) *lookup.Service {
	if cfg.TestMode {
		logger.Info("test mode: product lookup disabled")
		return lookup.NewService(nil, nil, cfg.LookupTimeout, logger)
	}

	var categorizer lookup.Categorizer
	if cfg.ClaudeAPIKey != "" {
		logger.Info("using Claude category suggestions", "model", cfg.ClaudeModel)
		categorizer = claude.NewCategorizer(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	}
	products := openfoodfacts.NewClient(cfg.ProductLookupURL, cfg.LookupTimeout)
	return lookup.NewService(products, categorizer, cfg.LookupTimeout, logger)
}
