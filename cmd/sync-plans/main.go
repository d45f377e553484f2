package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/clinicore/billing-engine/internal/config"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/infrastructure/database"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider/mercadopago"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/clinicore/billing-engine/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	catalogPath := flag.String("catalog", "", "YAML plan catalog; the built-in catalog is used when empty")
	registerMP := flag.Bool("mercadopago", false, "register plans without a preapproval plan id with Mercado Pago")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Database.Driver != config.DriverPostgres {
		zapLogger.Fatal("Plan sync needs a persistent database", zap.String("driver", cfg.Database.Driver))
	}

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)
	ctx := context.Background()

	plans := model.DefaultPlans()
	if *catalogPath != "" {
		zapLogger.Info("Loading plan catalog from YAML", zap.String("path", *catalogPath))
		plans, err = loadCatalog(*catalogPath)
		if err != nil {
			zapLogger.Fatal("Failed to load plan catalog", zap.Error(err))
		}
	}

	if err := usecase.NewPlanService(repos.Plan, zapLogger).SeedCatalog(ctx, plans); err != nil {
		zapLogger.Fatal("Failed to seed plans", zap.Error(err))
	}

	registered := 0
	if *registerMP {
		mp := cfg.Providers.MercadoPago
		if mp.AccessToken == "" {
			zapLogger.Fatal("Mercado Pago access token is not configured")
		}
		gateway := mercadopago.NewGateway(mercadopago.Config{
			BaseURL:     mp.BaseURL,
			AccessToken: mp.AccessToken,
			PublicKey:   mp.PublicKey,
			BackURL:     mp.BackURL,
			Timeout:     cfg.Providers.RequestTimeout,
		}, zapLogger)

		registered, err = usecase.NewPlanSyncService(repos.Plan, gateway, zapLogger).SyncMercadoPago(ctx)
		if err != nil {
			zapLogger.Fatal("Failed to sync Mercado Pago plans", zap.Error(err))
		}
	}

	zapLogger.Info("Plan sync completed",
		zap.Int("plans_seeded", len(plans)),
		zap.Int("mercadopago_plans_registered", registered))
}
