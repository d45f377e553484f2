package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinicore/billing-engine/internal/config"
	"github.com/clinicore/billing-engine/internal/infrastructure/crypto"
	"github.com/clinicore/billing-engine/internal/infrastructure/database"
	"github.com/clinicore/billing-engine/internal/infrastructure/events"
	grpcServer "github.com/clinicore/billing-engine/internal/infrastructure/grpc"
	httpServer "github.com/clinicore/billing-engine/internal/infrastructure/http"
	"github.com/clinicore/billing-engine/internal/infrastructure/lock"
	"github.com/clinicore/billing-engine/internal/infrastructure/mail"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider"
	"github.com/clinicore/billing-engine/internal/usecase"
	"github.com/clinicore/billing-engine/internal/worker"
	"github.com/clinicore/billing-engine/pkg/logger"
	"github.com/clinicore/billing-engine/pkg/messaging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Local development keeps secrets in .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Billing engine stopped with error", zap.Error(err))
	}
	zapLogger.Info("Servers shut down successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	gateways, err := provider.NewFactory(&cfg.Providers, logger)
	if err != nil {
		return fmt.Errorf("failed to configure payment providers: %w", err)
	}

	var encryption crypto.EncryptionService
	if cfg.Service.EncryptionKey != "" {
		aes, err := crypto.NewAESEncryptionService(cfg.Service.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to initialize encryption: %w", err)
		}
		encryption = aes
	} else {
		logger.Warn("No encryption key configured, customer tax ids will not be stored")
	}

	publisher, locker, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	notifier := mail.NewNopNotifier()
	if cfg.Mail.Enabled {
		notifier = mail.NewSMTPNotifier(cfg.Mail, logger)
	}

	plans := usecase.NewPlanService(repos.Plan, logger)
	if cfg.Service.SeedPlans || cfg.Database.Driver == config.DriverMemory {
		if err := plans.Seed(ctx); err != nil {
			return fmt.Errorf("failed to seed plans: %w", err)
		}
	}
	coupons := usecase.NewCouponService(repos.Coupon, repos.Plan, logger)
	subscriptions := usecase.NewSubscriptionService(
		repos.Transactor, repos.Subscription, repos.ChargeEvent, repos.Plan,
		gateways, publisher, notifier, locker, logger)
	services := httpServer.Services{
		Plans:         plans,
		Coupons:       coupons,
		CouponAdmin:   usecase.NewCouponAdminService(repos.Coupon, logger),
		Checkout:      usecase.NewCheckoutService(repos.Transactor, repos.Plan, repos.Subscription, repos.ChargeEvent, coupons, gateways, encryption, publisher, logger),
		Subscriptions: subscriptions,
		Webhooks:      usecase.NewWebhookService(repos.Webhook, repos.Subscription, subscriptions, gateways, logger),
	}

	httpSrv := httpServer.NewServer(cfg, logger, services)
	grpcSrv := grpcServer.NewServer(cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if cfg.Server.GRPC.Port != 0 {
		g.Go(grpcSrv.Start)
	}
	if cfg.Worker.Enabled {
		settlement := worker.NewSettlementWorker(subscriptions, cfg.Worker.Interval, cfg.Worker.BatchSize, logger)
		g.Go(func() error { return settlement.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if cfg.Server.GRPC.Port != 0 {
			if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("grpc shutdown: %w", err))
			}
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func openRepositories(cfg *config.Config, logger *zap.Logger) (*database.Repositories, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return database.NewMemoryRepositories(), func() {}, nil
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if err := database.Migrate(db, logger); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return database.NewRepositories(db, logger), closeDB, nil
}

// openRedis wires event publishing and cross-instance locking when Redis is
// enabled, falling back to no-op publishing and in-process locks
func openRedis(cfg *config.Config, logger *zap.Logger) (events.Publisher, lock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		return events.NewNopPublisher(), lock.NewLocalLocker(), func() {}, nil
	}

	client, err := messaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	closeRedis := func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	publisher := events.NewChannelPublisher(messaging.NewPublisherFromClient(client), cfg.Redis.Channel, logger)
	locker := lock.NewRedisLocker(client, cfg.Service.Name+":lock:", cfg.Redis.LockTTL)
	logger.Info("Redis enabled",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("channel", cfg.Redis.Channel))
	return publisher, locker, closeRedis, nil
}
