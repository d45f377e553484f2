package database

import (
	"fmt"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var enumTypes = []struct {
	name   string
	values string
}{
	{"subscription_status", `'trial', 'active', 'past_due', 'cancelled'`},
	{"charge_outcome", `'pending', 'paid', 'failed'`},
	{"webhook_status", `'pending', 'processed', 'ignored', 'failed'`},
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist before auto-migrate references them
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Plan{},
		&model.Coupon{},
		&model.CouponRedemption{},
		&model.Subscription{},
		&model.ChargeEvent{},
		&model.WebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func createCustomTypes(db *gorm.DB) error {
	for _, t := range enumTypes {
		var exists bool
		if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, t.name).Scan(&exists).Error; err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := db.Exec(fmt.Sprintf(`CREATE TYPE %s AS ENUM (%s)`, t.name, t.values)).Error; err != nil {
			return fmt.Errorf("failed to create type %s: %w", t.name, err)
		}
	}
	return nil
}

// createCustomIndexes creates indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		// One attempt number per cycle
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_charge_events_attempt ON charge_events (subscription_id, cycle_index, attempt)`,
		`CREATE INDEX IF NOT EXISTS idx_charge_events_payment ON charge_events (subscription_id, provider_payment_id) WHERE provider_payment_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions (next_charge_date) WHERE status <> 'cancelled'`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (created_at) WHERE status IN ('pending', 'failed')`,
		`CREATE INDEX IF NOT EXISTS idx_coupons_active ON coupons (created_at DESC) WHERE is_active`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
