package database

import (
	"github.com/clinicore/billing-engine/internal/adapter/repository"
	"github.com/clinicore/billing-engine/internal/adapter/repository/memory"
	domainRepo "github.com/clinicore/billing-engine/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Transactor   domainRepo.Transactor
	Plan         domainRepo.PlanRepository
	Coupon       domainRepo.CouponRepository
	Subscription domainRepo.SubscriptionRepository
	ChargeEvent  domainRepo.ChargeEventRepository
	Webhook      domainRepo.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Transactor:   repository.NewTransactor(db),
		Plan:         repository.NewPlanRepository(db, logger),
		Coupon:       repository.NewCouponRepository(db, logger),
		Subscription: repository.NewSubscriptionRepository(db, logger),
		ChargeEvent:  repository.NewChargeEventRepository(db, logger),
		Webhook:      repository.NewWebhookRepository(db, logger),
	}
}

// NewMemoryRepositories backs every repository with one in-memory store
func NewMemoryRepositories() *Repositories {
	store := memory.NewStore()
	return &Repositories{
		Transactor:   store,
		Plan:         store.Plans(),
		Coupon:       store.Coupons(),
		Subscription: store.Subscriptions(),
		ChargeEvent:  store.ChargeEvents(),
		Webhook:      store.Webhooks(),
	}
}
