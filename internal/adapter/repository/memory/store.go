// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized store-wide and are not rolled back
// on error.
package memory

import (
	"context"
	"sync"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/google/uuid"
)

type txKey struct{}

// Store holds all records in memory
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	codeMu    sync.Mutex
	codeLocks map[string]*sync.Mutex

	plans         map[string]*model.Plan
	coupons       map[string]*model.Coupon
	redemptions   []*model.CouponRedemption
	subscriptions map[uuid.UUID]*model.Subscription
	events        []*model.ChargeEvent
	webhooks      map[string]*model.WebhookEvent
	webhookSeq    int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		codeLocks:     make(map[string]*sync.Mutex),
		plans:         make(map[string]*model.Plan),
		coupons:       make(map[string]*model.Coupon),
		subscriptions: make(map[uuid.UUID]*model.Subscription),
		webhooks:      make(map[string]*model.WebhookEvent),
	}
}

// WithinTransaction implements repository.Transactor
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *Store) lockCode(code string) func() {
	s.codeMu.Lock()
	l, ok := s.codeLocks[code]
	if !ok {
		l = &sync.Mutex{}
		s.codeLocks[code] = l
	}
	s.codeMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Store) Plans() repository.PlanRepository                 { return &planRepository{s} }
func (s *Store) Coupons() repository.CouponRepository             { return &couponRepository{s} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return &subscriptionRepository{s} }
func (s *Store) ChargeEvents() repository.ChargeEventRepository   { return &chargeEventRepository{s} }
func (s *Store) Webhooks() repository.WebhookRepository           { return &webhookRepository{s} }

var _ repository.Transactor = (*Store)(nil)
