package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/google/uuid"
)

type couponRepository struct {
	s *Store
}

func (r *couponRepository) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.coupons[model.NormalizeCouponCode(code)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *couponRepository) List(_ context.Context, filter repository.CouponFilter) ([]*model.Coupon, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	prefix := model.NormalizeCouponCode(filter.CodePrefix)
	coupons := make([]*model.Coupon, 0)
	for _, c := range r.s.coupons {
		if filter.Active != nil && c.IsActive != *filter.Active {
			continue
		}
		if filter.PlanRestriction != "" && c.PlanRestriction != filter.PlanRestriction {
			continue
		}
		if prefix != "" && !strings.HasPrefix(c.Code, prefix) {
			continue
		}
		cp := *c
		coupons = append(coupons, &cp)
	}
	sort.Slice(coupons, func(i, j int) bool {
		if coupons[i].CreatedAt.Equal(coupons[j].CreatedAt) {
			return coupons[i].Code < coupons[j].Code
		}
		return coupons[i].CreatedAt.After(coupons[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(coupons) {
			return []*model.Coupon{}, nil
		}
		coupons = coupons[filter.Offset:]
	}
	if filter.Limit > 0 && len(coupons) > filter.Limit {
		coupons = coupons[:filter.Limit]
	}
	return coupons, nil
}

func (r *couponRepository) Create(_ context.Context, coupon *model.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.coupons[coupon.Code]; ok {
		return domainErrors.ErrCouponCodeTaken
	}
	now := time.Now()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	cp := *coupon
	r.s.coupons[coupon.Code] = &cp
	return nil
}

func (r *couponRepository) Update(_ context.Context, coupon *model.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.coupons[coupon.Code]
	if !ok {
		return domainErrors.ErrCouponNotFound
	}
	coupon.CreatedAt = existing.CreatedAt
	coupon.UpdatedAt = time.Now()
	cp := *coupon
	r.s.coupons[coupon.Code] = &cp
	return nil
}

func (r *couponRepository) SetUsesCount(_ context.Context, code string, usesCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.coupons[model.NormalizeCouponCode(code)]
	if !ok {
		return domainErrors.ErrCouponNotFound
	}
	c.UsesCount = usesCount
	c.UpdatedAt = time.Now()
	return nil
}

func (r *couponRepository) Redeem(_ context.Context, code string, subscriptionID uuid.UUID, planID string, check repository.RedeemCheck) (*model.Coupon, error) {
	code = model.NormalizeCouponCode(code)
	unlock := r.s.lockCode(code)
	defer unlock()

	r.s.mu.RLock()
	stored, ok := r.s.coupons[code]
	var snapshot model.Coupon
	if ok {
		snapshot = *stored
	}
	redeemed := r.redeemedLocked(code, subscriptionID)
	r.s.mu.RUnlock()

	if !ok {
		return nil, domainErrors.ErrCouponNotFound
	}
	if redeemed {
		return nil, domainErrors.ErrAlreadyRedeemed
	}
	if check != nil {
		if err := check(&snapshot); err != nil {
			return nil, err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok = r.s.coupons[code]
	if !ok || stored.UsesCount >= stored.MaxUses {
		return nil, domainErrors.ErrConcurrencyConflict
	}
	stored.UsesCount++
	stored.UpdatedAt = time.Now()
	r.s.redemptions = append(r.s.redemptions, &model.CouponRedemption{
		ID:             uuid.New(),
		CouponCode:     code,
		SubscriptionID: subscriptionID,
		PlanID:         planID,
		RedeemedAt:     stored.UpdatedAt,
	})

	cp := *stored
	return &cp, nil
}

func (r *couponRepository) redeemedLocked(code string, subscriptionID uuid.UUID) bool {
	for _, red := range r.s.redemptions {
		if red.CouponCode == code && red.SubscriptionID == subscriptionID {
			return true
		}
	}
	return false
}

func (r *couponRepository) ListRedemptions(_ context.Context, code string) ([]*model.CouponRedemption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	code = model.NormalizeCouponCode(code)
	out := make([]*model.CouponRedemption, 0)
	for _, red := range r.s.redemptions {
		if red.CouponCode == code {
			cp := *red
			out = append(out, &cp)
		}
	}
	return out, nil
}
