package usecase

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/clinicore/billing-engine/internal/infrastructure/crypto"
	"github.com/clinicore/billing-engine/internal/infrastructure/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const compensationTimeout = 15 * time.Second

// QuoteRequest asks what a plan would cost with an optional coupon
type QuoteRequest struct {
	PlanID     string               `json:"plan_id"`
	Cadence    model.BillingCadence `json:"billing_cadence"`
	CouponCode string               `json:"coupon_code,omitempty"`
}

// Quote is the priced schedule shown before payment
type Quote struct {
	Plan          *model.Plan              `json:"plan"`
	Coupon        *model.RedemptionResult  `json:"coupon,omitempty"`
	Schedule      *schedule.Schedule       `json:"schedule"`
	FirstCharge   schedule.Entry           `json:"first_charge"`
	InitialStatus model.SubscriptionStatus `json:"initial_status"`
}

// PaymentInput carries the chosen payment method. Card is required for
// credit_card and ignored otherwise.
type PaymentInput struct {
	Kind             provider.PaymentMethodKind `json:"kind"`
	Card             *provider.CardFields       `json:"card,omitempty"`
	BoletoDueDays    int                        `json:"boleto_due_days,omitempty"`
	PixExpiresInMins int                        `json:"pix_expires_in_minutes,omitempty"`
}

// CheckoutRequest starts a subscription. Customer ID and email come from
// the authenticated identity.
type CheckoutRequest struct {
	QuoteRequest
	Provider string            `json:"provider,omitempty"`
	Customer provider.Customer `json:"customer"`
	Phone    string            `json:"phone,omitempty"`
	Payment  PaymentInput      `json:"payment"`
}

// CheckoutResult is a created subscription
type CheckoutResult struct {
	Subscription *model.Subscription `json:"subscription"`
	Schedule     *schedule.Schedule  `json:"schedule"`
	// CheckoutURL is set for boleto and pix payers
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// CheckoutService orchestrates coupon validation, schedule computation, the
// provider call and persistence of a new subscription
type CheckoutService struct {
	transactor repository.Transactor
	planRepo   repository.PlanRepository
	subRepo    repository.SubscriptionRepository
	chargeRepo repository.ChargeEventRepository
	coupons    *CouponService
	gateways   GatewayResolver
	encryption crypto.EncryptionService
	publisher  events.Publisher
	logger     *zap.Logger
	now        Clock
}

// NewCheckoutService creates a checkout service. encryption may be nil, in
// which case tax ids are not stored.
func NewCheckoutService(
	transactor repository.Transactor,
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	chargeRepo repository.ChargeEventRepository,
	coupons *CouponService,
	gateways GatewayResolver,
	encryption crypto.EncryptionService,
	publisher events.Publisher,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		transactor: transactor,
		planRepo:   planRepo,
		subRepo:    subRepo,
		chargeRepo: chargeRepo,
		coupons:    coupons,
		gateways:   gateways,
		encryption: encryption,
		publisher:  publisher,
		logger:     logger,
		now:        systemClock,
	}
}

// SetClock replaces the time source
func (s *CheckoutService) SetClock(clock Clock) {
	s.now = clock
}

// Quote prices req starting today without side effects
func (s *CheckoutService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	today := model.DateOf(s.now())
	plan, redemption, err := s.resolve(ctx, req, today)
	if err != nil {
		return nil, err
	}

	sched, err := schedule.Compute(plan, req.Cadence, redemption, today)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Plan:          plan,
		Coupon:        redemption,
		Schedule:      sched,
		FirstCharge:   sched.FirstCharge(),
		InitialStatus: sched.InitialStatus(),
	}, nil
}

// Checkout creates the subscription at the provider and persists it. The
// coupon redemption, the subscription row and its pending schedule are
// written in one transaction; if that fails the provider subscription is
// cancelled.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckout(&req); err != nil {
		return nil, err
	}

	today := model.DateOf(s.now())
	plan, redemption, err := s.resolve(ctx, req.QuoteRequest, today)
	if err != nil {
		return nil, err
	}

	subID := uuid.New()
	sched, err := schedule.Compute(plan, req.Cadence, redemption, today)
	if err != nil {
		return nil, err
	}

	gateway, err := s.gateways.GetGatewayFromString(req.Provider)
	if err != nil {
		return nil, err
	}

	method, err := s.paymentMethod(ctx, gateway, req.Payment)
	if err != nil {
		return nil, err
	}

	first := sched.FirstCharge()
	resp, err := gateway.CreateSubscription(ctx, &provider.CreateSubscriptionRequest{
		SubscriptionID:    subID.String(),
		Customer:          req.Customer,
		Plan:              plan,
		Cadence:           req.Cadence,
		FirstChargeDate:   first.DueDate,
		FirstChargeAmount: first.Amount,
		PaymentMethod:     method,
		Schedule:          sched,
	})
	if err != nil {
		s.logger.Warn("Provider rejected subscription",
			zap.String("provider", gateway.GetProviderName()),
			zap.String("plan_id", plan.ID),
			zap.String("kind", string(domainErrors.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	sub := &model.Subscription{
		ID:                     subID,
		CustomerID:             req.Customer.ID,
		CustomerEmail:          req.Customer.Email,
		CustomerName:           req.Customer.Name,
		PlanID:                 plan.ID,
		BillingCadence:         req.Cadence,
		Status:                 sched.InitialStatus(),
		StartDate:              sched.StartDate,
		NextChargeDate:         sched.Entries[0].DueDate,
		CurrentCycleIndex:      1,
		Provider:               gateway.GetProviderName(),
		ProviderSubscriptionID: resp.ProviderSubscriptionID,
		PaymentMethod:          string(method.Kind()),
		ProviderData:           resp.ProviderData,
	}
	if redemption != nil {
		code := redemption.Code
		sub.AppliedCouponCode = &code
		sub.FreePeriodMonths = redemption.FreePeriodMonths
	}
	if err := s.sealTaxID(sub, req.Customer.TaxID); err != nil {
		s.compensate(ctx, gateway, resp.ProviderSubscriptionID, err)
		return nil, err
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if redemption != nil {
			if _, err := s.coupons.Redeem(ctx, redemption.Code, plan.ID, subID, today); err != nil {
				return err
			}
		}
		if err := s.subRepo.Create(ctx, sub); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		pending := sched.ChargeEvents(subID)
		evts := make([]*model.ChargeEvent, len(pending))
		for i := range pending {
			evts[i] = &pending[i]
		}
		if err := s.chargeRepo.Append(ctx, evts...); err != nil {
			return fmt.Errorf("failed to store schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		s.compensate(ctx, gateway, resp.ProviderSubscriptionID, err)
		return nil, err
	}

	s.logger.Info("Subscription created",
		zap.String("subscription_id", subID.String()),
		zap.String("customer_id", sub.CustomerID),
		zap.String("plan_id", sub.PlanID),
		zap.String("cadence", string(sub.BillingCadence)),
		zap.String("provider", sub.Provider),
		zap.String("provider_subscription_id", sub.ProviderSubscriptionID),
		zap.String("status", string(sub.Status)),
		zap.Int("free_cycles", sched.FreeCycles),
		zap.String("first_charge_amount", first.Amount.StringFixed(2)))

	evt := events.NewStatusChanged(sub, "", "checkout", s.now())
	if err := s.publisher.PublishStatusChanged(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish subscription creation",
			zap.String("subscription_id", subID.String()),
			zap.Error(err))
	}

	return &CheckoutResult{Subscription: sub, Schedule: sched, CheckoutURL: resp.CheckoutURL}, nil
}

func (s *CheckoutService) resolve(ctx context.Context, req QuoteRequest, today time.Time) (*model.Plan, *model.RedemptionResult, error) {
	if req.PlanID == "" {
		return nil, nil, domainErrors.NewValidationError("plan_id", "is required")
	}
	if !req.Cadence.Valid() {
		return nil, nil, domainErrors.NewValidationError("billing_cadence", "must be monthly or annual")
	}

	plan, err := s.planRepo.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if plan == nil {
		return nil, nil, fmt.Errorf("%w: %s", domainErrors.ErrPlanNotFound, req.PlanID)
	}

	if req.CouponCode == "" {
		return plan, nil, nil
	}
	redemption, err := s.coupons.Validate(ctx, req.CouponCode, plan.ID, today)
	if err != nil {
		return nil, nil, err
	}
	return plan, redemption, nil
}

func (s *CheckoutService) paymentMethod(ctx context.Context, gateway provider.Gateway, in PaymentInput) (provider.PaymentMethod, error) {
	switch in.Kind {
	case provider.PaymentMethodCreditCard:
		token, err := gateway.TokenizeCard(ctx, in.Card)
		if err != nil {
			return nil, err
		}
		return provider.CreditCard{Token: token.Token, HolderName: in.Card.HolderName, LastFour: token.LastFour}, nil
	case provider.PaymentMethodBoleto:
		days := in.BoletoDueDays
		if days <= 0 {
			days = 3
		}
		return provider.Boleto{DueDays: days}, nil
	case provider.PaymentMethodPix:
		mins := in.PixExpiresInMins
		if mins <= 0 {
			mins = 30
		}
		return provider.Pix{ExpiresInMinutes: mins}, nil
	}
	return nil, domainErrors.NewValidationError("payment.kind", "must be credit_card, boleto or pix")
}

func (s *CheckoutService) sealTaxID(sub *model.Subscription, taxID string) error {
	if taxID == "" || s.encryption == nil {
		return nil
	}
	ciphertext, iv, err := s.encryption.Encrypt(taxID, sub.ID.String())
	if err != nil {
		return fmt.Errorf("failed to encrypt tax id: %w", err)
	}
	sub.TaxIDCiphertext = ciphertext
	sub.TaxIDIV = iv
	return nil
}

// compensate cancels a provider subscription whose local record could not
// be written. It runs even when the request context is already cancelled.
func (s *CheckoutService) compensate(ctx context.Context, gateway provider.Gateway, providerSubscriptionID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := gateway.CancelSubscription(ctx, providerSubscriptionID); err != nil {
		s.logger.Error("Failed to cancel orphaned provider subscription",
			zap.String("provider", gateway.GetProviderName()),
			zap.String("provider_subscription_id", providerSubscriptionID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return
	}
	s.logger.Warn("Provider subscription cancelled after local failure",
		zap.String("provider", gateway.GetProviderName()),
		zap.String("provider_subscription_id", providerSubscriptionID),
		zap.NamedError("cause", cause))
}

func validateCheckout(req *CheckoutRequest) error {
	if req.Customer.ID == "" {
		return domainErrors.NewValidationError("customer.id", "is required")
	}
	if req.Customer.Email == "" {
		return domainErrors.NewValidationError("customer.email", "is required")
	}
	if req.Payment.Kind == provider.PaymentMethodCreditCard && req.Payment.Card == nil {
		return domainErrors.NewValidationError("payment.card", "is required for credit_card")
	}
	return nil
}
