// Package pagseguro implements the payment gateway contract on PagSeguro
// recurring subscriptions.
package pagseguro

import (
	"context"
	"net/http"
	"net/url"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/domain/schedule"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider/gatewayhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerName = "pagseguro"
	apiVersion   = "4.0"
)

type Config struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	Timeout       time.Duration
}

// Gateway talks to the PagSeguro subscriptions API. PagSeguro carries the
// whole discount ramp as a per-cycle percentage progression.
type Gateway struct {
	cfg    Config
	client *gatewayhttp.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.Token,
		"x-api-version": apiVersion,
	}
	return &Gateway{
		cfg:    cfg,
		client: gatewayhttp.NewClient(providerName, cfg.BaseURL, cfg.Timeout, headers, decodeError, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (g *Gateway) GetProviderName() string {
	return providerName
}

// CreateSubscription
// POST /subscriptions
func (g *Gateway) CreateSubscription(ctx context.Context, req *provider.CreateSubscriptionRequest) (*provider.CreateSubscriptionResponse, error) {
	frequency := "MONTHLY"
	if req.Cadence == model.CadenceAnnual {
		frequency = "YEARLY"
	}

	body := &subscriptionRequest{
		ReferenceID: req.SubscriptionID,
		Plan: planRef{
			ID:        req.Plan.ID,
			Name:      req.Plan.Name,
			Amount:    money{Value: cents(req.Plan.BasePrice(req.Cadence)), Currency: req.Plan.Currency},
			Frequency: frequency,
		},
		Customer: customer{
			ReferenceID: req.Customer.ID,
			Name:        req.Customer.Name,
			Email:       req.Customer.Email,
			TaxID:       req.Customer.TaxID,
		},
		StartDate: model.DateOf(req.FirstChargeDate).Format("2006-01-02"),
	}
	if body.Plan.Amount.Currency == "" {
		body.Plan.Amount.Currency = "BRL"
	}
	if req.Schedule != nil {
		body.DiscountProgression = discountProgression(req.Schedule)
		body.StartDate = req.Schedule.StartDate.Format("2006-01-02")
	}

	switch m := req.PaymentMethod.(type) {
	case provider.CreditCard:
		if m.Token == "" {
			return nil, domainErrors.NewValidationError("card_token", "card token is required")
		}
		body.PaymentMethod = paymentMethod{Type: "CREDIT_CARD", Card: &cardRef{ID: m.Token, Holder: &holder{Name: m.HolderName}}}
	case provider.Boleto:
		if req.Customer.TaxID == "" {
			return nil, domainErrors.NewValidationError("tax_id", "tax id is required for boleto")
		}
		body.PaymentMethod = paymentMethod{Type: "BOLETO", Boleto: &boletoOptions{DueDays: m.DueDays}}
	case provider.Pix:
		body.PaymentMethod = paymentMethod{Type: "PIX", Pix: &pixOptions{ExpiresInMinutes: m.ExpiresInMinutes}}
	default:
		return nil, domainErrors.NewValidationError("payment_method", "unsupported payment method")
	}

	g.logger.Info("PagSeguro: Creating subscription",
		zap.String("reference_id", req.SubscriptionID),
		zap.String("payment_method", body.PaymentMethod.Type),
		zap.Int("discount_steps", len(body.DiscountProgression)))

	var resp subscriptionResponse
	if err := g.client.Do(ctx, http.MethodPost, "/subscriptions", body, &resp); err != nil {
		return nil, err
	}

	out := &provider.CreateSubscriptionResponse{
		ProviderSubscriptionID: resp.ID,
		Status:                 resp.Status,
		ProviderData:           map[string]interface{}{"reference_id": resp.ReferenceID},
	}
	for _, l := range resp.Links {
		if l.Rel == "PAY" {
			out.CheckoutURL = l.Href
		}
	}
	return out, nil
}

// discountProgression renders the schedule up to its steady state as
// merged runs of equal discount percentages.
func discountProgression(s *schedule.Schedule) []discountStep {
	var steps []discountStep
	for _, e := range s.Entries {
		if e.DiscountPercent == 0 {
			break
		}
		if n := len(steps); n > 0 && steps[n-1].Value == e.DiscountPercent {
			steps[n-1].Cycles++
			continue
		}
		steps = append(steps, discountStep{Cycles: 1, Value: e.DiscountPercent, Type: "PERCENTAGE"})
	}
	return steps
}

// CancelSubscription
// PUT /subscriptions/{id}/cancel
func (g *Gateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	var current subscriptionResponse
	if err := g.client.Do(ctx, http.MethodGet, g.path(providerSubscriptionID, ""), nil, &current); err != nil {
		return err
	}
	if isCancelled(current.Status) {
		g.logger.Info("PagSeguro: Subscription already cancelled",
			zap.String("subscription_id", providerSubscriptionID))
		return nil
	}
	return g.client.Do(ctx, http.MethodPut, g.path(providerSubscriptionID, "/cancel"), nil, nil)
}

// PauseSubscription
// PUT /subscriptions/{id}/suspend
func (g *Gateway) PauseSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.client.Do(ctx, http.MethodPut, g.path(providerSubscriptionID, "/suspend"), nil, nil)
}

// ResumeSubscription
// PUT /subscriptions/{id}/activate
func (g *Gateway) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.client.Do(ctx, http.MethodPut, g.path(providerSubscriptionID, "/activate"), nil, nil)
}

// UpdateChargeAmount is a no-op: the discount progression already carries
// every cycle's amount.
func (g *Gateway) UpdateChargeAmount(_ context.Context, _ string, _ decimal.Decimal) error {
	return nil
}

// TokenizeCard
// POST /tokens/cards
func (g *Gateway) TokenizeCard(ctx context.Context, card *provider.CardFields) (*provider.CardToken, error) {
	if err := provider.ValidateCard(card, g.now()); err != nil {
		return nil, err
	}

	body := &cardTokenRequest{
		Number:       card.Number,
		ExpMonth:     card.ExpiryMonth,
		ExpYear:      card.ExpiryYear,
		SecurityCode: card.CVV,
		Holder:       holder{Name: card.HolderName, TaxID: card.HolderTaxID},
	}

	var resp cardTokenResponse
	if err := g.client.Do(ctx, http.MethodPost, "/tokens/cards", body, &resp); err != nil {
		return nil, err
	}

	token := &provider.CardToken{Token: resp.ID, LastFour: resp.LastDigits, Brand: resp.Brand}
	if token.LastFour == "" {
		token.LastFour = card.LastFour()
	}
	if exp, err := time.Parse(time.RFC3339, resp.ExpiresAt); err == nil {
		token.ExpiresAt = &exp
	}
	return token, nil
}

func (g *Gateway) VerifySignature(payload []byte, signature string) bool {
	return gatewayhttp.VerifyHMACSHA256(g.cfg.WebhookSecret, payload, signature)
}

func (g *Gateway) path(id, suffix string) string {
	return "/subscriptions/" + url.PathEscape(id) + suffix
}

var _ provider.Gateway = (*Gateway)(nil)
