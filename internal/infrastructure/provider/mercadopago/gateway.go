// Package mercadopago implements the payment gateway contract on Mercado
// Pago preapprovals.
package mercadopago

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/infrastructure/provider/gatewayhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	providerName = "mercadopago"
	currencyBRL  = "BRL"

	statusAuthorized = "authorized"
	statusPaused     = "paused"
	statusCancelled  = "cancelled"
	statusPending    = "pending"
)

type Config struct {
	BaseURL       string
	AccessToken   string
	PublicKey     string
	WebhookSecret string
	BackURL       string
	Timeout       time.Duration
}

// Gateway talks to the Mercado Pago preapproval API. Mercado Pago charges
// one fixed amount per cycle, so the discount ramp is followed by updating
// the amount after each paid cycle.
type Gateway struct {
	cfg    Config
	client *gatewayhttp.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	headers := map[string]string{"Authorization": "Bearer " + cfg.AccessToken}
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
// POST /preapproval
func (g *Gateway) CreateSubscription(ctx context.Context, req *provider.CreateSubscriptionRequest) (*provider.CreateSubscriptionResponse, error) {
	body := &preapprovalRequest{
		Reason:            fmt.Sprintf("%s (%s)", req.Plan.Name, req.Cadence),
		ExternalReference: req.SubscriptionID,
		PayerEmail:        req.Customer.Email,
		BackURL:           g.cfg.BackURL,
		AutoRecurring: &autoRecurring{
			Frequency:         req.Cadence.CycleLengthMonths(),
			FrequencyType:     "months",
			StartDate:         model.DateOf(req.FirstChargeDate).Format(time.RFC3339),
			TransactionAmount: amount(req.FirstChargeAmount),
			CurrencyID:        currencyBRL,
		},
	}
	if req.Plan.MercadoPagoPlanID != nil {
		body.PreapprovalPlanID = *req.Plan.MercadoPagoPlanID
	}

	switch m := req.PaymentMethod.(type) {
	case provider.CreditCard:
		if m.Token == "" {
			return nil, domainErrors.NewValidationError("card_token", "card token is required")
		}
		body.CardTokenID = m.Token
		body.Status = statusAuthorized
	case provider.Boleto, provider.Pix:
		// Payer completes the first payment through init_point
		body.Status = statusPending
	default:
		return nil, domainErrors.NewValidationError("payment_method", "unsupported payment method")
	}

	g.logger.Info("MercadoPago: Creating preapproval",
		zap.String("external_reference", req.SubscriptionID),
		zap.String("payment_method", string(req.PaymentMethod.Kind())),
		zap.String("start_date", body.AutoRecurring.StartDate),
		zap.Float64("amount", body.AutoRecurring.TransactionAmount))

	var resp preapprovalResponse
	if err := g.client.Do(ctx, http.MethodPost, "/preapproval", body, &resp); err != nil {
		return nil, err
	}

	return &provider.CreateSubscriptionResponse{
		ProviderSubscriptionID: resp.ID,
		Status:                 resp.Status,
		CheckoutURL:            resp.InitPoint,
		ProviderData: map[string]interface{}{
			"init_point":        resp.InitPoint,
			"next_payment_date": resp.NextPaymentDate,
		},
	}, nil
}

// CancelSubscription
// PUT /preapproval/{id}
func (g *Gateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	current, err := g.get(ctx, providerSubscriptionID)
	if err != nil {
		return err
	}
	if current.Status == statusCancelled {
		g.logger.Info("MercadoPago: Preapproval already cancelled",
			zap.String("preapproval_id", providerSubscriptionID))
		return nil
	}
	return g.setStatus(ctx, providerSubscriptionID, statusCancelled)
}

func (g *Gateway) PauseSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.setStatus(ctx, providerSubscriptionID, statusPaused)
}

func (g *Gateway) ResumeSubscription(ctx context.Context, providerSubscriptionID string) error {
	return g.setStatus(ctx, providerSubscriptionID, statusAuthorized)
}

// UpdateChargeAmount
// PUT /preapproval/{id}
func (g *Gateway) UpdateChargeAmount(ctx context.Context, providerSubscriptionID string, amt decimal.Decimal) error {
	body := &preapprovalRequest{
		AutoRecurring: &autoRecurring{TransactionAmount: amount(amt), CurrencyID: currencyBRL},
	}
	return g.client.Do(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(providerSubscriptionID), body, nil)
}

// TokenizeCard
// POST /v1/card_tokens
func (g *Gateway) TokenizeCard(ctx context.Context, card *provider.CardFields) (*provider.CardToken, error) {
	if err := provider.ValidateCard(card, g.now()); err != nil {
		return nil, err
	}

	body := &cardTokenRequest{
		CardNumber:      card.Number,
		SecurityCode:    card.CVV,
		ExpirationMonth: card.ExpiryMonth,
		ExpirationYear:  card.ExpiryYear,
		Cardholder:      cardholder{Name: card.HolderName},
	}
	if card.HolderTaxID != "" {
		body.Cardholder.Identification = &identification{Type: "CPF", Number: card.HolderTaxID}
	}

	var resp cardTokenResponse
	path := "/v1/card_tokens?public_key=" + url.QueryEscape(g.cfg.PublicKey)
	if err := g.client.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	token := &provider.CardToken{Token: resp.ID, LastFour: resp.LastFourDigits}
	if resp.LastFourDigits == "" {
		token.LastFour = card.LastFour()
	}
	if due, err := time.Parse(time.RFC3339, resp.DateDue); err == nil {
		token.ExpiresAt = &due
	}
	return token, nil
}

// CreatePlan registers a preapproval plan so subscriptions can reference it
// POST /preapproval_plan
func (g *Gateway) CreatePlan(ctx context.Context, plan *model.Plan, cadence model.BillingCadence) (string, error) {
	body := &preapprovalPlanRequest{
		Reason: fmt.Sprintf("%s (%s)", plan.Name, cadence),
		AutoRecurring: &autoRecurring{
			Frequency:         cadence.CycleLengthMonths(),
			FrequencyType:     "months",
			TransactionAmount: amount(plan.BasePrice(cadence)),
			CurrencyID:        currencyBRL,
		},
		BackURL: g.cfg.BackURL,
	}

	var resp preapprovalPlanResponse
	if err := g.client.Do(ctx, http.MethodPost, "/preapproval_plan", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (g *Gateway) VerifySignature(payload []byte, signature string) bool {
	return gatewayhttp.VerifyHMACSHA256(g.cfg.WebhookSecret, payload, signature)
}

func (g *Gateway) get(ctx context.Context, id string) (*preapprovalResponse, error) {
	var resp preapprovalResponse
	if err := g.client.Do(ctx, http.MethodGet, "/preapproval/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *Gateway) setStatus(ctx context.Context, id, status string) error {
	g.logger.Info("MercadoPago: Updating preapproval status",
		zap.String("preapproval_id", id),
		zap.String("status", status))
	return g.client.Do(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(id), &preapprovalRequest{Status: status}, nil)
}

var _ provider.Gateway = (*Gateway)(nil)
