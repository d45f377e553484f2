package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/lifecycle"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/internal/domain/provider"
	"github.com/clinicore/billing-engine/internal/domain/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult reports what happened to one webhook delivery
type IngestResult struct {
	EventID   string              `json:"event_id"`
	Kind      provider.EventKind  `json:"kind"`
	Status    model.WebhookStatus `json:"status"`
	Duplicate bool                `json:"duplicate"`
	Reason    string              `json:"reason,omitempty"`
}

// WebhookService turns provider deliveries into subscription state changes
type WebhookService struct {
	webhookRepo   repository.WebhookRepository
	subRepo       repository.SubscriptionRepository
	subscriptions *SubscriptionService
	gateways      GatewayResolver
	logger        *zap.Logger
}

func NewWebhookService(
	webhookRepo repository.WebhookRepository,
	subRepo repository.SubscriptionRepository,
	subscriptions *SubscriptionService,
	gateways GatewayResolver,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		webhookRepo:   webhookRepo,
		subRepo:       subRepo,
		subscriptions: subscriptions,
		gateways:      gateways,
		logger:        logger,
	}
}

// Ingest verifies, stores and processes one delivery. Redeliveries of a
// stored (provider, event id) are acknowledged without processing unless
// the stored event is still pending or failed. A processing error is
// returned with the result so the provider delivers the event again.
func (s *WebhookService) Ingest(ctx context.Context, providerName string, payload []byte, signature string) (*IngestResult, error) {
	gateway, err := s.gateways.GetGatewayFromString(providerName)
	if err != nil {
		return nil, err
	}
	providerName = gateway.GetProviderName()

	if !gateway.VerifySignature(payload, signature) {
		s.logger.Warn("Webhook signature mismatch", zap.String("provider", providerName))
		return nil, domainErrors.ErrInvalidSignature
	}

	evt, err := gateway.TranslateWebhook(payload)
	if err != nil {
		return nil, &domainErrors.ValidationError{Field: "payload", Message: err.Error()}
	}
	if evt.EventID == "" {
		sum := sha256.Sum256(payload)
		evt.EventID = hex.EncodeToString(sum[:])
	}

	record := &model.WebhookEvent{
		Provider:               providerName,
		EventID:                evt.EventID,
		EventType:              evt.EventType,
		Kind:                   string(evt.Kind),
		ProviderSubscriptionID: evt.ProviderSubscriptionID,
		Status:                 model.WebhookStatusPending,
		Payload:                payload,
	}
	created, err := s.webhookRepo.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}

	result := &IngestResult{EventID: evt.EventID, Kind: evt.Kind}
	if created && record.Status == model.WebhookStatusFailed {
		s.logger.Info("Reprocessing webhook",
			zap.String("provider", providerName),
			zap.String("event_id", evt.EventID),
			zap.String("previous_status", string(record.Status)))
	}
	if !created {
		s.logger.Info("Duplicate webhook ignored",
			zap.String("provider", providerName),
			zap.String("event_id", evt.EventID),
			zap.String("reason", "duplicate delivery"))
		result.Duplicate = true
		result.Status = model.WebhookStatusIgnored
		result.Reason = "duplicate delivery"
		return result, nil
	}

	status, reason, procErr := s.process(ctx, providerName, evt)
	result.Status = status
	result.Reason = reason

	lastError := ""
	if procErr != nil {
		lastError = procErr.Error()
	}
	if err := s.webhookRepo.MarkStatus(ctx, record.ID, status, lastError); err != nil {
		s.logger.Error("Failed to record webhook status",
			zap.Int64("webhook_event_id", record.ID),
			zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("provider", providerName),
		zap.String("event_id", evt.EventID),
		zap.String("event_type", evt.EventType),
		zap.String("kind", string(evt.Kind)),
		zap.String("status", string(status)),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	if procErr != nil {
		s.logger.Error("Webhook processing failed", append(fields, zap.Error(procErr))...)
		return result, procErr
	}
	s.logger.Info("Webhook handled", fields...)
	return result, nil
}

func (s *WebhookService) process(ctx context.Context, providerName string, evt *provider.DomainEvent) (model.WebhookStatus, string, error) {
	switch {
	case evt.Kind.IsPayment(), evt.Kind == provider.EventSubscriptionCancelled:
	default:
		return model.WebhookStatusIgnored, "no action for event kind", nil
	}

	sub, err := s.locate(ctx, providerName, evt)
	if err != nil {
		return model.WebhookStatusFailed, "", err
	}
	if sub == nil {
		return model.WebhookStatusIgnored, "subscription not found", nil
	}

	if evt.Kind == provider.EventSubscriptionCancelled {
		if _, err := s.subscriptions.MarkCancelled(ctx, sub.ID, "cancelled at provider"); err != nil {
			return model.WebhookStatusFailed, "", err
		}
		return model.WebhookStatusProcessed, "", nil
	}

	outcome := model.ChargeOutcomePaid
	if evt.Kind == provider.EventPaymentFailed {
		outcome = model.ChargeOutcomeFailed
	}
	decision, err := s.subscriptions.RecordPaymentOutcome(ctx, sub.ID, lifecycle.PaymentOutcome{
		CycleIndex:        evt.CycleIndex,
		Outcome:           outcome,
		ProviderPaymentID: evt.ProviderPaymentID,
		At:                evt.OccurredAt,
	})
	if err != nil {
		return model.WebhookStatusFailed, "", err
	}
	if decision.Ignored() {
		return model.WebhookStatusIgnored, decision.Reason, nil
	}
	return model.WebhookStatusProcessed, "", nil
}

// locate finds the subscription by provider id, falling back to the
// external reference we sent at creation
func (s *WebhookService) locate(ctx context.Context, providerName string, evt *provider.DomainEvent) (*model.Subscription, error) {
	if evt.ProviderSubscriptionID != "" {
		sub, err := s.subRepo.GetByProviderSubscriptionID(ctx, providerName, evt.ProviderSubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to find subscription: %w", err)
		}
		if sub != nil {
			return sub, nil
		}
	}
	if evt.ExternalReference == "" {
		return nil, nil
	}
	id, err := uuid.Parse(evt.ExternalReference)
	if err != nil {
		return nil, nil
	}
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	if sub != nil && sub.Provider != providerName {
		return nil, nil
	}
	return sub, nil
}
