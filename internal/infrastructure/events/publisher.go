// Package events publishes subscription lifecycle changes for other services.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/clinicore/billing-engine/pkg/messaging"
	"go.uber.org/zap"
)

// StatusChanged is published whenever a subscription changes status
type StatusChanged struct {
	SubscriptionID string                   `json:"subscription_id"`
	CustomerID     string                   `json:"customer_id"`
	PlanID         string                   `json:"plan_id"`
	From           model.SubscriptionStatus `json:"from"`
	To             model.SubscriptionStatus `json:"to"`
	CycleIndex     int                      `json:"cycle_index"`
	Reason         string                   `json:"reason,omitempty"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

// NewStatusChanged builds the event for sub moving from one status to its current one
func NewStatusChanged(sub *model.Subscription, from model.SubscriptionStatus, reason string, at time.Time) StatusChanged {
	return StatusChanged{
		SubscriptionID: sub.ID.String(),
		CustomerID:     sub.CustomerID,
		PlanID:         sub.PlanID,
		From:           from,
		To:             sub.Status,
		CycleIndex:     sub.CurrentCycleIndex,
		Reason:         reason,
		OccurredAt:     at.UTC(),
	}
}

// Publisher publishes lifecycle events
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
}

// ChannelPublisher publishes events as JSON on a single channel
type ChannelPublisher struct {
	publisher messaging.Publisher
	channel   string
	logger    *zap.Logger
}

func NewChannelPublisher(publisher messaging.Publisher, channel string, logger *zap.Logger) *ChannelPublisher {
	return &ChannelPublisher{publisher: publisher, channel: channel, logger: logger}
}

func (p *ChannelPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	if err := p.publisher.Publish(ctx, p.channel, evt); err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}
	p.logger.Debug("Status change published",
		zap.String("channel", p.channel),
		zap.String("subscription_id", evt.SubscriptionID),
		zap.String("to", string(evt.To)))
	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishStatusChanged(context.Context, StatusChanged) error {
	return nil
}
