// Package lifecycle holds the subscription status transition rules.
package lifecycle

import (
	"slices"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

// Transition represents a valid status change
type Transition struct {
	From model.SubscriptionStatus
	To   model.SubscriptionStatus
}

var validTransitions = map[Transition]bool{
	{model.SubscriptionStatusTrial, model.SubscriptionStatusActive}:      true, // first positive charge paid
	{model.SubscriptionStatusTrial, model.SubscriptionStatusPastDue}:     true, // first positive charge failed
	{model.SubscriptionStatusTrial, model.SubscriptionStatusCancelled}:   true,
	{model.SubscriptionStatusActive, model.SubscriptionStatusPastDue}:    true,
	{model.SubscriptionStatusActive, model.SubscriptionStatusCancelled}:  true,
	{model.SubscriptionStatusPastDue, model.SubscriptionStatusActive}:    true, // retry succeeded
	{model.SubscriptionStatusPastDue, model.SubscriptionStatusCancelled}: true,
}

// CanTransition checks if a status change is allowed. Staying in the same
// non-terminal status is always allowed.
func CanTransition(from, to model.SubscriptionStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	return validTransitions[Transition{from, to}]
}

// ValidTransitionsFrom returns all valid target statuses from the given status
func ValidTransitionsFrom(from model.SubscriptionStatus) []model.SubscriptionStatus {
	targets := make([]model.SubscriptionStatus, 0)
	for t := range validTransitions {
		if t.From == from {
			targets = append(targets, t.To)
		}
	}

	slices.Sort(targets)
	return targets
}
