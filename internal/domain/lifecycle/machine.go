package lifecycle

import (
	"time"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

// PaymentOutcome is a provider-reported result for one cycle
type PaymentOutcome struct {
	CycleIndex        int
	Outcome           model.ChargeOutcome
	ProviderPaymentID string
	At                time.Time
}

// Action tells the caller how to record an outcome in the charge log
type Action int

const (
	// ActionIgnore leaves the subscription and the charge log untouched
	ActionIgnore Action = iota
	// ActionSettle sets the outcome on the pending event of the cycle
	ActionSettle
	// ActionAppend appends a new attempt for the cycle
	ActionAppend
)

func (a Action) String() string {
	switch a {
	case ActionSettle:
		return "settle"
	case ActionAppend:
		return "append"
	default:
		return "ignore"
	}
}

// Ignore reasons
const (
	ReasonCancelled         = "subscription cancelled"
	ReasonNonTerminal       = "outcome is not terminal"
	ReasonStaleCycle        = "cycle older than current cycle"
	ReasonFutureCycle       = "cycle not yet current"
	ReasonAlreadyPaid       = "cycle already paid"
	ReasonDuplicateFailure  = "duplicate failure for cycle"
	ReasonDuplicatePayment  = "payment already recorded for another cycle"
	ReasonFreeCycle         = "free cycle cannot fail"
	ReasonTransitionBlocked = "transition not allowed"
)

// Decision is the result of applying an outcome to a subscription
type Decision struct {
	Action  Action
	Reason  string
	Status  model.SubscriptionStatus
	Advance bool
}

// Ignored reports whether the outcome must be dropped
func (d Decision) Ignored() bool {
	return d.Action == ActionIgnore
}

func ignore(sub *model.Subscription, reason string) Decision {
	return Decision{Action: ActionIgnore, Reason: reason, Status: sub.Status}
}

// Apply decides the effect of outcome on sub. latest is the most recent
// charge event recorded for outcome.CycleIndex, or nil. Apply never mutates
// its arguments, so replaying the same outcome is safe.
func Apply(sub *model.Subscription, latest *model.ChargeEvent, outcome PaymentOutcome) Decision {
	switch {
	case sub.Status.IsTerminal():
		return ignore(sub, ReasonCancelled)
	case !outcome.Outcome.IsTerminal():
		return ignore(sub, ReasonNonTerminal)
	case outcome.CycleIndex < sub.CurrentCycleIndex:
		return ignore(sub, ReasonStaleCycle)
	case outcome.CycleIndex > sub.CurrentCycleIndex:
		return ignore(sub, ReasonFutureCycle)
	}

	if outcome.Outcome == model.ChargeOutcomeFailed && latest != nil && latest.Amount.IsZero() {
		return ignore(sub, ReasonFreeCycle)
	}

	action := ActionAppend
	if latest != nil {
		switch latest.Outcome {
		case model.ChargeOutcomePaid:
			return ignore(sub, ReasonAlreadyPaid)
		case model.ChargeOutcomeFailed:
			if outcome.Outcome == model.ChargeOutcomeFailed && latest.ProviderPaymentID == outcome.ProviderPaymentID {
				return ignore(sub, ReasonDuplicateFailure)
			}
		case model.ChargeOutcomePending:
			action = ActionSettle
		}
	}

	next := model.SubscriptionStatusPastDue
	advance := false
	if outcome.Outcome == model.ChargeOutcomePaid {
		next = model.SubscriptionStatusActive
		advance = true
		if sub.Status == model.SubscriptionStatusTrial && latest != nil && latest.Amount.IsZero() {
			next = model.SubscriptionStatusTrial
		}
	}

	if !CanTransition(sub.Status, next) {
		return ignore(sub, ReasonTransitionBlocked)
	}
	return Decision{Action: action, Status: next, Advance: advance}
}

// ApplyPayment is Apply for an outcome whose provider payment may already
// be in the charge log. prior is the latest charge event carrying
// outcome.ProviderPaymentID, or nil. A payment recorded against another
// cycle is not applied again: providers notify one payment several times
// under different notification ids, and an outcome without a cycle index
// resolves to the current cycle. A payment that failed may still be
// reported paid.
func ApplyPayment(sub *model.Subscription, latest, prior *model.ChargeEvent, outcome PaymentOutcome) Decision {
	if prior != nil && !sub.Status.IsTerminal() && prior.CycleIndex != outcome.CycleIndex {
		if prior.Outcome == model.ChargeOutcomePaid || prior.Outcome == outcome.Outcome {
			return ignore(sub, ReasonDuplicatePayment)
		}
	}
	return Apply(sub, latest, outcome)
}

// CanCancel reports whether sub can still move to cancelled. Cancelling a
// cancelled subscription is a no-op, not an error.
func CanCancel(sub *model.Subscription) bool {
	return CanTransition(sub.Status, model.SubscriptionStatusCancelled)
}
