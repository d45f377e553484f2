package schedule

import (
	"time"

	domainErrors "github.com/clinicore/billing-engine/internal/domain/errors"
	"github.com/clinicore/billing-engine/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Entry is one computed cycle of a schedule
type Entry struct {
	CycleIndex      int             `json:"cycle_index"`
	DueDate         time.Time       `json:"due_date"`
	Amount          decimal.Decimal `json:"amount"`
	DiscountPercent int             `json:"discount_percent"`
	Free            bool            `json:"free"`
}

// Schedule is the forward charge plan of one subscription. Entries run from
// cycle 1 through the second consecutive full-price cycle; use Cycle or
// ExtendTo for anything later.
type Schedule struct {
	Cadence    model.BillingCadence `json:"cadence"`
	BasePrice  decimal.Decimal      `json:"base_price"`
	StartDate  time.Time            `json:"start_date"`
	FreeCycles int                  `json:"free_cycles"`
	Discounted bool                 `json:"discounted"`
	Entries    []Entry              `json:"entries"`
}

// Compute builds the schedule for plan at cadence starting on startDate.
// coupon may be nil.
func Compute(plan *model.Plan, cadence model.BillingCadence, coupon *model.RedemptionResult, startDate time.Time) (*Schedule, error) {
	if plan == nil {
		return nil, domainErrors.NewValidationError("plan_id", "plan is required")
	}
	if !cadence.Valid() {
		return nil, domainErrors.NewValidationError("billing_cadence", "must be monthly or annual")
	}
	base := plan.BasePrice(cadence)
	if !base.IsPositive() {
		return nil, domainErrors.NewValidationError("plan_id", "plan price must be positive")
	}

	s := &Schedule{
		Cadence:   cadence,
		BasePrice: base,
		StartDate: model.DateOf(startDate),
	}
	if coupon != nil {
		if coupon.FreePeriodMonths < 1 {
			return nil, domainErrors.NewValidationError("coupon_code", "free period must be at least one month")
		}
		s.Discounted = true
		s.FreeCycles = ceilDiv(coupon.FreePeriodMonths, cadence.CycleLengthMonths())
	}

	zeroRun := 0
	for i := 1; zeroRun < 2; i++ {
		entry := s.Cycle(i)
		s.Entries = append(s.Entries, entry)
		if !entry.Free && entry.DiscountPercent == 0 {
			zeroRun++
		} else {
			zeroRun = 0
		}
	}
	return s, nil
}

// Cycle computes the entry for any 1-based cycle index
func (s *Schedule) Cycle(i int) Entry {
	entry := Entry{
		CycleIndex: i,
		DueDate:    AddMonths(s.StartDate, (i-1)*s.Cadence.CycleLengthMonths()),
	}

	switch {
	case i <= s.FreeCycles:
		entry.Free = true
		entry.DiscountPercent = 100
		entry.Amount = decimal.Zero
	case s.Discounted:
		entry.DiscountPercent = DiscountForCycle(s.Cadence, i-s.FreeCycles)
		entry.Amount = discounted(s.BasePrice, entry.DiscountPercent)
	default:
		entry.Amount = s.BasePrice.Round(2)
	}
	return entry
}

// ExtendTo appends entries until the schedule covers cycle n
func (s *Schedule) ExtendTo(n int) {
	for i := len(s.Entries) + 1; i <= n; i++ {
		s.Entries = append(s.Entries, s.Cycle(i))
	}
}

// FirstCharge returns the first entry with a positive amount
func (s *Schedule) FirstCharge() Entry {
	for _, e := range s.Entries {
		if e.Amount.IsPositive() {
			return e
		}
	}
	// Entries always end in full-price cycles.
	return s.Cycle(len(s.Entries) + 1)
}

// InitialStatus is trial when cycle 1 costs nothing, otherwise active
func (s *Schedule) InitialStatus() model.SubscriptionStatus {
	if s.Cycle(1).Amount.IsZero() {
		return model.SubscriptionStatusTrial
	}
	return model.SubscriptionStatusActive
}

// ChargeEvents renders the entries as pending charge events for subscriptionID
func (s *Schedule) ChargeEvents(subscriptionID uuid.UUID) []model.ChargeEvent {
	events := make([]model.ChargeEvent, 0, len(s.Entries))
	for _, e := range s.Entries {
		events = append(events, NewChargeEvent(subscriptionID, e))
	}
	return events
}

// NewChargeEvent builds the first pending attempt for entry
func NewChargeEvent(subscriptionID uuid.UUID, e Entry) model.ChargeEvent {
	return model.ChargeEvent{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		CycleIndex:     e.CycleIndex,
		Attempt:        1,
		DueDate:        e.DueDate,
		Amount:         e.Amount,
		Outcome:        model.ChargeOutcomePending,
	}
}

// AddMonths adds months to date, clamping to the last day of the target month
func AddMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func discounted(base decimal.Decimal, pct int) decimal.Decimal {
	return base.Mul(hundred.Sub(decimal.NewFromInt(int64(pct)))).Div(hundred).Round(2)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
