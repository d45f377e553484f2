// Package schedule computes forward billing schedules from a plan price, a
// cadence and an optional coupon.
package schedule

import "github.com/clinicore/billing-engine/internal/domain/model"

// DiscountEntry is one explicit row of a cadence's discount table
type DiscountEntry struct {
	CycleIndex      int `json:"cycle_index"`
	DiscountPercent int `json:"discount_percent"`
}

// Explicit entries only. Every later cycle is full price.
var discountTables = map[model.BillingCadence][]int{
	model.CadenceMonthly: {100, 75, 50, 25},
	model.CadenceAnnual:  {100, 25, 50, 75, 85},
}

// DiscountForCycle returns the discount percent for a 1-based cycle index
// counted from the first cycle after the free period. Indexes outside the
// table return 0.
func DiscountForCycle(cadence model.BillingCadence, cycleIndex int) int {
	table := discountTables[cadence]
	if cycleIndex < 1 || cycleIndex > len(table) {
		return 0
	}
	return table[cycleIndex-1]
}

// DiscountTable returns a copy of the explicit discount entries for cadence
func DiscountTable(cadence model.BillingCadence) []DiscountEntry {
	table := discountTables[cadence]
	entries := make([]DiscountEntry, len(table))
	for i, pct := range table {
		entries[i] = DiscountEntry{CycleIndex: i + 1, DiscountPercent: pct}
	}
	return entries
}
