package memory

import (
	"sort"

	"github.com/clinicore/billing-engine/internal/domain/model"
)

func sortEvents(events []*model.ChargeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CycleIndex != events[j].CycleIndex {
			return events[i].CycleIndex < events[j].CycleIndex
		}
		return events[i].Attempt < events[j].Attempt
	})
}
