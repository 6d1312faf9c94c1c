package budget

import (
	"sort"

	"github.com/forPelevin/reelcut/internal/types"
)

// epsilon absorbs float residue left after subtracting allotments, so a
// budget filled to within a microsecond is treated as spent.
const epsilon = 1e-6

// Allocate orders clips by policy and greedily hands out duration until the
// budget is spent. Single pass, no backtracking: the same input always
// yields the same plan. Ties keep discovery order.
func Allocate(clips []types.SourceClip, budget float64, policy types.Policy) types.SelectionPlan {
	ordered := append([]types.SourceClip(nil), clips...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if policy == types.ShortestFirst {
			return ordered[i].Duration < ordered[j].Duration
		}
		return ordered[i].Duration > ordered[j].Duration
	})

	plan := types.SelectionPlan{Budget: budget, Policy: policy}
	consumed := 0.0
	for _, c := range ordered {
		remaining := budget - consumed
		if remaining <= epsilon {
			break
		}
		take := min(c.Duration, remaining)
		if take <= 0 {
			continue
		}
		plan.Entries = append(plan.Entries, types.PlanEntry{Clip: c, Allotted: take})
		consumed += take
	}
	return plan
}
