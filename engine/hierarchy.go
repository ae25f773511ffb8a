/*
hierarchy.go - Declarative hierarchy registry

PURPOSE:
  One table drives every multi-level walk in the engine: recalculation
  climbs parent references, cascades descend child types, and both get
  their wiring here instead of hard-coded per-pair call chains. Adding a
  hierarchy level means adding one registry row and one rollup adapter.

THE TWO CHAINS:
  budget_item -> project -> breakdown
  fund        -> fund_breakdown

  Parent references live on the entities themselves (ParentRef); the
  registry only records each level's child type and rollup function.
*/
package engine

import "github.com/warp/budget-engine/budget"

type levelSpec struct {
	// childType is the entity type one level down; empty for leaves.
	childType budget.EntityType

	// rollup recomputes the parent's derived fields from its live
	// children. Nil for leaves.
	rollup func(parent budget.Entity, children []budget.Entity) (budget.Entity, bool)
}

var hierarchy = map[budget.EntityType]levelSpec{
	budget.TypeBudgetItem:    {childType: budget.TypeProject, rollup: rollupBudgetItemEntity},
	budget.TypeProject:       {childType: budget.TypeBreakdown, rollup: rollupProjectEntity},
	budget.TypeBreakdown:     {},
	budget.TypeFund:          {childType: budget.TypeFundBreakdown, rollup: rollupFundEntity},
	budget.TypeFundBreakdown: {},
}

// =============================================================================
// ROLLUP ADAPTERS - Entity-interface shims over the typed calculators
// =============================================================================

func rollupBudgetItemEntity(parent budget.Entity, children []budget.Entity) (budget.Entity, bool) {
	b := parent.(*budget.BudgetItem)
	projects := make([]budget.Project, 0, len(children))
	for _, c := range children {
		projects = append(projects, *c.(*budget.Project))
	}
	out, changed := RollupBudgetItem(*b, projects)
	return &out, changed
}

func rollupProjectEntity(parent budget.Entity, children []budget.Entity) (budget.Entity, bool) {
	p := parent.(*budget.Project)
	breakdowns := make([]budget.Breakdown, 0, len(children))
	for _, c := range children {
		breakdowns = append(breakdowns, *c.(*budget.Breakdown))
	}
	out, changed := RollupProject(*p, breakdowns)
	return &out, changed
}

func rollupFundEntity(parent budget.Entity, children []budget.Entity) (budget.Entity, bool) {
	f := parent.(*budget.Fund)
	breakdowns := make([]budget.FundBreakdown, 0, len(children))
	for _, c := range children {
		breakdowns = append(breakdowns, *c.(*budget.FundBreakdown))
	}
	out, changed := RollupFund(*f, breakdowns)
	return &out, changed
}
