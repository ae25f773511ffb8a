/*
rollup.go - Pure rollup calculators

PURPOSE:
  Given a parent and its set of LIVE children, compute the parent's
  derived fields. No I/O, no clocks, fully deterministic: the same
  inputs always produce the same outputs, so these are independently
  testable and safely re-runnable.

RULES:
  Sums        obligated = sum(child.obligated), utilized = sum(child.utilized),
              overwritten only in ModeAuto. ModeAuto with zero live
              children resets sums to zero; ModeManual never touches
              manually entered sums.
  Rate        utilized / effective allocated * 100, and always exactly 0
              when the effective allocated amount is 0. Never divide.
  Balance     effective allocated - utilized. Always recomputed.
  Status      priority order: ongoing/on_track beats delayed beats
              completed — an overall project is not "complete" while any
              part is still active. Empty child sets default to the
              active status. cancelled/on_hold are manual overrides and
              are never rewritten.
  Counters    budget-item status counters are purely derived and always
              recomputed, whatever the aggregation mode.

SEE ALSO:
  - recalc.go: the only caller that persists these results
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/budget"
)

var hundred = decimal.NewFromInt(100)

// utilizationRate returns utilized/allocated as a percentage rounded to
// two places, and zero when allocated is zero.
func utilizationRate(allocated, utilized decimal.Decimal) decimal.Decimal {
	if allocated.IsZero() {
		return decimal.Zero
	}
	return utilized.Div(allocated).Mul(hundred).Round(2)
}

// =============================================================================
// LEAF NORMALIZATION - A breakdown's own derived fields
// =============================================================================

// NormalizeBreakdown recomputes a breakdown's own rate and balance from
// its own amounts. Leaves have no children; this runs at write time.
func NormalizeBreakdown(b budget.Breakdown) budget.Breakdown {
	b.UtilizationRate = utilizationRate(b.AllocatedBudget, b.BudgetUtilized)
	b.Balance = b.AllocatedBudget.Sub(b.BudgetUtilized)
	return b
}

// NormalizeFundBreakdown is NormalizeBreakdown for the fund chain.
func NormalizeFundBreakdown(b budget.FundBreakdown) budget.FundBreakdown {
	b.UtilizationRate = utilizationRate(b.AllocatedBudget, b.BudgetUtilized)
	b.Balance = b.AllocatedBudget.Sub(b.BudgetUtilized)
	return b
}

// =============================================================================
// PROJECT ROLLUP
// =============================================================================

// RollupProject computes a project's derived fields from its live
// breakdowns. Returns the updated project and whether any derived field
// actually changed.
func RollupProject(p budget.Project, live []budget.Breakdown) (budget.Project, bool) {
	out := p

	if p.Mode == budget.ModeAuto {
		obligated := decimal.Zero
		utilized := decimal.Zero
		for _, b := range live {
			obligated = obligated.Add(b.ObligatedBudget)
			utilized = utilized.Add(b.BudgetUtilized)
		}
		out.ObligatedBudget = obligated
		out.TotalBudgetUtilized = utilized

		if !out.Status.Manual() {
			out.Status = deriveProjectStatus(live)
		}
	}

	effective := out.EffectiveBudget()
	out.UtilizationRate = utilizationRate(effective, out.TotalBudgetUtilized)
	out.Balance = effective.Sub(out.TotalBudgetUtilized)

	return out, projectDerivedChanged(p, out)
}

func deriveProjectStatus(live []budget.Breakdown) budget.ProjectStatus {
	var delayed, completed int
	for _, b := range live {
		switch b.Status {
		case budget.BreakdownOngoing:
			return budget.StatusOnTrack
		case budget.BreakdownDelayed:
			delayed++
		case budget.BreakdownCompleted:
			completed++
		}
	}
	switch {
	case delayed > 0:
		return budget.StatusDelayed
	case completed > 0:
		return budget.StatusCompleted
	default:
		// Empty child set: active by default.
		return budget.StatusOnTrack
	}
}

func projectDerivedChanged(before, after budget.Project) bool {
	return !before.ObligatedBudget.Equal(after.ObligatedBudget) ||
		!before.TotalBudgetUtilized.Equal(after.TotalBudgetUtilized) ||
		!before.UtilizationRate.Equal(after.UtilizationRate) ||
		!before.Balance.Equal(after.Balance) ||
		before.Status != after.Status
}

// =============================================================================
// BUDGET ITEM ROLLUP
// =============================================================================

// RollupBudgetItem computes a budget item's derived fields from its live
// projects. Status counters are always recomputed; the utilized sum only
// in ModeAuto.
func RollupBudgetItem(b budget.BudgetItem, live []budget.Project) (budget.BudgetItem, bool) {
	out := b

	if b.Mode == budget.ModeAuto {
		utilized := decimal.Zero
		for _, p := range live {
			utilized = utilized.Add(p.TotalBudgetUtilized)
		}
		out.TotalBudgetUtilized = utilized
	}

	var completed, delayed, onTrack int
	for _, p := range live {
		switch p.Status {
		case budget.StatusCompleted:
			completed++
		case budget.StatusDelayed:
			delayed++
		case budget.StatusOnTrack:
			onTrack++
		}
	}
	out.ProjectCompleted = completed
	out.ProjectDelayed = delayed
	out.ProjectsOnTrack = onTrack

	out.UtilizationRate = utilizationRate(out.TotalBudgetAllocated, out.TotalBudgetUtilized)

	return out, budgetItemDerivedChanged(b, out)
}

func budgetItemDerivedChanged(before, after budget.BudgetItem) bool {
	return !before.TotalBudgetUtilized.Equal(after.TotalBudgetUtilized) ||
		!before.UtilizationRate.Equal(after.UtilizationRate) ||
		before.ProjectCompleted != after.ProjectCompleted ||
		before.ProjectDelayed != after.ProjectDelayed ||
		before.ProjectsOnTrack != after.ProjectsOnTrack
}

// =============================================================================
// FUND ROLLUP
// =============================================================================

// RollupFund mirrors RollupProject for the fund-specific chain.
func RollupFund(f budget.Fund, live []budget.FundBreakdown) (budget.Fund, bool) {
	out := f

	if f.Mode == budget.ModeAuto {
		obligated := decimal.Zero
		utilized := decimal.Zero
		for _, b := range live {
			obligated = obligated.Add(b.ObligatedBudget)
			utilized = utilized.Add(b.BudgetUtilized)
		}
		out.ObligatedBudget = obligated
		out.TotalBudgetUtilized = utilized

		if !out.Status.Manual() {
			out.Status = deriveFundStatus(live)
		}
	}

	effective := out.EffectiveBudget()
	out.UtilizationRate = utilizationRate(effective, out.TotalBudgetUtilized)
	out.Balance = effective.Sub(out.TotalBudgetUtilized)

	return out, fundDerivedChanged(f, out)
}

func deriveFundStatus(live []budget.FundBreakdown) budget.ProjectStatus {
	var delayed, completed int
	for _, b := range live {
		switch b.Status {
		case budget.BreakdownOngoing:
			return budget.StatusOnTrack
		case budget.BreakdownDelayed:
			delayed++
		case budget.BreakdownCompleted:
			completed++
		}
	}
	switch {
	case delayed > 0:
		return budget.StatusDelayed
	case completed > 0:
		return budget.StatusCompleted
	default:
		return budget.StatusOnTrack
	}
}

func fundDerivedChanged(before, after budget.Fund) bool {
	return !before.ObligatedBudget.Equal(after.ObligatedBudget) ||
		!before.TotalBudgetUtilized.Equal(after.TotalBudgetUtilized) ||
		!before.UtilizationRate.Equal(after.UtilizationRate) ||
		!before.Balance.Equal(after.Balance) ||
		before.Status != after.Status
}
