/*
patch.go - Typed partial updates

PURPOSE:
  Update operations must only touch fields the caller explicitly
  supplied: the audit diff attributes every changed field to the actor,
  so applying unset fields would fabricate intent. Pointer fields make
  "not supplied" distinguishable from "set to zero".

  Derived fields (utilization rates, balances, rollup sums in auto
  mode, status counters) have no patch entry at all: the recalculation
  path is the only writer for those.
*/
package budget

import "github.com/shopspring/decimal"

// =============================================================================
// PATCHES - One per entity type, pointer fields mean "supplied"
// =============================================================================

type BudgetItemPatch struct {
	Particulars          *string
	TotalBudgetAllocated *decimal.Decimal
	// TotalBudgetUtilized is only meaningful for ModeManual items; in
	// ModeAuto the next recalculation overwrites it.
	TotalBudgetUtilized *decimal.Decimal
	Mode                *AggregationMode
}

func (p BudgetItemPatch) Apply(b *BudgetItem) {
	if p.Particulars != nil {
		b.Particulars = *p.Particulars
	}
	if p.TotalBudgetAllocated != nil {
		b.TotalBudgetAllocated = *p.TotalBudgetAllocated
	}
	if p.TotalBudgetUtilized != nil {
		b.TotalBudgetUtilized = *p.TotalBudgetUtilized
	}
	if p.Mode != nil {
		b.Mode = *p.Mode
	}
}

type ProjectPatch struct {
	// BudgetItemID moves the project to another budget item; an empty
	// string unlinks it.
	BudgetItemID *string
	Title        *string
	CategoryID   *string
	OfficeID     *string

	AllocatedBudget *decimal.Decimal
	RevisedBudget   *decimal.Decimal
	ClearRevised    bool

	// Manual-mode financial entry; overwritten by rollup in ModeAuto.
	ObligatedBudget     *decimal.Decimal
	TotalBudgetUtilized *decimal.Decimal

	Status *ProjectStatus
	Mode   *AggregationMode
}

func (p ProjectPatch) Apply(proj *Project) {
	if p.BudgetItemID != nil {
		proj.BudgetItemID = *p.BudgetItemID
	}
	if p.Title != nil {
		proj.Title = *p.Title
	}
	if p.CategoryID != nil {
		proj.CategoryID = *p.CategoryID
	}
	if p.OfficeID != nil {
		proj.OfficeID = *p.OfficeID
	}
	if p.AllocatedBudget != nil {
		proj.AllocatedBudget = *p.AllocatedBudget
	}
	if p.ClearRevised {
		proj.RevisedBudget = nil
	} else if p.RevisedBudget != nil {
		r := *p.RevisedBudget
		proj.RevisedBudget = &r
	}
	if p.ObligatedBudget != nil {
		proj.ObligatedBudget = *p.ObligatedBudget
	}
	if p.TotalBudgetUtilized != nil {
		proj.TotalBudgetUtilized = *p.TotalBudgetUtilized
	}
	if p.Status != nil {
		proj.Status = *p.Status
	}
	if p.Mode != nil {
		proj.Mode = *p.Mode
	}
}

type BreakdownPatch struct {
	// ProjectID moves the breakdown to another project; an empty string
	// unlinks it.
	ProjectID   *string
	Description *string
	Location    *string
	Office      *string

	AllocatedBudget *decimal.Decimal
	ObligatedBudget *decimal.Decimal
	BudgetUtilized  *decimal.Decimal

	Status *BreakdownStatus
}

func (p BreakdownPatch) Apply(b *Breakdown) {
	if p.ProjectID != nil {
		b.ProjectID = *p.ProjectID
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Location != nil {
		b.Location = *p.Location
	}
	if p.Office != nil {
		b.Office = *p.Office
	}
	if p.AllocatedBudget != nil {
		b.AllocatedBudget = *p.AllocatedBudget
	}
	if p.ObligatedBudget != nil {
		b.ObligatedBudget = *p.ObligatedBudget
	}
	if p.BudgetUtilized != nil {
		b.BudgetUtilized = *p.BudgetUtilized
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
}

type FundPatch struct {
	Title    *string
	OfficeID *string

	AllocatedBudget *decimal.Decimal
	RevisedBudget   *decimal.Decimal
	ClearRevised    bool

	ObligatedBudget     *decimal.Decimal
	TotalBudgetUtilized *decimal.Decimal

	Status *ProjectStatus
	Mode   *AggregationMode
}

func (p FundPatch) Apply(f *Fund) {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.OfficeID != nil {
		f.OfficeID = *p.OfficeID
	}
	if p.AllocatedBudget != nil {
		f.AllocatedBudget = *p.AllocatedBudget
	}
	if p.ClearRevised {
		f.RevisedBudget = nil
	} else if p.RevisedBudget != nil {
		r := *p.RevisedBudget
		f.RevisedBudget = &r
	}
	if p.ObligatedBudget != nil {
		f.ObligatedBudget = *p.ObligatedBudget
	}
	if p.TotalBudgetUtilized != nil {
		f.TotalBudgetUtilized = *p.TotalBudgetUtilized
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
	if p.Mode != nil {
		f.Mode = *p.Mode
	}
}

type FundBreakdownPatch struct {
	// FundID moves the breakdown to another fund; an empty string
	// unlinks it.
	FundID      *string
	Description *string
	Location    *string
	Office      *string

	AllocatedBudget *decimal.Decimal
	ObligatedBudget *decimal.Decimal
	BudgetUtilized  *decimal.Decimal

	Status *BreakdownStatus
}

func (p FundBreakdownPatch) Apply(b *FundBreakdown) {
	if p.FundID != nil {
		b.FundID = *p.FundID
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Location != nil {
		b.Location = *p.Location
	}
	if p.Office != nil {
		b.Office = *p.Office
	}
	if p.AllocatedBudget != nil {
		b.AllocatedBudget = *p.AllocatedBudget
	}
	if p.ObligatedBudget != nil {
		b.ObligatedBudget = *p.ObligatedBudget
	}
	if p.BudgetUtilized != nil {
		b.BudgetUtilized = *p.BudgetUtilized
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
}
