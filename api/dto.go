/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes crossing the API boundary. Responses reuse the
  budget package's entity structs directly (they already carry wire
  tags); this file holds the request envelopes and their conversion to
  typed patches.

PATCH CONVERSION:
  Update requests use pointer fields so "not supplied" survives JSON
  decoding, then convert 1:1 to the budget package's typed patches. The
  engine only ever sees fields the caller actually sent.

SEE ALSO:
  - handlers.go: handler implementations using these types
  - budget/patch.go: the typed patches these convert into
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/budget"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// BUDGET ITEM REQUESTS
// =============================================================================

type CreateBudgetItemRequest struct {
	ID                   string          `json:"id,omitempty"`
	Particulars          string          `json:"particulars"`
	TotalBudgetAllocated decimal.Decimal `json:"total_budget_allocated"`
	TotalBudgetUtilized  decimal.Decimal `json:"total_budget_utilized"`
	Mode                 string          `json:"aggregation_mode,omitempty"`
	Reason               string          `json:"reason,omitempty"`
}

func (r CreateBudgetItemRequest) toEntity() budget.BudgetItem {
	return budget.BudgetItem{
		ID:                   r.ID,
		Particulars:          r.Particulars,
		TotalBudgetAllocated: r.TotalBudgetAllocated,
		TotalBudgetUtilized:  r.TotalBudgetUtilized,
		Mode:                 budget.AggregationMode(r.Mode),
	}
}

type UpdateBudgetItemRequest struct {
	Particulars          *string          `json:"particulars"`
	TotalBudgetAllocated *decimal.Decimal `json:"total_budget_allocated"`
	TotalBudgetUtilized  *decimal.Decimal `json:"total_budget_utilized"`
	Mode                 *string          `json:"aggregation_mode"`
	Reason               string           `json:"reason,omitempty"`
}

func (r UpdateBudgetItemRequest) toPatch() budget.BudgetItemPatch {
	return budget.BudgetItemPatch{
		Particulars:          r.Particulars,
		TotalBudgetAllocated: r.TotalBudgetAllocated,
		TotalBudgetUtilized:  r.TotalBudgetUtilized,
		Mode:                 modePtr(r.Mode),
	}
}

// =============================================================================
// PROJECT REQUESTS
// =============================================================================

type CreateProjectRequest struct {
	ID           string `json:"id,omitempty"`
	BudgetItemID string `json:"budget_item_id,omitempty"`
	Title        string `json:"title"`
	CategoryID   string `json:"category_id,omitempty"`
	OfficeID     string `json:"office_id,omitempty"`

	AllocatedBudget decimal.Decimal  `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget,omitempty"`

	ObligatedBudget     decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized decimal.Decimal `json:"total_budget_utilized"`

	Status string `json:"status,omitempty"`
	Mode   string `json:"aggregation_mode,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r CreateProjectRequest) toEntity() budget.Project {
	return budget.Project{
		ID:                  r.ID,
		BudgetItemID:        r.BudgetItemID,
		Title:               r.Title,
		CategoryID:          r.CategoryID,
		OfficeID:            r.OfficeID,
		AllocatedBudget:     r.AllocatedBudget,
		RevisedBudget:       r.RevisedBudget,
		ObligatedBudget:     r.ObligatedBudget,
		TotalBudgetUtilized: r.TotalBudgetUtilized,
		Status:              budget.ProjectStatus(r.Status),
		Mode:                budget.AggregationMode(r.Mode),
	}
}

type UpdateProjectRequest struct {
	BudgetItemID *string `json:"budget_item_id"`
	Title        *string `json:"title"`
	CategoryID   *string `json:"category_id"`
	OfficeID     *string `json:"office_id"`

	AllocatedBudget *decimal.Decimal `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget"`
	ClearRevised    bool             `json:"clear_revised_budget,omitempty"`

	ObligatedBudget     *decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized *decimal.Decimal `json:"total_budget_utilized"`

	Status *string `json:"status"`
	Mode   *string `json:"aggregation_mode"`
	Reason string  `json:"reason,omitempty"`
}

func (r UpdateProjectRequest) toPatch() budget.ProjectPatch {
	return budget.ProjectPatch{
		BudgetItemID:        r.BudgetItemID,
		Title:               r.Title,
		CategoryID:          r.CategoryID,
		OfficeID:            r.OfficeID,
		AllocatedBudget:     r.AllocatedBudget,
		RevisedBudget:       r.RevisedBudget,
		ClearRevised:        r.ClearRevised,
		ObligatedBudget:     r.ObligatedBudget,
		TotalBudgetUtilized: r.TotalBudgetUtilized,
		Status:              projectStatusPtr(r.Status),
		Mode:                modePtr(r.Mode),
	}
}

// =============================================================================
// BREAKDOWN REQUESTS
// =============================================================================

type CreateBreakdownRequest struct {
	ID          string `json:"id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Office      string `json:"office,omitempty"`

	AllocatedBudget decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  decimal.Decimal `json:"budget_utilized"`

	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r CreateBreakdownRequest) toEntity() budget.Breakdown {
	return budget.Breakdown{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		Description:     r.Description,
		Location:        r.Location,
		Office:          r.Office,
		AllocatedBudget: r.AllocatedBudget,
		ObligatedBudget: r.ObligatedBudget,
		BudgetUtilized:  r.BudgetUtilized,
		Status:          budget.BreakdownStatus(r.Status),
	}
}

type UpdateBreakdownRequest struct {
	ProjectID   *string `json:"project_id"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Office      *string `json:"office"`

	AllocatedBudget *decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget *decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  *decimal.Decimal `json:"budget_utilized"`

	Status *string `json:"status"`
	Reason string  `json:"reason,omitempty"`
}

func (r UpdateBreakdownRequest) toPatch() budget.BreakdownPatch {
	return budget.BreakdownPatch{
		ProjectID:       r.ProjectID,
		Description:     r.Description,
		Location:        r.Location,
		Office:          r.Office,
		AllocatedBudget: r.AllocatedBudget,
		ObligatedBudget: r.ObligatedBudget,
		BudgetUtilized:  r.BudgetUtilized,
		Status:          breakdownStatusPtr(r.Status),
	}
}

// =============================================================================
// FUND REQUESTS
// =============================================================================

type CreateFundRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	OfficeID string `json:"office_id,omitempty"`

	AllocatedBudget decimal.Decimal  `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget,omitempty"`

	ObligatedBudget     decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized decimal.Decimal `json:"total_budget_utilized"`

	Status string `json:"status,omitempty"`
	Mode   string `json:"aggregation_mode,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r CreateFundRequest) toEntity() budget.Fund {
	return budget.Fund{
		ID:                  r.ID,
		Title:               r.Title,
		OfficeID:            r.OfficeID,
		AllocatedBudget:     r.AllocatedBudget,
		RevisedBudget:       r.RevisedBudget,
		ObligatedBudget:     r.ObligatedBudget,
		TotalBudgetUtilized: r.TotalBudgetUtilized,
		Status:              budget.ProjectStatus(r.Status),
		Mode:                budget.AggregationMode(r.Mode),
	}
}

type UpdateFundRequest struct {
	Title    *string `json:"title"`
	OfficeID *string `json:"office_id"`

	AllocatedBudget *decimal.Decimal `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget"`
	ClearRevised    bool             `json:"clear_revised_budget,omitempty"`

	ObligatedBudget     *decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized *decimal.Decimal `json:"total_budget_utilized"`

	Status *string `json:"status"`
	Mode   *string `json:"aggregation_mode"`
	Reason string  `json:"reason,omitempty"`
}

func (r UpdateFundRequest) toPatch() budget.FundPatch {
	return budget.FundPatch{
		Title:               r.Title,
		OfficeID:            r.OfficeID,
		AllocatedBudget:     r.AllocatedBudget,
		RevisedBudget:       r.RevisedBudget,
		ClearRevised:        r.ClearRevised,
		ObligatedBudget:     r.ObligatedBudget,
		TotalBudgetUtilized: r.TotalBudgetUtilized,
		Status:              projectStatusPtr(r.Status),
		Mode:                modePtr(r.Mode),
	}
}

// =============================================================================
// FUND BREAKDOWN REQUESTS
// =============================================================================

type CreateFundBreakdownRequest struct {
	ID          string `json:"id,omitempty"`
	FundID      string `json:"fund_id,omitempty"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Office      string `json:"office,omitempty"`

	AllocatedBudget decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  decimal.Decimal `json:"budget_utilized"`

	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (r CreateFundBreakdownRequest) toEntity() budget.FundBreakdown {
	return budget.FundBreakdown{
		ID:              r.ID,
		FundID:          r.FundID,
		Description:     r.Description,
		Location:        r.Location,
		Office:          r.Office,
		AllocatedBudget: r.AllocatedBudget,
		ObligatedBudget: r.ObligatedBudget,
		BudgetUtilized:  r.BudgetUtilized,
		Status:          budget.BreakdownStatus(r.Status),
	}
}

type UpdateFundBreakdownRequest struct {
	FundID      *string `json:"fund_id"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Office      *string `json:"office"`

	AllocatedBudget *decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget *decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  *decimal.Decimal `json:"budget_utilized"`

	Status *string `json:"status"`
	Reason string  `json:"reason,omitempty"`
}

func (r UpdateFundBreakdownRequest) toPatch() budget.FundBreakdownPatch {
	return budget.FundBreakdownPatch{
		FundID:          r.FundID,
		Description:     r.Description,
		Location:        r.Location,
		Office:          r.Office,
		AllocatedBudget: r.AllocatedBudget,
		ObligatedBudget: r.ObligatedBudget,
		BudgetUtilized:  r.BudgetUtilized,
		Status:          breakdownStatusPtr(r.Status),
	}
}

// =============================================================================
// OTHER REQUESTS
// =============================================================================

type RecalculateRequest struct {
	EntityType string `json:"entity_type"`
	ID         string `json:"id"`
}

type SaveReferenceRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

// =============================================================================
// POINTER CONVERSIONS
// =============================================================================

func modePtr(s *string) *budget.AggregationMode {
	if s == nil {
		return nil
	}
	m := budget.AggregationMode(*s)
	return &m
}

func projectStatusPtr(s *string) *budget.ProjectStatus {
	if s == nil {
		return nil
	}
	st := budget.ProjectStatus(*s)
	return &st
}

func breakdownStatusPtr(s *string) *budget.BreakdownStatus {
	if s == nil {
		return nil
	}
	st := budget.BreakdownStatus(*s)
	return &st
}
