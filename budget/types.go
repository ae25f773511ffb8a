/*
Package budget defines the entity model for the budget tracking engine.

PURPOSE:
  This package contains the domain types for a two-hierarchy government
  budget tracker:

    BudgetItem ── Project ── Breakdown        (general fund)
    Fund (DF)  ── FundBreakdown               (fund-specific chain)

  Parents carry derived financial metrics (utilized sums, utilization
  rates, status roll-ups) that always reflect their live children. The
  engine package owns every rule that computes those fields; this
  package only describes the shapes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entity: common interface every record implements (identity, parent
    reference, soft-delete lifecycle, financial snapshot)
  - Meta: embedded lifecycle block (stamps + soft-delete flags)
  - AggregationMode: tagged Manual/Auto state deciding whether rollup
    overwrites financial fields
  - Financials: the (allocated, utilized, obligated) triple used by
    cascade previews

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every financial amount, never float64
  2. Soft-delete: records are flagged, never physically destroyed
  3. Derived fields are storage, not computation: they are written by the
     recalculation path and read directly everywhere else

SEE ALSO:
  - patch.go: typed partial updates (only caller-supplied fields)
  - activity.go: immutable audit records
  - engine package: rollup, cascade, and audit logic
*/
package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITY TYPES
// =============================================================================

type EntityType string

const (
	TypeBudgetItem    EntityType = "budget_item"
	TypeProject       EntityType = "project"
	TypeBreakdown     EntityType = "breakdown"
	TypeFund          EntityType = "fund"
	TypeFundBreakdown EntityType = "fund_breakdown"
)

// ParseEntityType converts a wire string into an EntityType.
func ParseEntityType(s string) (EntityType, bool) {
	switch EntityType(s) {
	case TypeBudgetItem, TypeProject, TypeBreakdown, TypeFund, TypeFundBreakdown:
		return EntityType(s), true
	}
	return "", false
}

// New returns an empty entity of the given type, ready for unmarshaling.
func New(t EntityType) (Entity, bool) {
	switch t {
	case TypeBudgetItem:
		return &BudgetItem{}, true
	case TypeProject:
		return &Project{}, true
	case TypeBreakdown:
		return &Breakdown{}, true
	case TypeFund:
		return &Fund{}, true
	case TypeFundBreakdown:
		return &FundBreakdown{}, true
	}
	return nil, false
}

// =============================================================================
// STATUSES
// =============================================================================

// ProjectStatus is the five-value status set for mid-level entities.
// cancelled and on_hold are manual-only states: the rollup never derives
// them from children and never overwrites them.
type ProjectStatus string

const (
	StatusOnTrack   ProjectStatus = "on_track"
	StatusDelayed   ProjectStatus = "delayed"
	StatusCompleted ProjectStatus = "completed"
	StatusCancelled ProjectStatus = "cancelled"
	StatusOnHold    ProjectStatus = "on_hold"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusOnTrack, StatusDelayed, StatusCompleted, StatusCancelled, StatusOnHold:
		return true
	}
	return false
}

// Manual reports whether the status is a manual override that rollup
// must not touch.
func (s ProjectStatus) Manual() bool {
	return s == StatusCancelled || s == StatusOnHold
}

// BreakdownStatus is the strict three-value leaf status set.
type BreakdownStatus string

const (
	BreakdownOngoing   BreakdownStatus = "ongoing"
	BreakdownDelayed   BreakdownStatus = "delayed"
	BreakdownCompleted BreakdownStatus = "completed"
)

func (s BreakdownStatus) Valid() bool {
	switch s {
	case BreakdownOngoing, BreakdownDelayed, BreakdownCompleted:
		return true
	}
	return false
}

// =============================================================================
// AGGREGATION MODE
// =============================================================================

// AggregationMode decides whether the rollup calculator overwrites an
// entity's financial fields from its live children. Modeled as a tagged
// state rather than a loose boolean because its interaction with the
// zero-children edge case is easy to get wrong silently:
//
//	ModeAuto   + children     -> sums overwritten from children
//	ModeAuto   + no children  -> sums reset to zero
//	ModeManual + anything     -> manually entered sums left untouched
type AggregationMode string

const (
	ModeManual AggregationMode = "manual"
	ModeAuto   AggregationMode = "auto"
)

func (m AggregationMode) Valid() bool { return m == ModeManual || m == ModeAuto }

// =============================================================================
// META - Lifecycle block embedded in every entity
// =============================================================================

// Meta carries creation/update stamps and the soft-delete block.
// DeleteOp groups records trashed by the same cascade operation so that
// restore only revives its own fallout.
type Meta struct {
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`

	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
	DeleteOp  string     `json:"delete_op,omitempty"`
}

func (m *Meta) IsDeleted() bool    { return m.Deleted }
func (m *Meta) DeleteOpID() string { return m.DeleteOp }

// Init sets creation stamps.
func (m *Meta) Init(at time.Time, by string) {
	m.CreatedAt = at
	m.CreatedBy = by
	m.UpdatedAt = at
	m.UpdatedBy = by
}

// Touch sets update stamps.
func (m *Meta) Touch(at time.Time, by string) {
	m.UpdatedAt = at
	m.UpdatedBy = by
}

// MarkDeleted flags the record as trashed. Idempotent per record: a
// record already flagged under the same operation is left as-is, which
// is what makes cascade retries converge.
func (m *Meta) MarkDeleted(at time.Time, by, op string) {
	if m.Deleted {
		return
	}
	t := at
	m.Deleted = true
	m.DeletedAt = &t
	m.DeletedBy = by
	m.DeleteOp = op
}

// ClearDeleted reverses a soft-delete.
func (m *Meta) ClearDeleted() {
	m.Deleted = false
	m.DeletedAt = nil
	m.DeletedBy = ""
	m.DeleteOp = ""
}

func (m Meta) clone() Meta {
	c := m
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		c.DeletedAt = &t
	}
	return c
}

// =============================================================================
// FINANCIALS - Snapshot triple for previews and totals
// =============================================================================

type Financials struct {
	Allocated decimal.Decimal `json:"allocated"`
	Utilized  decimal.Decimal `json:"utilized"`
	Obligated decimal.Decimal `json:"obligated"`
}

// =============================================================================
// ENTITY - Common interface
// =============================================================================

// RefKey identifies a usage-counted reference table link (category,
// office). Entities report theirs so create/move/delete/restore can keep
// the denormalized counters symmetric.
type RefKey struct {
	Kind RefKind
	ID   string
}

// Entity is implemented by all five record types (pointer receivers).
type Entity interface {
	EntityID() string
	EntityType() EntityType

	// ParentRef returns the owning entity reference, if linked.
	ParentRef() (EntityType, string, bool)

	DisplayName() string

	// References returns the usage-counted reference links held by this
	// entity. Nil for entities without counted references.
	References() []RefKey

	// Financials returns the (allocated, utilized, obligated) snapshot
	// used by cascade previews.
	Financials() Financials

	Clone() Entity

	// Lifecycle (promoted from the embedded Meta block).
	IsDeleted() bool
	DeleteOpID() string
	MarkDeleted(at time.Time, by, op string)
	ClearDeleted()
	Touch(at time.Time, by string)
	Init(at time.Time, by string)
}

// =============================================================================
// BUDGET ITEM - Top level of the general-fund hierarchy
// =============================================================================

// BudgetItem is a top-level budget line ("particulars"). It has no
// parent. TotalBudgetUtilized, UtilizationRate, and the three project
// status counters are derived; the counters are always recomputed, the
// utilized sum only in ModeAuto.
type BudgetItem struct {
	ID          string `json:"id"`
	Particulars string `json:"particulars"`

	TotalBudgetAllocated decimal.Decimal `json:"total_budget_allocated"`
	TotalBudgetUtilized  decimal.Decimal `json:"total_budget_utilized"`
	UtilizationRate      decimal.Decimal `json:"utilization_rate"`

	ProjectCompleted int `json:"project_completed"`
	ProjectDelayed   int `json:"project_delayed"`
	ProjectsOnTrack  int `json:"projects_on_track"`

	Mode AggregationMode `json:"aggregation_mode"`

	Meta
}

func (b *BudgetItem) EntityID() string                     { return b.ID }
func (b *BudgetItem) EntityType() EntityType               { return TypeBudgetItem }
func (b *BudgetItem) ParentRef() (EntityType, string, bool) { return "", "", false }
func (b *BudgetItem) DisplayName() string                  { return b.Particulars }
func (b *BudgetItem) References() []RefKey                 { return nil }

func (b *BudgetItem) Financials() Financials {
	return Financials{Allocated: b.TotalBudgetAllocated, Utilized: b.TotalBudgetUtilized}
}

func (b *BudgetItem) Clone() Entity {
	c := *b
	c.Meta = b.Meta.clone()
	return &c
}

// =============================================================================
// PROJECT - Mid level of the general-fund hierarchy
// =============================================================================

// Project may be unlinked (empty BudgetItemID). ObligatedBudget and
// TotalBudgetUtilized are derived from live breakdowns in ModeAuto;
// UtilizationRate and Balance are always derived from the effective
// budget (revised if present, otherwise allocated).
type Project struct {
	ID           string `json:"id"`
	BudgetItemID string `json:"budget_item_id,omitempty"`
	Title        string `json:"title"`

	CategoryID string `json:"category_id,omitempty"`
	OfficeID   string `json:"office_id,omitempty"`

	AllocatedBudget decimal.Decimal  `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget,omitempty"`

	ObligatedBudget     decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized decimal.Decimal `json:"total_budget_utilized"`
	UtilizationRate     decimal.Decimal `json:"utilization_rate"`
	Balance             decimal.Decimal `json:"balance"`

	Status ProjectStatus   `json:"status"`
	Mode   AggregationMode `json:"aggregation_mode"`

	Meta
}

func (p *Project) EntityID() string       { return p.ID }
func (p *Project) EntityType() EntityType { return TypeProject }
func (p *Project) DisplayName() string    { return p.Title }

func (p *Project) ParentRef() (EntityType, string, bool) {
	if p.BudgetItemID == "" {
		return "", "", false
	}
	return TypeBudgetItem, p.BudgetItemID, true
}

func (p *Project) References() []RefKey {
	var refs []RefKey
	if p.CategoryID != "" {
		refs = append(refs, RefKey{Kind: RefCategory, ID: p.CategoryID})
	}
	if p.OfficeID != "" {
		refs = append(refs, RefKey{Kind: RefOffice, ID: p.OfficeID})
	}
	return refs
}

// EffectiveBudget is the denominator for rate calculations: the revised
// budget when present, otherwise the original allocation.
func (p *Project) EffectiveBudget() decimal.Decimal {
	if p.RevisedBudget != nil {
		return *p.RevisedBudget
	}
	return p.AllocatedBudget
}

func (p *Project) Financials() Financials {
	return Financials{
		Allocated: p.EffectiveBudget(),
		Utilized:  p.TotalBudgetUtilized,
		Obligated: p.ObligatedBudget,
	}
}

func (p *Project) Clone() Entity {
	c := *p
	c.Meta = p.Meta.clone()
	if p.RevisedBudget != nil {
		r := *p.RevisedBudget
		c.RevisedBudget = &r
	}
	return &c
}

// =============================================================================
// BREAKDOWN - Leaf level of the general-fund hierarchy
// =============================================================================

// Breakdown may exist unlinked (empty ProjectID). Location and Office
// are descriptive only and never aggregated. Its own UtilizationRate and
// Balance derive from its own amounts at write time.
type Breakdown struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id,omitempty"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Office      string `json:"office,omitempty"`

	AllocatedBudget decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  decimal.Decimal `json:"budget_utilized"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
	Balance         decimal.Decimal `json:"balance"`

	Status BreakdownStatus `json:"status"`

	Meta
}

func (b *Breakdown) EntityID() string       { return b.ID }
func (b *Breakdown) EntityType() EntityType { return TypeBreakdown }
func (b *Breakdown) DisplayName() string    { return b.Description }
func (b *Breakdown) References() []RefKey   { return nil }

func (b *Breakdown) ParentRef() (EntityType, string, bool) {
	if b.ProjectID == "" {
		return "", "", false
	}
	return TypeProject, b.ProjectID, true
}

func (b *Breakdown) Financials() Financials {
	return Financials{
		Allocated: b.AllocatedBudget,
		Utilized:  b.BudgetUtilized,
		Obligated: b.ObligatedBudget,
	}
}

func (b *Breakdown) Clone() Entity {
	c := *b
	c.Meta = b.Meta.clone()
	return &c
}

// =============================================================================
// FUND (DF) - Top of the fund-specific chain
// =============================================================================

// Fund mirrors Project semantics (effective budget, aggregation mode,
// five-value status) but is a root: it has no parent.
type Fund struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	OfficeID string `json:"office_id,omitempty"`

	AllocatedBudget decimal.Decimal  `json:"allocated_budget"`
	RevisedBudget   *decimal.Decimal `json:"revised_budget,omitempty"`

	ObligatedBudget     decimal.Decimal `json:"obligated_budget"`
	TotalBudgetUtilized decimal.Decimal `json:"total_budget_utilized"`
	UtilizationRate     decimal.Decimal `json:"utilization_rate"`
	Balance             decimal.Decimal `json:"balance"`

	Status ProjectStatus   `json:"status"`
	Mode   AggregationMode `json:"aggregation_mode"`

	Meta
}

func (f *Fund) EntityID() string                     { return f.ID }
func (f *Fund) EntityType() EntityType               { return TypeFund }
func (f *Fund) ParentRef() (EntityType, string, bool) { return "", "", false }
func (f *Fund) DisplayName() string                  { return f.Title }

func (f *Fund) References() []RefKey {
	if f.OfficeID == "" {
		return nil
	}
	return []RefKey{{Kind: RefOffice, ID: f.OfficeID}}
}

func (f *Fund) EffectiveBudget() decimal.Decimal {
	if f.RevisedBudget != nil {
		return *f.RevisedBudget
	}
	return f.AllocatedBudget
}

func (f *Fund) Financials() Financials {
	return Financials{
		Allocated: f.EffectiveBudget(),
		Utilized:  f.TotalBudgetUtilized,
		Obligated: f.ObligatedBudget,
	}
}

func (f *Fund) Clone() Entity {
	c := *f
	c.Meta = f.Meta.clone()
	if f.RevisedBudget != nil {
		r := *f.RevisedBudget
		c.RevisedBudget = &r
	}
	return &c
}

// =============================================================================
// FUND BREAKDOWN - Leaf of the fund-specific chain
// =============================================================================

type FundBreakdown struct {
	ID          string `json:"id"`
	FundID      string `json:"fund_id,omitempty"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Office      string `json:"office,omitempty"`

	AllocatedBudget decimal.Decimal `json:"allocated_budget"`
	ObligatedBudget decimal.Decimal `json:"obligated_budget"`
	BudgetUtilized  decimal.Decimal `json:"budget_utilized"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
	Balance         decimal.Decimal `json:"balance"`

	Status BreakdownStatus `json:"status"`

	Meta
}

func (b *FundBreakdown) EntityID() string       { return b.ID }
func (b *FundBreakdown) EntityType() EntityType { return TypeFundBreakdown }
func (b *FundBreakdown) DisplayName() string    { return b.Description }
func (b *FundBreakdown) References() []RefKey   { return nil }

func (b *FundBreakdown) ParentRef() (EntityType, string, bool) {
	if b.FundID == "" {
		return "", "", false
	}
	return TypeFund, b.FundID, true
}

func (b *FundBreakdown) Financials() Financials {
	return Financials{
		Allocated: b.AllocatedBudget,
		Utilized:  b.BudgetUtilized,
		Obligated: b.ObligatedBudget,
	}
}

func (b *FundBreakdown) Clone() Entity {
	c := *b
	c.Meta = b.Meta.clone()
	return &c
}
