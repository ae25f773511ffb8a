/*
mutations.go - Gated create/update entry points

PURPOSE:
  Every mutating operation follows the same shape:

    permission gate -> reference validation -> store write ->
    recalculate parent chain -> activity log

  Validation and authorization fail fast, before any store write. Once
  the write is applied, recalculation and logging failures are reported
  to the operational channel instead of failing the request: a later
  retrigger converges stale ancestors.

SNAPSHOT ORDER:
  The "next" audit snapshot is captured right after the caller's fields
  are applied and BEFORE recalculation, so rollup fallout never shows up
  as a user-intended change.

COUNTER SYMMETRY:
  When an update moves a counted reference (category/office), the old
  counter is decremented before the new one is incremented, avoiding
  transient double-counting during the move.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// SHARED STEPS
// =============================================================================

// requireLiveParent verifies a parent reference points at an existing,
// non-trashed entity.
func (e *Engine) requireLiveParent(ctx context.Context, pt budget.EntityType, pid string) error {
	if pid == "" {
		return nil
	}
	parent, err := e.Store.Get(ctx, pt, pid)
	if err != nil {
		if IsNotFound(err) {
			return &NotFoundError{Type: pt, ID: pid}
		}
		return err
	}
	if parent.IsDeleted() {
		return &ValidationError{Field: string(pt) + "_id", Message: fmt.Sprintf("%s %q is in trash", pt, pid)}
	}
	return nil
}

// validateReferences checks that every given reference exists and is
// active. Runs before any store write.
func (e *Engine) validateReferences(ctx context.Context, refs []budget.RefKey) error {
	for _, ref := range refs {
		r, err := e.Store.Reference(ctx, ref.Kind, ref.ID)
		if err != nil {
			if IsNotFound(err) {
				return &ValidationError{
					Field:   string(ref.Kind) + "_id",
					Message: fmt.Sprintf("%s %q does not exist", ref.Kind, ref.ID),
				}
			}
			return err
		}
		if !r.Active {
			return &ValidationError{
				Field:   string(ref.Kind) + "_id",
				Message: fmt.Sprintf("%s %q is inactive", ref.Kind, ref.ID),
			}
		}
	}
	return nil
}

// refDiff splits reference links into those removed and those added by
// an update.
func refDiff(prev, next []budget.RefKey) (removed, added []budget.RefKey) {
	prevSet := map[budget.RefKey]bool{}
	for _, r := range prev {
		prevSet[r] = true
	}
	nextSet := map[budget.RefKey]bool{}
	for _, r := range next {
		nextSet[r] = true
	}
	for _, r := range prev {
		if !nextSet[r] {
			removed = append(removed, r)
		}
	}
	for _, r := range next {
		if !prevSet[r] {
			added = append(added, r)
		}
	}
	return removed, added
}

// create runs the common tail of every typed create: parent check,
// reference validation, insert, counters, recalculation, audit.
func (e *Engine) create(ctx context.Context, actor Actor, ent budget.Entity, reason string) error {
	t := ent.EntityType()
	if pt, pid, ok := ent.ParentRef(); ok {
		if err := e.requireLiveParent(ctx, pt, pid); err != nil {
			return err
		}
	}
	if err := e.validateReferences(ctx, ent.References()); err != nil {
		return err
	}

	ent.Init(e.now(), actor.ID)
	if err := e.Store.Insert(ctx, ent); err != nil {
		return err
	}
	e.acquireReferences(ctx, ent)

	next := budget.SnapshotOf(ent)
	if _, err := e.Recalculate(ctx, t, ent.EntityID()); err != nil {
		e.logf("create %s/%s: recalculate: %v", t, ent.EntityID(), err)
	}
	e.LogActivity(ctx, actor, budget.ActionCreated, t, ent.EntityID(), nil, next, reason)
	return nil
}

// finishUpdate persists an updated entity and runs counters,
// recalculation for both affected parent chains, and the audit entry.
func (e *Engine) finishUpdate(ctx context.Context, actor Actor, ent budget.Entity, prev budget.Fields, removed, added []budget.RefKey, oldParent *nodeRef, reason string) error {
	t := ent.EntityType()
	ent.Touch(e.now(), actor.ID)
	if err := e.Store.Put(ctx, ent); err != nil {
		return err
	}

	// Old counter first, then new.
	for _, r := range removed {
		if err := e.Store.AdjustUsage(ctx, r.Kind, r.ID, -1); err != nil {
			e.logf("update %s/%s: release %s %q: %v", t, ent.EntityID(), r.Kind, r.ID, err)
		}
	}
	for _, r := range added {
		if err := e.Store.AdjustUsage(ctx, r.Kind, r.ID, 1); err != nil {
			e.logf("update %s/%s: acquire %s %q: %v", t, ent.EntityID(), r.Kind, r.ID, err)
		}
	}

	next := budget.SnapshotOf(ent)
	if _, err := e.Recalculate(ctx, t, ent.EntityID()); err != nil {
		e.logf("update %s/%s: recalculate: %v", t, ent.EntityID(), err)
	}
	// A reparented entity leaves a stale chain behind.
	if oldParent != nil {
		if _, err := e.Recalculate(ctx, oldParent.t, oldParent.id); err != nil && !IsNotFound(err) {
			e.logf("update %s/%s: recalculate former parent %s/%s: %v", t, ent.EntityID(), oldParent.t, oldParent.id, err)
		}
	}

	e.LogActivity(ctx, actor, budget.ActionUpdated, t, ent.EntityID(), prev, next, reason)
	return nil
}

// loadLive fetches a non-trashed entity for update.
func (e *Engine) loadLive(ctx context.Context, t budget.EntityType, id string) (budget.Entity, error) {
	ent, err := e.Store.Get(ctx, t, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: t, ID: id}
		}
		return nil, err
	}
	if ent.IsDeleted() {
		return nil, &ValidationError{Message: fmt.Sprintf("%s %q is in trash; restore it first", t, id)}
	}
	return ent, nil
}

// =============================================================================
// BUDGET ITEMS
// =============================================================================

func (e *Engine) CreateBudgetItem(ctx context.Context, actor Actor, b budget.BudgetItem, reason string) (*budget.BudgetItem, error) {
	if err := e.authorize(ctx, actor, "create", budget.TypeBudgetItem); err != nil {
		return nil, err
	}
	if b.Particulars == "" {
		return nil, &ValidationError{Field: "particulars", Message: "required"}
	}
	if b.Mode == "" {
		b.Mode = budget.ModeAuto
	}
	if !b.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	if b.ID == "" {
		b.ID = e.newID()
	}
	if err := e.create(ctx, actor, &b, reason); err != nil {
		return nil, err
	}
	return e.GetBudgetItem(ctx, b.ID)
}

func (e *Engine) UpdateBudgetItem(ctx context.Context, actor Actor, id string, patch budget.BudgetItemPatch, reason string) (*budget.BudgetItem, error) {
	if err := e.authorize(ctx, actor, "update", budget.TypeBudgetItem); err != nil {
		return nil, err
	}
	ent, err := e.loadLive(ctx, budget.TypeBudgetItem, id)
	if err != nil {
		return nil, err
	}
	b := ent.(*budget.BudgetItem)

	prev := budget.SnapshotOf(b)
	patch.Apply(b)
	if !b.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	if b.Particulars == "" {
		return nil, &ValidationError{Field: "particulars", Message: "required"}
	}

	if err := e.finishUpdate(ctx, actor, b, prev, nil, nil, nil, reason); err != nil {
		return nil, err
	}
	return e.GetBudgetItem(ctx, id)
}

func (e *Engine) GetBudgetItem(ctx context.Context, id string) (*budget.BudgetItem, error) {
	ent, err := e.Store.Get(ctx, budget.TypeBudgetItem, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: budget.TypeBudgetItem, ID: id}
		}
		return nil, err
	}
	return ent.(*budget.BudgetItem), nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (e *Engine) CreateProject(ctx context.Context, actor Actor, p budget.Project, reason string) (*budget.Project, error) {
	if err := e.authorize(ctx, actor, "create", budget.TypeProject); err != nil {
		return nil, err
	}
	if p.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "required"}
	}
	if p.Status == "" {
		p.Status = budget.StatusOnTrack
	}
	if !p.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if p.Mode == "" {
		p.Mode = budget.ModeAuto
	}
	if !p.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	if p.ID == "" {
		p.ID = e.newID()
	}
	if err := e.create(ctx, actor, &p, reason); err != nil {
		return nil, err
	}
	return e.GetProject(ctx, p.ID)
}

func (e *Engine) UpdateProject(ctx context.Context, actor Actor, id string, patch budget.ProjectPatch, reason string) (*budget.Project, error) {
	if err := e.authorize(ctx, actor, "update", budget.TypeProject); err != nil {
		return nil, err
	}
	ent, err := e.loadLive(ctx, budget.TypeProject, id)
	if err != nil {
		return nil, err
	}
	p := ent.(*budget.Project)

	prev := budget.SnapshotOf(p)
	oldRefs := p.References()
	oldParentID := p.BudgetItemID

	patch.Apply(p)
	if !p.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if !p.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	if p.BudgetItemID != oldParentID {
		if err := e.requireLiveParent(ctx, budget.TypeBudgetItem, p.BudgetItemID); err != nil {
			return nil, err
		}
	}
	removed, added := refDiff(oldRefs, p.References())
	if err := e.validateReferences(ctx, added); err != nil {
		return nil, err
	}

	var oldParent *nodeRef
	if oldParentID != "" && oldParentID != p.BudgetItemID {
		oldParent = &nodeRef{budget.TypeBudgetItem, oldParentID}
	}
	if err := e.finishUpdate(ctx, actor, p, prev, removed, added, oldParent, reason); err != nil {
		return nil, err
	}
	return e.GetProject(ctx, id)
}

func (e *Engine) GetProject(ctx context.Context, id string) (*budget.Project, error) {
	ent, err := e.Store.Get(ctx, budget.TypeProject, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: budget.TypeProject, ID: id}
		}
		return nil, err
	}
	return ent.(*budget.Project), nil
}

// =============================================================================
// BREAKDOWNS
// =============================================================================

func (e *Engine) CreateBreakdown(ctx context.Context, actor Actor, b budget.Breakdown, reason string) (*budget.Breakdown, error) {
	if err := e.authorize(ctx, actor, "create", budget.TypeBreakdown); err != nil {
		return nil, err
	}
	if b.Description == "" {
		return nil, &ValidationError{Field: "description", Message: "required"}
	}
	if b.Status == "" {
		b.Status = budget.BreakdownOngoing
	}
	if !b.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if b.ID == "" {
		b.ID = e.newID()
	}
	b = NormalizeBreakdown(b)
	if err := e.create(ctx, actor, &b, reason); err != nil {
		return nil, err
	}
	return e.GetBreakdown(ctx, b.ID)
}

func (e *Engine) UpdateBreakdown(ctx context.Context, actor Actor, id string, patch budget.BreakdownPatch, reason string) (*budget.Breakdown, error) {
	if err := e.authorize(ctx, actor, "update", budget.TypeBreakdown); err != nil {
		return nil, err
	}
	ent, err := e.loadLive(ctx, budget.TypeBreakdown, id)
	if err != nil {
		return nil, err
	}
	b := ent.(*budget.Breakdown)

	prev := budget.SnapshotOf(b)
	oldParentID := b.ProjectID

	patch.Apply(b)
	if !b.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if b.ProjectID != oldParentID {
		if err := e.requireLiveParent(ctx, budget.TypeProject, b.ProjectID); err != nil {
			return nil, err
		}
	}
	*b = NormalizeBreakdown(*b)

	var oldParent *nodeRef
	if oldParentID != "" && oldParentID != b.ProjectID {
		oldParent = &nodeRef{budget.TypeProject, oldParentID}
	}
	if err := e.finishUpdate(ctx, actor, b, prev, nil, nil, oldParent, reason); err != nil {
		return nil, err
	}
	return e.GetBreakdown(ctx, id)
}

func (e *Engine) GetBreakdown(ctx context.Context, id string) (*budget.Breakdown, error) {
	ent, err := e.Store.Get(ctx, budget.TypeBreakdown, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: budget.TypeBreakdown, ID: id}
		}
		return nil, err
	}
	return ent.(*budget.Breakdown), nil
}

// =============================================================================
// FUNDS (DF chain)
// =============================================================================

func (e *Engine) CreateFund(ctx context.Context, actor Actor, f budget.Fund, reason string) (*budget.Fund, error) {
	if err := e.authorize(ctx, actor, "create", budget.TypeFund); err != nil {
		return nil, err
	}
	if f.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "required"}
	}
	if f.Status == "" {
		f.Status = budget.StatusOnTrack
	}
	if !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if f.Mode == "" {
		f.Mode = budget.ModeAuto
	}
	if !f.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	if f.ID == "" {
		f.ID = e.newID()
	}
	if err := e.create(ctx, actor, &f, reason); err != nil {
		return nil, err
	}
	return e.GetFund(ctx, f.ID)
}

func (e *Engine) UpdateFund(ctx context.Context, actor Actor, id string, patch budget.FundPatch, reason string) (*budget.Fund, error) {
	if err := e.authorize(ctx, actor, "update", budget.TypeFund); err != nil {
		return nil, err
	}
	ent, err := e.loadLive(ctx, budget.TypeFund, id)
	if err != nil {
		return nil, err
	}
	f := ent.(*budget.Fund)

	prev := budget.SnapshotOf(f)
	oldRefs := f.References()

	patch.Apply(f)
	if !f.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if !f.Mode.Valid() {
		return nil, &ValidationError{Field: "aggregation_mode", Message: "must be manual or auto"}
	}
	removed, added := refDiff(oldRefs, f.References())
	if err := e.validateReferences(ctx, added); err != nil {
		return nil, err
	}

	if err := e.finishUpdate(ctx, actor, f, prev, removed, added, nil, reason); err != nil {
		return nil, err
	}
	return e.GetFund(ctx, id)
}

func (e *Engine) GetFund(ctx context.Context, id string) (*budget.Fund, error) {
	ent, err := e.Store.Get(ctx, budget.TypeFund, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: budget.TypeFund, ID: id}
		}
		return nil, err
	}
	return ent.(*budget.Fund), nil
}

// =============================================================================
// FUND BREAKDOWNS
// =============================================================================

func (e *Engine) CreateFundBreakdown(ctx context.Context, actor Actor, b budget.FundBreakdown, reason string) (*budget.FundBreakdown, error) {
	if err := e.authorize(ctx, actor, "create", budget.TypeFundBreakdown); err != nil {
		return nil, err
	}
	if b.Description == "" {
		return nil, &ValidationError{Field: "description", Message: "required"}
	}
	if b.Status == "" {
		b.Status = budget.BreakdownOngoing
	}
	if !b.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if b.ID == "" {
		b.ID = e.newID()
	}
	b = NormalizeFundBreakdown(b)
	if err := e.create(ctx, actor, &b, reason); err != nil {
		return nil, err
	}
	return e.GetFundBreakdown(ctx, b.ID)
}

func (e *Engine) UpdateFundBreakdown(ctx context.Context, actor Actor, id string, patch budget.FundBreakdownPatch, reason string) (*budget.FundBreakdown, error) {
	if err := e.authorize(ctx, actor, "update", budget.TypeFundBreakdown); err != nil {
		return nil, err
	}
	ent, err := e.loadLive(ctx, budget.TypeFundBreakdown, id)
	if err != nil {
		return nil, err
	}
	b := ent.(*budget.FundBreakdown)

	prev := budget.SnapshotOf(b)
	oldParentID := b.FundID

	patch.Apply(b)
	if !b.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if b.FundID != oldParentID {
		if err := e.requireLiveParent(ctx, budget.TypeFund, b.FundID); err != nil {
			return nil, err
		}
	}
	*b = NormalizeFundBreakdown(*b)

	var oldParent *nodeRef
	if oldParentID != "" && oldParentID != b.FundID {
		oldParent = &nodeRef{budget.TypeFund, oldParentID}
	}
	if err := e.finishUpdate(ctx, actor, b, prev, nil, nil, oldParent, reason); err != nil {
		return nil, err
	}
	return e.GetFundBreakdown(ctx, id)
}

func (e *Engine) GetFundBreakdown(ctx context.Context, id string) (*budget.FundBreakdown, error) {
	ent, err := e.Store.Get(ctx, budget.TypeFundBreakdown, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: budget.TypeFundBreakdown, ID: id}
		}
		return nil, err
	}
	return ent.(*budget.FundBreakdown), nil
}
