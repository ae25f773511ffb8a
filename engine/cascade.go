/*
cascade.go - Soft-delete cascade: planner, executor, restore

PURPOSE:
  Deleting a parent must take every live descendant with it, reversibly,
  and the caller must see an accurate blast radius before confirming.
  Three operations share the descendant walk:

    PlanCascadeDelete    read-only preview: counts, financial impact,
                         warnings. Never mutates; safe to call
                         repeatedly from confirmation dialogs.
    ExecuteCascadeDelete confirmed soft-delete of target + live
                         descendants under one cascade operation id.
    Restore              clears flags on the target and the descendants
                         trashed by the SAME cascade operation only.

PREVIEW vs EXECUTE RACE:
  The preview is a best-effort snapshot. Execute re-derives the live
  descendant set at execute time instead of trusting the preview, so a
  sibling edit between plan and execute is an accepted race, not a bug.

RETRY CONVERGENCE:
  Per-record flag sets are idempotent (MarkDeleted on an already-flagged
  record is a no-op), an already-trashed target resumes under its
  existing operation id, and the descendant walk traverses trashed
  intermediate nodes, so retrying an interrupted execute reaches records
  stranded under already-flagged parents and converges to the
  fully-deleted terminal state.

AUDIT POLICY:
  One activity entry for the target per cascade execute or restore.
  Descendants trashed purely as fallout are identified by the shared
  cascade operation id rather than per-record entries. Uniform across
  all entity types.
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/budget-engine/budget"
)

// PreviewItemLimit caps the itemized list in a cascade preview. Totals
// and counts stay accurate even when the list is truncated.
const PreviewItemLimit = 50

// =============================================================================
// PREVIEW TYPES
// =============================================================================

// AffectedItem is one entity in the blast radius with its immediate
// financial snapshot.
type AffectedItem struct {
	Type budget.EntityType `json:"type"`
	ID   string            `json:"id"`
	Name string            `json:"name"`
	budget.Financials
}

type CascadePreview struct {
	Target AffectedItem `json:"target"`

	// CanDelete is false only for structural blockers (target missing or
	// already in trash); large cascades are still deletable — the caller
	// decides whether to proceed.
	CanDelete   bool   `json:"can_delete"`
	BlockReason string `json:"block_reason,omitempty"`

	Counts map[budget.EntityType]int               `json:"counts"`
	Totals map[budget.EntityType]budget.Financials `json:"totals"`

	// Impact is the total financial exposure of the delete, taken from
	// the target's own rolled-up figures. Summing across levels would
	// count each amount once per level, since auto-mode parents already
	// aggregate their children.
	Impact budget.Financials `json:"impact"`

	Items     []AffectedItem `json:"items"`
	Truncated bool           `json:"truncated"`

	Warnings []string `json:"warnings"`
}

// ExecutionResult summarizes a cascade execute or restore.
type ExecutionResult struct {
	Op     string                    `json:"op"`
	Counts map[budget.EntityType]int `json:"counts"`
	Total  int                       `json:"total"`
}

// =============================================================================
// DESCENDANT WALKS
// =============================================================================

type nodeRef struct {
	t  budget.EntityType
	id string
}

// collectLiveDescendants walks the registry's child chain breadth-first
// and returns every live descendant of the given entity. The walk
// traverses trashed intermediate nodes too: an interrupted cascade can
// leave live records under an already-flagged parent, and a retry must
// still reach them.
func (e *Engine) collectLiveDescendants(ctx context.Context, t budget.EntityType, id string) ([]budget.Entity, error) {
	var out []budget.Entity
	queue := []nodeRef{{t, id}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		spec := hierarchy[cur.t]
		if spec.childType == "" {
			continue
		}
		children, err := e.Store.Children(ctx, spec.childType, cur.id)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			queue = append(queue, nodeRef{c.EntityType(), c.EntityID()})
			if c.IsDeleted() {
				continue
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// collectDescendantsByOp returns trashed descendants flagged under the
// given cascade operation. Subtrees trashed under a different operation
// (independently deleted before or after) are left alone, flags and all.
func (e *Engine) collectDescendantsByOp(ctx context.Context, t budget.EntityType, id, op string) ([]budget.Entity, error) {
	if op == "" {
		return nil, nil
	}
	var out []budget.Entity
	queue := []nodeRef{{t, id}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		spec := hierarchy[cur.t]
		if spec.childType == "" {
			continue
		}
		children, err := e.Store.Children(ctx, spec.childType, cur.id)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if !c.IsDeleted() || c.DeleteOpID() != op {
				continue
			}
			out = append(out, c)
			queue = append(queue, nodeRef{c.EntityType(), c.EntityID()})
		}
	}
	return out, nil
}

func addFinancials(a, b budget.Financials) budget.Financials {
	return budget.Financials{
		Allocated: a.Allocated.Add(b.Allocated),
		Utilized:  a.Utilized.Add(b.Utilized),
		Obligated: a.Obligated.Add(b.Obligated),
	}
}

func itemOf(ent budget.Entity) AffectedItem {
	return AffectedItem{
		Type:       ent.EntityType(),
		ID:         ent.EntityID(),
		Name:       ent.DisplayName(),
		Financials: ent.Financials(),
	}
}

// =============================================================================
// PLANNER
// =============================================================================

// PlanCascadeDelete walks the descendant tree and returns a structured
// preview of what a delete would affect. Read-only: nothing is mutated,
// and the call is safe to repeat.
func (e *Engine) PlanCascadeDelete(ctx context.Context, t budget.EntityType, id string) (*CascadePreview, error) {
	if _, ok := hierarchy[t]; !ok {
		return nil, &ValidationError{Field: "entity_type", Message: "unknown entity type"}
	}

	preview := &CascadePreview{
		CanDelete: true,
		Counts:    map[budget.EntityType]int{},
		Totals:    map[budget.EntityType]budget.Financials{},
	}

	ent, err := e.Store.Get(ctx, t, id)
	if err != nil {
		if IsNotFound(err) {
			preview.CanDelete = false
			preview.BlockReason = "entity not found"
			preview.Target = AffectedItem{Type: t, ID: id}
			return preview, nil
		}
		return nil, err
	}
	preview.Target = itemOf(ent)

	if ent.IsDeleted() {
		preview.CanDelete = false
		preview.BlockReason = "entity is already in trash"
		return preview, nil
	}

	descendants, err := e.collectLiveDescendants(ctx, t, id)
	if err != nil {
		return nil, err
	}

	preview.Impact = ent.Financials()
	projectsWithBreakdowns := map[string]bool{}
	for _, d := range descendants {
		dt := d.EntityType()
		preview.Counts[dt]++
		preview.Totals[dt] = addFinancials(preview.Totals[dt], d.Financials())

		if len(preview.Items) < PreviewItemLimit {
			preview.Items = append(preview.Items, itemOf(d))
		} else {
			preview.Truncated = true
		}

		if b, ok := d.(*budget.Breakdown); ok && b.ProjectID != "" {
			projectsWithBreakdowns[b.ProjectID] = true
		}
	}

	preview.Warnings = cascadeWarnings(preview, len(projectsWithBreakdowns))
	return preview, nil
}

func cascadeWarnings(p *CascadePreview, projectsWithLiveBreakdowns int) []string {
	var warnings []string
	if n := p.Counts[budget.TypeProject]; n > 0 {
		if projectsWithLiveBreakdowns > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"This will also move %d project(s) to trash, %d of which still have live breakdowns.",
				n, projectsWithLiveBreakdowns))
		} else {
			warnings = append(warnings, fmt.Sprintf("This will also move %d project(s) to trash.", n))
		}
	}
	if n := p.Counts[budget.TypeBreakdown]; n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d breakdown record(s) will be moved to trash.", n))
	}
	if n := p.Counts[budget.TypeFundBreakdown]; n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d fund breakdown record(s) will be moved to trash.", n))
	}
	if p.Impact.Obligated.GreaterThan(decimal.Zero) {
		warnings = append(warnings, fmt.Sprintf("Total obligated funds affected: %s", p.Impact.Obligated.String()))
	}
	if p.Impact.Utilized.GreaterThan(decimal.Zero) {
		warnings = append(warnings, fmt.Sprintf("Total utilized funds affected: %s", p.Impact.Utilized.String()))
	}
	return warnings
}

// =============================================================================
// EXECUTOR
// =============================================================================

// ExecuteCascadeDelete soft-deletes the target and every live descendant
// under one cascade operation id, adjusts reference usage counters, and
// recalculates the former parent chain. Requires confirmed=true.
func (e *Engine) ExecuteCascadeDelete(ctx context.Context, actor Actor, t budget.EntityType, id string, confirmed bool, reason string) (*ExecutionResult, error) {
	if _, ok := hierarchy[t]; !ok {
		return nil, &ValidationError{Field: "entity_type", Message: "unknown entity type"}
	}
	if !confirmed {
		return nil, &ConfirmationRequiredError{Type: t, ID: id}
	}
	if err := e.authorize(ctx, actor, "delete", t); err != nil {
		return nil, err
	}

	ent, err := e.Store.Get(ctx, t, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: t, ID: id}
		}
		return nil, err
	}

	// Resume an interrupted cascade under its original operation id.
	op := e.newID()
	if ent.IsDeleted() && ent.DeleteOpID() != "" {
		op = ent.DeleteOpID()
	}

	now := e.now()
	prev := budget.SnapshotOf(ent)
	result := &ExecutionResult{Op: op, Counts: map[budget.EntityType]int{}}

	// Live set is re-derived here, never reused from a preview.
	descendants, err := e.collectLiveDescendants(ctx, t, id)
	if err != nil {
		return nil, err
	}

	targetFlagged := 0
	if !ent.IsDeleted() {
		ent.MarkDeleted(now, actor.ID, op)
		if err := e.Store.Put(ctx, ent); err != nil {
			return nil, err
		}
		e.releaseReferences(ctx, ent)
		result.Counts[t]++
		result.Total++
		targetFlagged = 1
	}

	for _, d := range descendants {
		d.MarkDeleted(now, actor.ID, op)
		if err := e.Store.Put(ctx, d); err != nil {
			// Already-flagged records stay flagged; a retry of this call
			// finishes the remainder.
			return nil, fmt.Errorf("cascade delete %s/%s: flag %s/%s: %w", t, id, d.EntityType(), d.EntityID(), err)
		}
		e.releaseReferences(ctx, d)
		result.Counts[d.EntityType()]++
		result.Total++
	}

	// The former parent aggregates without the removed subtree now.
	if pt, pid, ok := ent.ParentRef(); ok {
		if _, err := e.Recalculate(ctx, pt, pid); err != nil && !IsNotFound(err) {
			e.logf("cascade delete %s/%s: recalculate parent %s/%s: %v", t, id, pt, pid, err)
		}
	}

	next := budget.SnapshotOf(ent)
	e.logActivityWith(ctx, actor, budget.ActionUpdated, t, id, prev, next, reason, map[string]any{
		"cascade_op":      op,
		"cascade_deleted": result.Total - targetFlagged,
	})

	return result, nil
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore clears soft-delete flags on a trashed entity and the
// descendants trashed by the same cascade operation, re-increments usage
// counters, and recalculates the restored chain. Restoring a child whose
// parent is still in trash is an InvalidRestoreStateError: the parent
// must be restored first, never silently un-deleted.
func (e *Engine) Restore(ctx context.Context, actor Actor, t budget.EntityType, id string) (*ExecutionResult, error) {
	if _, ok := hierarchy[t]; !ok {
		return nil, &ValidationError{Field: "entity_type", Message: "unknown entity type"}
	}
	if err := e.authorize(ctx, actor, "restore", t); err != nil {
		return nil, err
	}

	ent, err := e.Store.Get(ctx, t, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: t, ID: id}
		}
		return nil, err
	}
	if !ent.IsDeleted() {
		return nil, &ValidationError{Message: "entity is not in trash"}
	}

	if pt, pid, ok := ent.ParentRef(); ok {
		parent, err := e.Store.Get(ctx, pt, pid)
		switch {
		case err == nil:
			if parent.IsDeleted() {
				return nil, &InvalidRestoreStateError{Type: t, ID: id, ParentType: pt, ParentID: pid}
			}
		case !IsNotFound(err):
			return nil, err
		}
	}

	op := ent.DeleteOpID()
	descendants, err := e.collectDescendantsByOp(ctx, t, id, op)
	if err != nil {
		return nil, err
	}

	now := e.now()
	prev := budget.SnapshotOf(ent)
	result := &ExecutionResult{Op: op, Counts: map[budget.EntityType]int{}}

	ent.ClearDeleted()
	ent.Touch(now, actor.ID)
	if err := e.Store.Put(ctx, ent); err != nil {
		return nil, err
	}
	e.acquireReferences(ctx, ent)
	result.Counts[t]++
	result.Total++

	for _, d := range descendants {
		d.ClearDeleted()
		if err := e.Store.Put(ctx, d); err != nil {
			return nil, fmt.Errorf("restore %s/%s: unflag %s/%s: %w", t, id, d.EntityType(), d.EntityID(), err)
		}
		e.acquireReferences(ctx, d)
		result.Counts[d.EntityType()]++
		result.Total++
	}

	if _, err := e.Recalculate(ctx, t, id); err != nil {
		e.logf("restore %s/%s: recalculate: %v", t, id, err)
	}

	next := budget.SnapshotOf(ent)
	e.logActivityWith(ctx, actor, budget.ActionUpdated, t, id, prev, next, "", map[string]any{
		"cascade_op":       op,
		"cascade_restored": result.Total - 1,
	})

	return result, nil
}

// =============================================================================
// REFERENCE COUNTER MAINTENANCE
// =============================================================================

// releaseReferences decrements usage counters for every counted
// reference held by a trashed entity. Best-effort: counter drift is
// repairable and must not fail the cascade.
func (e *Engine) releaseReferences(ctx context.Context, ent budget.Entity) {
	for _, ref := range ent.References() {
		if err := e.Store.AdjustUsage(ctx, ref.Kind, ref.ID, -1); err != nil {
			e.logf("release %s %q: %v", ref.Kind, ref.ID, err)
		}
	}
}

// acquireReferences re-increments usage counters on restore.
func (e *Engine) acquireReferences(ctx context.Context, ent budget.Entity) {
	for _, ref := range ent.References() {
		if err := e.Store.AdjustUsage(ctx, ref.Kind, ref.ID, 1); err != nil {
			e.logf("acquire %s %q: %v", ref.Kind, ref.ID, err)
		}
	}
}
