/*
recalc.go - Recalculation orchestrator

PURPOSE:
  Given a changed entity, re-run the rollup calculator at its level and
  then climb the parent chain bottom-up, persisting each ancestor whose
  derived fields actually changed. This is THE ONLY PATH by which
  derived fields are written; a direct write to a derived field anywhere
  else is a correctness bug.

GUARANTEES:
  - Idempotent: a second call with no intervening child writes persists
    nothing (every level reports unchanged).
  - Redundant-write free: an ancestor is only Put when a derived field
    differs.
  - Non-blocking upward: an ancestor failure is logged to the
    operational channel and stops the climb, but never fails the call —
    the leaf-level change stays applied and a later retrigger converges
    the stale ancestors.
  - Silent on audit: recalculation never writes activity records; only
    explicit user mutations do.

CLIMB TERMINATION:
  Stops at roots (budget items, funds), at unlinked entities, and at
  parents that are missing or in trash.
*/
package engine

import (
	"context"

	"github.com/warp/budget-engine/budget"
)

// RecalcStep records one level visited during a recalculation.
type RecalcStep struct {
	Type    budget.EntityType
	ID      string
	Changed bool
}

type RecalcResult struct {
	Steps []RecalcStep
}

// Changed reports whether any level persisted an update.
func (r *RecalcResult) Changed() bool {
	for _, s := range r.Steps {
		if s.Changed {
			return true
		}
	}
	return false
}

// Recalculate recomputes derived fields for the entity and its ancestor
// chain. Safe to call after any create, update, restore, or trash;
// calling it twice in a row is a no-op on the second call.
func (e *Engine) Recalculate(ctx context.Context, t budget.EntityType, id string) (*RecalcResult, error) {
	if _, ok := hierarchy[t]; !ok {
		return nil, &ValidationError{Field: "entity_type", Message: "unknown entity type"}
	}

	ent, err := e.Store.Get(ctx, t, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Type: t, ID: id}
		}
		return nil, err
	}

	res := &RecalcResult{}
	ent, err = e.recalcLevel(ctx, ent, res)
	if err != nil {
		return nil, err
	}

	// Climb. Ancestor failures are logged, never propagated.
	cur := ent
	for {
		pt, pid, ok := cur.ParentRef()
		if !ok {
			break
		}
		parent, err := e.Store.Get(ctx, pt, pid)
		if err != nil {
			if !IsNotFound(err) {
				e.logf("recalculate %s/%s: load ancestor %s/%s: %v", t, id, pt, pid, err)
			}
			break
		}
		if parent.IsDeleted() {
			break
		}
		parent, err = e.recalcLevel(ctx, parent, res)
		if err != nil {
			e.logf("recalculate %s/%s: ancestor %s/%s: %v", t, id, pt, pid, err)
			break
		}
		cur = parent
	}

	return res, nil
}

// recalcLevel reruns the rollup for one entity and persists it only when
// a derived field changed. Trashed entities are left frozen so restore
// brings them back exactly as trashed.
func (e *Engine) recalcLevel(ctx context.Context, ent budget.Entity, res *RecalcResult) (budget.Entity, error) {
	spec := hierarchy[ent.EntityType()]
	changed := false

	if spec.rollup != nil && !ent.IsDeleted() {
		children, err := e.Store.LiveChildren(ctx, spec.childType, ent.EntityID())
		if err != nil {
			return ent, err
		}
		updated, ch := spec.rollup(ent, children)
		if ch {
			if err := e.Store.Put(ctx, updated); err != nil {
				return ent, err
			}
			ent = updated
			changed = true
		}
	}

	res.Steps = append(res.Steps, RecalcStep{Type: ent.EntityType(), ID: ent.EntityID(), Changed: changed})
	return ent, nil
}
