/*
activity.go - Field-level audit diffs and the activity logger

PURPOSE:
  Every explicit user mutation produces exactly one immutable audit
  record: what changed, who changed it, when, and why. Reviewers need
  the diff to reflect USER INTENT, so two rules keep aggregation noise
  out:

  1. Snapshots are captured before recalculation runs, so rollup
     side effects of the same mutation never appear in the diff.
  2. A fixed denylist drops ids, stamps, the soft-delete block, and the
     pure aggregation outputs (rates, balances, status counters).

  The utilized/obligated amount fields are NOT denylisted: in manual
  mode they are caller-entered and a reviewer must see them change. The
  pre-recalculation snapshot rule alone keeps their auto-mode rollup
  values out.

FAILURE POLICY:
  Logging never fails the surrounding mutation. Append errors go to the
  operational channel. Missing actor details are backfilled best-effort
  and default to "Unknown".
*/
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/warp/budget-engine/budget"
)

// diffDenylist holds serialized field names excluded from changed-field
// diffs: identity, stamps, the soft-delete block, and every aggregation
// output.
var diffDenylist = map[string]bool{
	"id":         true,
	"created_at": true,
	"created_by": true,
	"updated_at": true,
	"updated_by": true,

	"deleted":    true,
	"deleted_at": true,
	"deleted_by": true,
	"delete_op":  true,

	"utilization_rate":  true,
	"balance":           true,
	"project_completed": true,
	"project_delayed":   true,
	"projects_on_track": true,
}

// =============================================================================
// DIFF
// =============================================================================

// ChangedFields returns the sorted set of keys present in either
// snapshot whose serialized values differ, excluding the denylist.
func ChangedFields(previous, next budget.Fields) []string {
	keys := map[string]bool{}
	for k := range previous {
		keys[k] = true
	}
	for k := range next {
		keys[k] = true
	}

	var changed []string
	for k := range keys {
		if diffDenylist[k] {
			continue
		}
		if !valueEqual(previous[k], next[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// valueEqual compares two snapshot values by their JSON form. Decimals
// serialize as strings, so the comparison is exact.
func valueEqual(a, b any) bool {
	ja, erra := json.Marshal(a)
	jb, errb := json.Marshal(b)
	if erra != nil || errb != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// allocation field names per level; the first present in a snapshot wins.
var allocationKeys = []string{"total_budget_allocated", "allocated_budget"}

// buildChangeSummary curates the highlights a compliance reviewer scans
// for: allocation changes with before/after, status transitions, and
// soft-delete / restore markers. Not every changed field — that's what
// ChangedFields is for.
func buildChangeSummary(previous, next budget.Fields, extra map[string]any) map[string]any {
	summary := map[string]any{}
	for k, v := range extra {
		summary[k] = v
	}

	if previous != nil && next != nil {
		for _, key := range allocationKeys {
			_, inPrev := previous[key]
			_, inNext := next[key]
			if !inPrev && !inNext {
				continue
			}
			if !valueEqual(previous[key], next[key]) {
				summary["allocation_changed"] = true
				summary["previous_allocated"] = previous[key]
				summary["new_allocated"] = next[key]
			}
			break
		}

		if !valueEqual(previous["status"], next["status"]) {
			summary["status_changed"] = true
			summary["previous_status"] = previous["status"]
			summary["new_status"] = next["status"]
		}

		prevDeleted, _ := previous["deleted"].(bool)
		nextDeleted, _ := next["deleted"].(bool)
		if !prevDeleted && nextDeleted {
			summary["soft_deleted"] = true
		}
		if prevDeleted && !nextDeleted {
			summary["restored"] = true
		}
	}

	if len(summary) == 0 {
		return nil
	}
	return summary
}

// =============================================================================
// LOGGER
// =============================================================================

// LogActivity computes the field-level diff between the snapshots and
// persists an immutable audit record. The entry is written even when no
// field changed: a no-field-change touch is still auditable.
func (e *Engine) LogActivity(ctx context.Context, actor Actor, action budget.Action, t budget.EntityType, id string, previous, next budget.Fields, reason string) {
	e.logActivityWith(ctx, actor, action, t, id, previous, next, reason, nil)
}

func (e *Engine) logActivityWith(ctx context.Context, actor Actor, action budget.Action, t budget.EntityType, id string, previous, next budget.Fields, reason string, extra map[string]any) {
	name, role := actor.Name, actor.Role
	if name == "" && e.Actors != nil {
		if n, r, ok := e.Actors.Lookup(ctx, actor.ID); ok {
			name = n
			if role == "" {
				role = r
			}
		}
	}
	if name == "" {
		name = "Unknown"
	}

	entry := budget.ActivityLog{
		ID:             e.newID(),
		EntityType:     t,
		EntityID:       id,
		Action:         action,
		PreviousValues: previous,
		NewValues:      next,
		ChangedFields:  ChangedFields(previous, next),
		ChangeSummary:  buildChangeSummary(previous, next, extra),
		ActorID:        actor.ID,
		ActorName:      name,
		ActorRole:      role,
		Reason:         reason,
		CreatedAt:      e.now(),
	}

	if err := e.Store.AppendActivity(ctx, entry); err != nil {
		e.logf("activity log %s %s/%s: %v", action, t, id, err)
	}
}

// Activity returns audit records for compliance review, newest first.
func (e *Engine) Activity(ctx context.Context, filter budget.ActivityFilter) ([]budget.ActivityLog, error) {
	return e.Store.QueryActivity(ctx, filter)
}
