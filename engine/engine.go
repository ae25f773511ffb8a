/*
Package engine implements the hierarchical rollup and soft-delete
cascade core of the budget tracker.

PURPOSE:
  Five cooperating pieces over a shared entity store:

    rollup.go     pure calculators: parent metrics from live children
    recalc.go     orchestrator: bottom-up recalculation along the
                  parent chain, sole writer of derived fields
    cascade.go    planner (read-only blast-radius preview), executor
                  (idempotent soft-delete cascade), restore
    activity.go   field-level audit diffs, immutable log records
    mutations.go  gated create/update entry points that tie the above
                  together

CONSISTENCY MODEL:
  Single writer per record is assumed of the store. Multi-entity
  consistency is eventual: a child write may briefly precede its
  parent's rollup. Recalculation is idempotent and re-triggerable, so
  convergence never depends on running exactly once.

SEE ALSO:
  - budget package: entity shapes
  - store, store/sqlite: Store implementations
*/
package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/warp/budget-engine/budget"
)

// Engine wires the store, the permission gate, and the operational
// logger. Zero-value collaborators get safe defaults from New.
type Engine struct {
	Store  Store
	Gate   Gate
	Actors ActorDirectory

	// Logger is the operational/error channel: recalculation or audit
	// failures that must not fail the originating request go here.
	Logger *log.Logger

	// Overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// New returns an engine with default collaborators: an allow-all gate,
// the standard logger, wall-clock time, and uuid ids.
func New(store Store) *Engine {
	return &Engine{
		Store:  store,
		Gate:   AllowAll{},
		Logger: log.Default(),
		Now:    time.Now,
		NewID:  func() string { return uuid.NewString() },
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

func (e *Engine) authorize(ctx context.Context, actor Actor, action string, t budget.EntityType) error {
	gate := e.Gate
	if gate == nil {
		gate = AllowAll{}
	}
	if !gate.Authorize(ctx, actor.ID, action, string(t)) {
		return &UnauthorizedError{ActorID: actor.ID, Action: action, Resource: t}
	}
	return nil
}
