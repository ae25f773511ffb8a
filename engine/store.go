/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the contract between the engine and durable storage. Storage
  mechanics (indexes, transactions, SQL dialect) live behind these
  interfaces; the engine only assumes the store serializes writes to a
  given record.

KEY INTERFACES:
  EntityStore:    keyed entity storage with parent-indexed child lookup
  ReferenceStore: category/office reference rows + usage counters
  ActivityStore:  append-only audit records
  Store:          all of the above (what the engine takes)

LIVE-ONLY DEFAULT:
  Child lookups come in two flavors: LiveChildren excludes soft-deleted
  rows (the aggregation view), Children includes them (the trash and
  restore view). Get returns trashed rows too; callers check IsDeleted.

IMPLEMENTATIONS:
  - store/memory.go:        in-memory, for tests and dev
  - store/sqlite/sqlite.go: production SQLite

SEE ALSO:
  - recalc.go: sole writer of derived fields via Put
  - cascade.go: batch soft-delete flagging via Put per record
*/
package engine

import (
	"context"

	"github.com/warp/budget-engine/budget"
)

// =============================================================================
// ENTITY STORE
// =============================================================================

type EntityStore interface {
	// Get returns the entity or ErrEntityNotFound. Soft-deleted entities
	// ARE returned; no physical deletion ever occurs.
	Get(ctx context.Context, t budget.EntityType, id string) (budget.Entity, error)

	// Insert persists a new entity. Fails if the id already exists.
	Insert(ctx context.Context, e budget.Entity) error

	// Put overwrites an existing entity. Fails with ErrEntityNotFound if
	// the id is unknown.
	Put(ctx context.Context, e budget.Entity) error

	// List returns all entities of a type, live-only unless
	// includeDeleted is set.
	List(ctx context.Context, t budget.EntityType, includeDeleted bool) ([]budget.Entity, error)

	// LiveChildren returns non-deleted entities of childType whose
	// parent reference equals parentID (indexed lookup).
	LiveChildren(ctx context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error)

	// Children is LiveChildren including soft-deleted rows. Used by the
	// restore path to find same-cascade fallout.
	Children(ctx context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error)
}

// =============================================================================
// REFERENCE STORE
// =============================================================================

type ReferenceStore interface {
	// Reference returns the reference row or ErrEntityNotFound.
	Reference(ctx context.Context, kind budget.RefKind, id string) (*budget.Reference, error)

	// SaveReference inserts or replaces a reference row.
	SaveReference(ctx context.Context, ref budget.Reference) error

	// ListReferences returns all rows of a kind.
	ListReferences(ctx context.Context, kind budget.RefKind) ([]budget.Reference, error)

	// AdjustUsage changes a reference's denormalized usage counter by
	// delta. ErrEntityNotFound if the row is missing.
	AdjustUsage(ctx context.Context, kind budget.RefKind, id string, delta int) error
}

// =============================================================================
// ACTIVITY STORE
// =============================================================================

type ActivityStore interface {
	// AppendActivity persists an audit record. Append-only: there is no
	// update or delete for activity records. Ever.
	AppendActivity(ctx context.Context, entry budget.ActivityLog) error

	// QueryActivity returns records matching the filter, newest first.
	QueryActivity(ctx context.Context, filter budget.ActivityFilter) ([]budget.ActivityLog, error)
}

// Store is the full persistence surface the engine needs.
type Store interface {
	EntityStore
	ReferenceStore
	ActivityStore
}
