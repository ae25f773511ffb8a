package budget

import "time"

// =============================================================================
// ACTIVITY LOG - Immutable audit records
// =============================================================================

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ActivityLog is an immutable audit record of one mutation. Written once
// per user-initiated mutation, never updated or deleted. Snapshots are
// captured before any recalculation runs, so aggregation fallout never
// shows up as a user-intended change.
type ActivityLog struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Action     Action     `json:"action"`

	PreviousValues Fields `json:"previous_values,omitempty"`
	NewValues      Fields `json:"new_values,omitempty"`

	// ChangedFields is the set of serialized field names whose values
	// differ between the snapshots, minus the derived/bookkeeping
	// denylist. May be empty: a no-field-change touch is still auditable.
	ChangedFields []string `json:"changed_fields"`

	// ChangeSummary holds curated highlights only (allocation changes,
	// status transitions, soft-delete markers), not every field.
	ChangeSummary map[string]any `json:"change_summary,omitempty"`

	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	ActorRole string `json:"actor_role,omitempty"`

	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityFilter narrows audit queries for compliance review surfaces.
type ActivityFilter struct {
	EntityType *EntityType
	EntityID   *string
	ActorID    *string
	From       *time.Time
	To         *time.Time
	Limit      int
}
