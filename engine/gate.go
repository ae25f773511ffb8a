package engine

import "context"

// =============================================================================
// PERMISSION GATE - External collaborator, one check per mutating entry
// =============================================================================

// Actor identifies who is performing a mutation. Name and Role may be
// empty; the activity logger backfills them best-effort.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Gate is the role-based authorization check invoked at the entry of
// every mutating operation. The engine treats it as a boolean
// precondition; role evaluation itself lives outside this module.
type Gate interface {
	Authorize(ctx context.Context, actorID, action string, resource string) bool
}

// AllowAll authorizes everything. Default when no gate is configured.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, string, string, string) bool { return true }

// RoleGate is a small static role table for server wiring: admins do
// everything, encoders create/update/recalculate, viewers mutate nothing.
type RoleGate struct {
	Roles map[string]string // actor id -> role
}

func (g *RoleGate) Authorize(_ context.Context, actorID, action, _ string) bool {
	switch g.Roles[actorID] {
	case "admin":
		return true
	case "encoder":
		return action == "create" || action == "update" || action == "recalculate"
	default:
		return false
	}
}

// ActorDirectory resolves actor display details for audit records.
// Lookup failures are never fatal; the logger falls back to "Unknown".
type ActorDirectory interface {
	Lookup(ctx context.Context, actorID string) (name, role string, ok bool)
}
