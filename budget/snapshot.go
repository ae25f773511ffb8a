package budget

import "encoding/json"

// =============================================================================
// FIELD SNAPSHOTS - Serialized entity state for audit diffing
// =============================================================================

// Fields is a serialized entity snapshot keyed by JSON field name.
// Decimal amounts serialize as strings, so comparing snapshot values as
// their JSON forms is exact (no float drift).
type Fields map[string]any

// SnapshotOf serializes an entity into a Fields map. The round-trip
// through JSON keeps snapshot keys identical to wire names, which is
// what the audit denylist is written against.
func SnapshotOf(e Entity) Fields {
	if e == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return f
}
