package budget

// =============================================================================
// REFERENCE TABLES - Categories and offices with denormalized usage counts
// =============================================================================

type RefKind string

const (
	RefCategory RefKind = "category"
	RefOffice   RefKind = "office"
)

// Reference is a row in a reference table (category or office).
// UsageCount is denormalized: every create, reference move, cascade
// delete, and restore adjusts it. Inactive references cannot be linked
// by new or updated entities.
type Reference struct {
	Kind       RefKind `json:"kind"`
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Active     bool    `json:"active"`
	UsageCount int     `json:"usage_count"`
}
