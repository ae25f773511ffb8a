/*
Package store provides the in-memory Store implementation.

PURPOSE:
  Backs engine tests and local development. Mirrors the production
  SQLite store's semantics: keyed entity storage, live-only child
  lookups, reference usage counters, append-only activity records.

CONCURRENCY:
  sync.RWMutex; entities are cloned on the way in and out so callers
  can never mutate stored state through a shared pointer.
*/
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
)

type refKey struct {
	kind budget.RefKind
	id   string
}

type Memory struct {
	mu       sync.RWMutex
	entities map[budget.EntityType]map[string]budget.Entity
	refs     map[refKey]budget.Reference
	activity []budget.ActivityLog
}

func NewMemory() *Memory {
	return &Memory{
		entities: make(map[budget.EntityType]map[string]budget.Entity),
		refs:     make(map[refKey]budget.Reference),
	}
}

// =============================================================================
// ENTITY STORE
// =============================================================================

func (m *Memory) Get(_ context.Context, t budget.EntityType, id string) (budget.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.entities[t][id]
	if !ok {
		return nil, engine.ErrEntityNotFound
	}
	return ent.Clone(), nil
}

func (m *Memory) Insert(_ context.Context, e budget.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := e.EntityType()
	if m.entities[t] == nil {
		m.entities[t] = make(map[string]budget.Entity)
	}
	if _, exists := m.entities[t][e.EntityID()]; exists {
		return &engine.ValidationError{Field: "id", Message: "already exists"}
	}
	m.entities[t][e.EntityID()] = e.Clone()
	return nil
}

func (m *Memory) Put(_ context.Context, e budget.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := e.EntityType()
	if _, exists := m.entities[t][e.EntityID()]; !exists {
		return engine.ErrEntityNotFound
	}
	m.entities[t][e.EntityID()] = e.Clone()
	return nil
}

func (m *Memory) List(_ context.Context, t budget.EntityType, includeDeleted bool) ([]budget.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.Entity
	for _, ent := range m.entities[t] {
		if !includeDeleted && ent.IsDeleted() {
			continue
		}
		out = append(out, ent.Clone())
	}
	sortEntities(out)
	return out, nil
}

func (m *Memory) LiveChildren(_ context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error) {
	return m.children(childType, parentID, false)
}

func (m *Memory) Children(_ context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error) {
	return m.children(childType, parentID, true)
}

func (m *Memory) children(childType budget.EntityType, parentID string, includeDeleted bool) ([]budget.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.Entity
	for _, ent := range m.entities[childType] {
		_, pid, ok := ent.ParentRef()
		if !ok || pid != parentID {
			continue
		}
		if !includeDeleted && ent.IsDeleted() {
			continue
		}
		out = append(out, ent.Clone())
	}
	sortEntities(out)
	return out, nil
}

func sortEntities(entities []budget.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].EntityID() < entities[j].EntityID()
	})
}

// =============================================================================
// REFERENCE STORE
// =============================================================================

func (m *Memory) Reference(_ context.Context, kind budget.RefKind, id string) (*budget.Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.refs[refKey{kind, id}]
	if !ok {
		return nil, engine.ErrEntityNotFound
	}
	r := ref
	return &r, nil
}

func (m *Memory) SaveReference(_ context.Context, ref budget.Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs[refKey{ref.Kind, ref.ID}] = ref
	return nil
}

func (m *Memory) ListReferences(_ context.Context, kind budget.RefKind) ([]budget.Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.Reference
	for k, ref := range m.refs {
		if k.kind == kind {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AdjustUsage(_ context.Context, kind budget.RefKind, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := refKey{kind, id}
	ref, ok := m.refs[k]
	if !ok {
		return engine.ErrEntityNotFound
	}
	ref.UsageCount += delta
	m.refs[k] = ref
	return nil
}

// =============================================================================
// ACTIVITY STORE - Append-only
// =============================================================================

func (m *Memory) AppendActivity(_ context.Context, entry budget.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activity = append(m.activity, entry)
	return nil
}

func (m *Memory) QueryActivity(_ context.Context, filter budget.ActivityFilter) ([]budget.ActivityLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []budget.ActivityLog
	for _, entry := range m.activity {
		if filter.EntityType != nil && entry.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && entry.EntityID != *filter.EntityID {
			continue
		}
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, entry)
	}

	// Newest first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
