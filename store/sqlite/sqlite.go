/*
Package sqlite provides the SQLite-backed Store implementation.

PURPOSE:
  Implements every persistence interface the engine consumes
  (engine.EntityStore, engine.ReferenceStore, engine.ActivityStore)
  using SQLite. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  entities:     one row per record, keyed by (entity_type, id). The
                serialized entity lives in a JSON payload column; the
                columns the engine filters on (parent_id, deleted,
                delete_op) are promoted alongside it for indexing. This
                keeps the store fully generic over the hierarchy: a new
                entity type needs no schema change.
  refs:         category/office reference rows with denormalized usage
                counters.
  activity_log: immutable audit records.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for activity_log. Ever.
  Soft delete on entities is a flag column; nothing is physically
  removed.

INDEXES:
  idx_entities_parent:  live-children lookup (the rollup hot path)
  idx_entities_deleted: trash listing
  idx_activity_entity / idx_activity_actor / idx_activity_created:
                        the three compliance query axes

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

USAGE:
  st, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  eng := engine.New(st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: interface definitions
  - store/memory.go: in-memory implementation backing tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		entity_type TEXT NOT NULL,
		id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		delete_op TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		PRIMARY KEY (entity_type, id)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(entity_type, parent_id, deleted);
	CREATE INDEX IF NOT EXISTS idx_entities_deleted ON entities(entity_type, deleted);

	CREATE TABLE IF NOT EXISTS refs (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		usage_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (kind, id)
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		previous_values TEXT,
		new_values TEXT,
		changed_fields TEXT NOT NULL DEFAULT '[]',
		change_summary TEXT,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_name TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_entity ON activity_log(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_activity_actor ON activity_log(actor_id);
	CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTITY STORE
// =============================================================================

func entityRow(e budget.Entity) (parentID string, deleted int, deleteOp string, payload []byte, err error) {
	if _, pid, ok := e.ParentRef(); ok {
		parentID = pid
	}
	if e.IsDeleted() {
		deleted = 1
	}
	deleteOp = e.DeleteOpID()
	payload, err = json.Marshal(e)
	return parentID, deleted, deleteOp, payload, err
}

func scanEntity(t budget.EntityType, payload []byte) (budget.Entity, error) {
	ent, ok := budget.New(t)
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err := json.Unmarshal(payload, ent); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return ent, nil
}

func (s *Store) Get(ctx context.Context, t budget.EntityType, id string) (budget.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM entities WHERE entity_type = ? AND id = ?`,
		string(t), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return scanEntity(t, payload)
}

func (s *Store) Insert(ctx context.Context, e budget.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID, deleted, deleteOp, payload, err := entityRow(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (entity_type, id, parent_id, deleted, delete_op, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.EntityType()), e.EntityID(), parentID, deleted, deleteOp, string(payload))
	return err
}

func (s *Store) Put(ctx context.Context, e budget.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentID, deleted, deleteOp, payload, err := entityRow(e)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET parent_id = ?, deleted = ?, delete_op = ?, payload = ?
		 WHERE entity_type = ? AND id = ?`,
		parentID, deleted, deleteOp, string(payload), string(e.EntityType()), e.EntityID())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrEntityNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, t budget.EntityType, includeDeleted bool) ([]budget.Entity, error) {
	query := `SELECT payload FROM entities WHERE entity_type = ? AND deleted = 0 ORDER BY id`
	if includeDeleted {
		query = `SELECT payload FROM entities WHERE entity_type = ? ORDER BY id`
	}
	return s.queryEntities(ctx, t, query, string(t))
}

func (s *Store) LiveChildren(ctx context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error) {
	return s.queryEntities(ctx, childType,
		`SELECT payload FROM entities WHERE entity_type = ? AND parent_id = ? AND deleted = 0 ORDER BY id`,
		string(childType), parentID)
}

func (s *Store) Children(ctx context.Context, childType budget.EntityType, parentID string) ([]budget.Entity, error) {
	return s.queryEntities(ctx, childType,
		`SELECT payload FROM entities WHERE entity_type = ? AND parent_id = ? ORDER BY id`,
		string(childType), parentID)
}

func (s *Store) queryEntities(ctx context.Context, t budget.EntityType, query string, args ...any) ([]budget.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.Entity
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		ent, err := scanEntity(t, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, rows.Err()
}

// =============================================================================
// REFERENCE STORE
// =============================================================================

func (s *Store) Reference(ctx context.Context, kind budget.RefKind, id string) (*budget.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref := budget.Reference{Kind: kind, ID: id}
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT name, active, usage_count FROM refs WHERE kind = ? AND id = ?`,
		string(kind), id).Scan(&ref.Name, &active, &ref.UsageCount)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	ref.Active = active != 0
	return &ref, nil
}

func (s *Store) SaveReference(ctx context.Context, ref budget.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if ref.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refs (kind, id, name, active, usage_count) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		string(ref.Kind), ref.ID, ref.Name, active, ref.UsageCount)
	return err
}

func (s *Store) ListReferences(ctx context.Context, kind budget.RefKind) ([]budget.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active, usage_count FROM refs WHERE kind = ? ORDER BY id`,
		string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.Reference
	for rows.Next() {
		ref := budget.Reference{Kind: kind}
		var active int
		if err := rows.Scan(&ref.ID, &ref.Name, &active, &ref.UsageCount); err != nil {
			return nil, err
		}
		ref.Active = active != 0
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *Store) AdjustUsage(ctx context.Context, kind budget.RefKind, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE refs SET usage_count = usage_count + ? WHERE kind = ? AND id = ?`,
		delta, string(kind), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrEntityNotFound
	}
	return nil
}

// =============================================================================
// ACTIVITY STORE - Append-only, no UPDATE or DELETE
// =============================================================================

func (s *Store) AppendActivity(ctx context.Context, entry budget.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := json.Marshal(entry.PreviousValues)
	if err != nil {
		return err
	}
	next, err := json.Marshal(entry.NewValues)
	if err != nil {
		return err
	}
	changed, err := json.Marshal(entry.ChangedFields)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(entry.ChangeSummary)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_log
		 (id, entity_type, entity_id, action, previous_values, new_values,
		  changed_fields, change_summary, actor_id, actor_name, actor_role, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.EntityType), entry.EntityID, string(entry.Action),
		string(previous), string(next), string(changed), string(summary),
		entry.ActorID, entry.ActorName, entry.ActorRole, entry.Reason,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) QueryActivity(ctx context.Context, filter budget.ActivityFilter) ([]budget.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, entity_type, entity_id, action, previous_values, new_values,
	                 changed_fields, change_summary, actor_id, actor_name, actor_role, reason, created_at
	          FROM activity_log WHERE 1=1`
	var args []any
	if filter.EntityType != nil {
		query += ` AND entity_type = ?`
		args = append(args, string(*filter.EntityType))
	}
	if filter.EntityID != nil {
		query += ` AND entity_id = ?`
		args = append(args, *filter.EntityID)
	}
	if filter.ActorID != nil {
		query += ` AND actor_id = ?`
		args = append(args, *filter.ActorID)
	}
	if filter.From != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		query += ` AND created_at <= ?`
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.ActivityLog
	for rows.Next() {
		var entry budget.ActivityLog
		var entityType, action, previous, next, changed, summary, createdAt string
		if err := rows.Scan(&entry.ID, &entityType, &entry.EntityID, &action,
			&previous, &next, &changed, &summary,
			&entry.ActorID, &entry.ActorName, &entry.ActorRole, &entry.Reason, &createdAt); err != nil {
			return nil, err
		}
		entry.EntityType = budget.EntityType(entityType)
		entry.Action = budget.Action(action)
		if err := json.Unmarshal([]byte(previous), &entry.PreviousValues); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(next), &entry.NewValues); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(changed), &entry.ChangedFields); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(summary), &entry.ChangeSummary); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
