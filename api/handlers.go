/*
handlers.go - HTTP API handlers for the budget tracking engine

PURPOSE:
  Exposes the rollup/cascade engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Entities (same shape for budget-items, projects, breakdowns, funds,
  fund-breakdowns):
    GET    /api/{collection}                      List (live only; ?include_deleted=true for trash)
    POST   /api/{collection}                      Create
    GET    /api/{collection}/{id}                 Get one (trashed rows included)
    PUT    /api/{collection}/{id}                 Partial update
    DELETE /api/{collection}/{id}?confirmed=true  Cascade soft-delete
    GET    /api/{collection}/{id}/cascade-preview Blast-radius preview
    POST   /api/{collection}/{id}/restore         Restore from trash

  Cross-cutting:
    POST   /api/recalculate                       Re-run rollup for an entity + ancestors
    GET    /api/activity                          Audit records (filterable)
    GET    /api/references/{kind}                 List category/office references
    POST   /api/references/{kind}                 Create/update a reference

ACTOR CONTEXT:
  Mutations read the acting user from request headers:
    X-Actor-ID, X-Actor-Name, X-Actor-Role
  Missing name/role are backfilled from the actor directory when
  configured; otherwise the audit trail records "Unknown".

ERROR HANDLING:
  Engine errors map to HTTP status by category:
  - 400: validation errors, invalid input
  - 403: permission gate denied
  - 404: entity not found
  - 409: missing delete confirmation, invalid restore state
  - 500: internal errors

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
  - engine package: all domain rules
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
}

// NewHandler creates a new handler backed by the given engine.
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{Engine: eng}
}

// actorFromRequest reads the acting user from request headers.
func actorFromRequest(r *http.Request) engine.Actor {
	return engine.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Name: r.Header.Get("X-Actor-Name"),
		Role: r.Header.Get("X-Actor-Role"),
	}
}

// =============================================================================
// GENERIC ENTITY HANDLERS - Shared across all five collections
// =============================================================================

// list returns all entities of one type, live only unless
// include_deleted=true.
func (h *Handler) list(t budget.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeDeleted := r.URL.Query().Get("include_deleted") == "true"
		entities, err := h.Engine.Store.List(r.Context(), t, includeDeleted)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list entities", err)
			return
		}
		if entities == nil {
			entities = []budget.Entity{}
		}
		writeJSON(w, http.StatusOK, entities)
	}
}

// get returns a single entity. Trashed rows are returned too so trash
// views can render them.
func (h *Handler) get(t budget.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ent, err := h.Engine.Store.Get(r.Context(), t, id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ent)
	}
}

// cascadePreview returns the read-only blast radius of a delete.
func (h *Handler) cascadePreview(t budget.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := h.Engine.PlanCascadeDelete(r.Context(), t, chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	}
}

// cascadeDelete soft-deletes the entity and its live descendants.
// Requires ?confirmed=true; the preview endpoint exists so the caller
// can show the blast radius first.
func (h *Handler) cascadeDelete(t budget.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirmed := r.URL.Query().Get("confirmed") == "true"
		reason := r.URL.Query().Get("reason")
		result, err := h.Engine.ExecuteCascadeDelete(r.Context(), actorFromRequest(r), t, chi.URLParam(r, "id"), confirmed, reason)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// restore revives a trashed entity and the descendants removed by the
// same cascade operation.
func (h *Handler) restore(t budget.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := h.Engine.Restore(r.Context(), actorFromRequest(r), t, chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// =============================================================================
// BUDGET ITEM HANDLERS
// =============================================================================

func (h *Handler) CreateBudgetItem(w http.ResponseWriter, r *http.Request) {
	var req CreateBudgetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	item, err := h.Engine.CreateBudgetItem(r.Context(), actorFromRequest(r), req.toEntity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateBudgetItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateBudgetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	item, err := h.Engine.UpdateBudgetItem(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), req.toPatch(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	project, err := h.Engine.CreateProject(r.Context(), actorFromRequest(r), req.toEntity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	project, err := h.Engine.UpdateProject(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), req.toPatch(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// =============================================================================
// BREAKDOWN HANDLERS
// =============================================================================

func (h *Handler) CreateBreakdown(w http.ResponseWriter, r *http.Request) {
	var req CreateBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	breakdown, err := h.Engine.CreateBreakdown(r.Context(), actorFromRequest(r), req.toEntity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, breakdown)
}

func (h *Handler) UpdateBreakdown(w http.ResponseWriter, r *http.Request) {
	var req UpdateBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	breakdown, err := h.Engine.UpdateBreakdown(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), req.toPatch(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// =============================================================================
// FUND HANDLERS
// =============================================================================

func (h *Handler) CreateFund(w http.ResponseWriter, r *http.Request) {
	var req CreateFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fund, err := h.Engine.CreateFund(r.Context(), actorFromRequest(r), req.toEntity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fund)
}

func (h *Handler) UpdateFund(w http.ResponseWriter, r *http.Request) {
	var req UpdateFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fund, err := h.Engine.UpdateFund(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), req.toPatch(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

// =============================================================================
// FUND BREAKDOWN HANDLERS
// =============================================================================

func (h *Handler) CreateFundBreakdown(w http.ResponseWriter, r *http.Request) {
	var req CreateFundBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	breakdown, err := h.Engine.CreateFundBreakdown(r.Context(), actorFromRequest(r), req.toEntity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, breakdown)
}

func (h *Handler) UpdateFundBreakdown(w http.ResponseWriter, r *http.Request) {
	var req UpdateFundBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	breakdown, err := h.Engine.UpdateFundBreakdown(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), req.toPatch(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// =============================================================================
// RECALCULATION
// =============================================================================

// Recalculate re-runs the rollup for one entity and its ancestor chain.
// Idempotent; safe to call from a repair job or after a bulk import.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	t, ok := budget.ParseEntityType(req.EntityType)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown entity type", nil)
		return
	}
	result, err := h.Engine.Recalculate(r.Context(), t, req.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// ACTIVITY
// =============================================================================

// ListActivity returns audit records, newest first.
// Query params: entity_type, entity_id, actor_id, from, to (RFC3339), limit.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter budget.ActivityFilter

	if s := q.Get("entity_type"); s != "" {
		t, ok := budget.ParseEntityType(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown entity type", nil)
			return
		}
		filter.EntityType = &t
	}
	if s := q.Get("entity_id"); s != "" {
		filter.EntityID = &s
	}
	if s := q.Get("actor_id"); s != "" {
		filter.ActorID = &s
	}
	if s := q.Get("from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp", err)
			return
		}
		filter.From = &ts
	}
	if s := q.Get("to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp", err)
			return
		}
		filter.To = &ts
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Engine.Activity(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query activity", err)
		return
	}
	if entries == nil {
		entries = []budget.ActivityLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// REFERENCES
// =============================================================================

func parseRefKind(s string) (budget.RefKind, bool) {
	switch budget.RefKind(s) {
	case budget.RefCategory, budget.RefOffice:
		return budget.RefKind(s), true
	}
	return "", false
}

func (h *Handler) ListReferences(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseRefKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown reference kind", nil)
		return
	}
	refs, err := h.Engine.Store.ListReferences(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list references", err)
		return
	}
	if refs == nil {
		refs = []budget.Reference{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// SaveReference creates or updates a category/office reference row.
// Usage counters are engine-maintained and never set through this
// endpoint.
func (h *Handler) SaveReference(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseRefKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown reference kind", nil)
		return
	}
	var req SaveReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Reference id is required", nil)
		return
	}

	ref := budget.Reference{Kind: kind, ID: req.ID, Name: req.Name, Active: true}
	if req.Active != nil {
		ref.Active = *req.Active
	}
	if existing, err := h.Engine.Store.Reference(r.Context(), kind, req.ID); err == nil {
		ref.UsageCount = existing.UsageCount
	}

	if err := h.Engine.Store.SaveReference(r.Context(), ref); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save reference", err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine error categories to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, engine.ErrConfirmationRequired):
		writeError(w, http.StatusConflict, "Confirmation required", err)
	case errors.Is(err, engine.ErrInvalidRestoreState):
		writeError(w, http.StatusConflict, "Invalid restore state", err)
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
