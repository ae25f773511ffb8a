/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/budget-items/*     Top-level budget lines
  /api/projects/*         Mid-level projects
  /api/breakdowns/*       Leaf breakdown records
  /api/funds/*            Fund (DF) roots
  /api/fund-breakdowns/*  Fund-specific breakdowns
  /api/recalculate        Rollup retrigger
  /api/activity           Audit trail
  /api/references/*       Category/office reference tables

  Every entity collection exposes the same sub-routes; see
  entityRoutes below. Only create/update differ per type because they
  decode typed request bodies.

SECURITY NOTE:
  Actor identity comes from trusted headers (X-Actor-*); this assumes
  an authenticating proxy in front. No auth middleware here.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/budget-engine/budget"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Name", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/budget-items", func(r chi.Router) {
			entityRoutes(r, h, budget.TypeBudgetItem, h.CreateBudgetItem, h.UpdateBudgetItem)
		})
		r.Route("/projects", func(r chi.Router) {
			entityRoutes(r, h, budget.TypeProject, h.CreateProject, h.UpdateProject)
		})
		r.Route("/breakdowns", func(r chi.Router) {
			entityRoutes(r, h, budget.TypeBreakdown, h.CreateBreakdown, h.UpdateBreakdown)
		})
		r.Route("/funds", func(r chi.Router) {
			entityRoutes(r, h, budget.TypeFund, h.CreateFund, h.UpdateFund)
		})
		r.Route("/fund-breakdowns", func(r chi.Router) {
			entityRoutes(r, h, budget.TypeFundBreakdown, h.CreateFundBreakdown, h.UpdateFundBreakdown)
		})

		r.Post("/recalculate", h.Recalculate)
		r.Get("/activity", h.ListActivity)

		r.Route("/references/{kind}", func(r chi.Router) {
			r.Get("/", h.ListReferences)
			r.Post("/", h.SaveReference)
		})
	})

	return r
}

// entityRoutes registers the shared sub-routes for one entity
// collection. Create and update take typed handlers; everything else is
// generic over the entity type.
func entityRoutes(r chi.Router, h *Handler, t budget.EntityType, create, update http.HandlerFunc) {
	r.Get("/", h.list(t))
	r.Post("/", create)
	r.Get("/{id}", h.get(t))
	r.Put("/{id}", update)
	r.Delete("/{id}", h.cascadeDelete(t))
	r.Get("/{id}/cascade-preview", h.cascadePreview(t))
	r.Post("/{id}/restore", h.restore(t))
}
