// Package api registers the HTTP routes: public health and token endpoints,
// and the JWT-protected /api/v1/* surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/askdb-ai/askdb/internal/api/handlers"
	apmiddleware "github.com/askdb-ai/askdb/internal/api/middleware"
	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/schema"
	"github.com/askdb-ai/askdb/internal/search"
)

// Deps are the wired application services the routes dispatch into. The
// server package constructs them once at startup; routes never build
// services themselves.
type Deps struct {
	Agent        handlers.AskService
	Store        *knowledge.Store
	Searcher     search.Driver
	Introspector *schema.Introspector

	// APISecretHash is the bcrypt hash verified by /auth/token. Empty
	// disables token issuance (the protected routes then stay unreachable
	// without an externally minted JWT).
	APISecretHash string

	Logger *slog.Logger
}

// NewRouter creates and configures the chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check — unauthenticated, used by load balancers and health probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(deps.APISecretHash)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.Token) // POST /auth/token
	})

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	askHandler := handlers.NewAskHandler(deps.Agent, deps.Store, deps.Logger)
	knowledgeHandler := handlers.NewKnowledgeHandler(deps.Store, deps.Searcher)
	schemaHandler := handlers.NewSchemaHandler(deps.Introspector)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)

		r.Route("/ask", func(r chi.Router) {
			r.Post("/", askHandler.Ask)             // POST /api/v1/ask
			r.Post("/stream", askHandler.AskStream) // POST /api/v1/ask/stream (SSE)
		})

		r.Route("/learnings", func(r chi.Router) {
			r.Get("/", knowledgeHandler.ListLearnings)         // GET /api/v1/learnings
			r.Delete("/{id}", knowledgeHandler.DeleteLearning) // DELETE /api/v1/learnings/{id}
		})

		r.Route("/patterns", func(r chi.Router) {
			r.Get("/", knowledgeHandler.ListQueryPatterns)         // GET /api/v1/patterns
			r.Delete("/{id}", knowledgeHandler.DeleteQueryPattern) // DELETE /api/v1/patterns/{id}
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/search", knowledgeHandler.Search) // POST /api/v1/knowledge/search
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/{id}/messages", knowledgeHandler.ListMessages) // GET /api/v1/conversations/{id}/messages
			r.Delete("/{id}", knowledgeHandler.DeleteConversation) // DELETE /api/v1/conversations/{id}
		})

		r.Route("/schema", func(r chi.Router) {
			r.Get("/tables", schemaHandler.ListTables)           // GET /api/v1/schema/tables
			r.Get("/tables/{name}", schemaHandler.DescribeTable) // GET /api/v1/schema/tables/{name}
		})
	})

	return r
}
