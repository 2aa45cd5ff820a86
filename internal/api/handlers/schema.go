// HTTP handlers for read-only schema introspection of the queried database.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/askdb-ai/askdb/internal/domain/schema"
)

// SchemaHandler exposes the live schema of the data connection.
type SchemaHandler struct {
	introspector *schema.Introspector
}

// NewSchemaHandler creates a SchemaHandler.
func NewSchemaHandler(introspector *schema.Introspector) *SchemaHandler {
	return &SchemaHandler{introspector: introspector}
}

// ListTables handles GET /api/v1/schema/tables.
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.introspector.Tables(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tables")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// DescribeTable handles GET /api/v1/schema/tables/{name}. Samples are
// excluded; this endpoint documents structure, not data.
func (h *SchemaHandler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	exists, err := h.introspector.TableExists(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to inspect table")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "table not found")
		return
	}

	ts, err := h.introspector.Describe(r.Context(), name, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to describe table")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":       ts.Name,
		"columns":     ts.Columns,
		"foreignKeys": ts.ForeignKeys,
		"description": schema.Format(ts),
	})
}
