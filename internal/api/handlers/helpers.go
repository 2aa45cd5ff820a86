// Package handlers contains the HTTP handlers for the askdb API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/askdb-ai/askdb/internal/api/ctxkeys"
)

const headerContentType = "Content-Type"

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload) //nolint:errcheck
}

// clientID retrieves the authenticated client id from context.
// Empty when the route is not behind AuthMiddleware.
func clientID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.ClientID).(string)
	return id
}

// parseListLimit extracts and clamps the limit query param for list endpoints.
func parseListLimit(r *http.Request) int {
	limit := defaultListLimit
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		if lim > maxListLimit {
			lim = maxListLimit
		}
		limit = lim
	}
	return limit
}
