// HTTP handler for token issuance (public endpoint — no AuthMiddleware).
// Verifies the shared API secret against its bcrypt hash and mints a JWT.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgauth "github.com/askdb-ai/askdb/pkg/auth"
)

// AuthHandler handles authentication HTTP requests.
// Token issuance is deliberately simple: one shared secret, hashed with
// bcrypt in configuration, exchanged for a short-lived bearer JWT.
type AuthHandler struct {
	secretHash string
}

// NewAuthHandler creates an AuthHandler verifying against the given bcrypt
// hash. An empty hash disables token issuance entirely.
func NewAuthHandler(secretHash string) *AuthHandler {
	return &AuthHandler{secretHash: secretHash}
}

// TokenRequest is the request body for POST /auth/token.
type TokenRequest struct {
	ClientID string `json:"clientId"`
	Secret   string `json:"secret"`
}

// TokenResponse is the response body returned after successful issuance.
type TokenResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// Token handles POST /auth/token.
//
// Response codes:
//   - 200 OK: secret verified, token issued
//   - 400 Bad Request: invalid JSON or missing required fields
//   - 401 Unauthorized: secret does not match
//   - 503 Service Unavailable: no API secret configured on this installation
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.secretHash == "" {
		writeError(w, http.StatusServiceUnavailable, "token issuance is not configured")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateTokenRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !pkgauth.VerifySecret(h.secretHash, req.Secret) {
		// Generic message — does not reveal whether the client id exists.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := pkgauth.GenerateJWT(req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token, ClientID: req.ClientID})
}

// validateTokenRequest checks required fields for the token endpoint.
func validateTokenRequest(req TokenRequest) error {
	if req.ClientID == "" {
		return errors.New("clientId is required")
	}
	if req.Secret == "" {
		return errors.New("secret is required")
	}
	return nil
}
