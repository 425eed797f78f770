package httpapi

import (
	"net/http"
	"strings"
	"time"

	"embedgate.io/internal/auth"
)

type embedTokenRequest struct {
	APIKey   string `json:"api_key"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}

type embedTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const embedTokenTTL = 15 * time.Minute

func (a *API) handleEmbedToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.apiKeyHash == "" {
		writeError(w, r, http.StatusServiceUnavailable, "token issuance disabled")
		return
	}

	var req embedTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	userID := strings.TrimSpace(req.UserID)
	if tenantID == "" || userID == "" {
		writeError(w, r, http.StatusBadRequest, "tenant_id and user_id are required")
		return
	}

	ok, err := auth.VerifyAPIKey(a.apiKeyHash, req.APIKey)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "api key verification failed")
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid api key")
		return
	}

	token, err := auth.GenerateEmbedToken(tenantID, userID, embedTokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(embedTokenTTL)
	a.audit(r.Context(), "auth.embed_token.issued", map[string]any{
		"tenant_id":  tenantID,
		"user_id":    userID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, embedTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
