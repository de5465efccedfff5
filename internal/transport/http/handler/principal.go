package handler

import (
	"net/http"

	"github.com/agency-backoffice/internal/transport/http/middleware"
)

// principalID returns the authenticated principal or writes a 401.
func principalID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.PrincipalID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.PrincipalID, true
}
