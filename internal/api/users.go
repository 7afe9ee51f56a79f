package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/lofoph/internal/store"
)

// UsersHandler serves the current user's profile.
type UsersHandler struct {
	DB *sql.DB
}

// Me handles GET /api/v1/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, msgNotLoggedIn)
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "The user belonging to this token no longer exists.")
		return
	}

	jsonSuccess(w, http.StatusOK, map[string]any{"doc": user.User})
}
