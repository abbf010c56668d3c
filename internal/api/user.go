package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/session"
)

// UserHandler serves the signed-in user and the profile viewer. Its routes
// must sit behind session.RequireSession.
type UserHandler struct {
	*Handler
	gw *auth.Gateway
}

// NewUserHandler creates a user handler.
func NewUserHandler(base *Handler, gw *auth.Gateway) *UserHandler {
	return &UserHandler{Handler: base, gw: gw}
}

// RegisterRoutes registers user routes on a guarded router.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/users/{id}", h.GetUser)
}

// GetMe returns the cached user-info snapshot, or refetches it with
// ?refresh=1.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := session.ClaimsFromContext(r.Context())
	kv := h.StoreFor(r)

	if r.URL.Query().Get("refresh") == "1" {
		u, err := h.gw.CurrentUser(r.Context(), kv)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		JSON(w, http.StatusOK, u)
		return
	}

	u, ok, err := auth.Snapshot(r.Context(), kv)
	if err != nil {
		slog.Warn("failed to read user info snapshot", "error", err)
	}
	if !ok && claims != nil {
		u, ok = &claims.UserInfo, true
	}
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, u)
}

// GetUser returns another user's public profile.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.gw.UserByID(r.Context(), h.StoreFor(r), id)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	JSON(w, http.StatusOK, u)
}
