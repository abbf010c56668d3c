package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/identity"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/token"
)

// DashboardPath is where a successful login lands.
const DashboardPath = "/dashboard"

// AuthHandler handles login, logout and registration.
type AuthHandler struct {
	*Handler
	gw      *auth.Gateway
	limiter *auth.Limiter
}

// NewAuthHandler creates an auth handler. A nil limiter disables throttling.
func NewAuthHandler(base *Handler, gw *auth.Gateway, limiter *auth.Limiter) *AuthHandler {
	if limiter == nil {
		limiter = auth.NewLimiter(0)
	}
	return &AuthHandler{Handler: base, gw: gw, limiter: limiter}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/register", h.Register)
		r.Get("/remembered", h.Remembered)
	})
}

// Login exchanges credentials for a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "too many login attempts, please wait a minute")
		return
	}

	var creds domain.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	claims, err := h.gw.Login(r.Context(), h.StoreFor(r), creds)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user":       claims.UserInfo,
		"expires_at": claims.ExpiresAt,
		"redirect":   DashboardPath,
	})
}

// Logout always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gw.Logout(r.Context(), h.StoreFor(r))
	JSON(w, http.StatusOK, map[string]string{"redirect": session.LoginPath})
}

// Register creates an account; the caller then logs in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" || reg.Password == "" {
		Error(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if err := h.gw.Register(r.Context(), reg); err != nil {
		if errors.Is(err, auth.ErrAuth) {
			Error(w, http.StatusBadRequest, auth.Message(err))
			return
		}
		writeAuthError(w, err)
		return
	}
	JSON(w, http.StatusCreated, map[string]string{"redirect": session.LoginPath})
}

// Remembered returns the login prefill, or 204 when there is none.
func (h *AuthHandler) Remembered(w http.ResponseWriter, r *http.Request) {
	creds, ok, err := auth.RememberedCredentials(r.Context(), h.StoreFor(r))
	if err != nil {
		slog.Warn("failed to read remembered credentials", "error", err)
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	JSON(w, http.StatusOK, creds)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAuth):
		Error(w, http.StatusUnauthorized, auth.Message(err))
	case errors.Is(err, auth.ErrNetwork):
		slog.Warn("platform request failed", "error", err)
		Error(w, http.StatusBadGateway, auth.Message(err))
	case errors.Is(err, token.ErrDecode):
		slog.Warn("platform issued an unreadable token", "error", err)
		Error(w, http.StatusBadGateway, "login failed, please try again")
	default:
		slog.Error("auth request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
