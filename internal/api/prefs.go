package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
)

// PrefsHandler serves shell preferences.
type PrefsHandler struct {
	*Handler
}

// NewPrefsHandler creates a prefs handler.
func NewPrefsHandler(base *Handler) *PrefsHandler {
	return &PrefsHandler{Handler: base}
}

// RegisterRoutes registers preference routes.
func (h *PrefsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/prefs/theme", h.GetTheme)
	r.Put("/api/prefs/theme", h.PutTheme)
}

// GetTheme returns the stored theme, dark by default.
func (h *PrefsHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	raw, ok, err := h.StoreFor(r).Get(r.Context(), store.ThemeKey.Name)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read theme")
		return
	}
	theme := domain.Theme(raw)
	if !ok || !theme.Valid() {
		theme = domain.ThemeDark
	}
	JSON(w, http.StatusOK, map[string]domain.Theme{"theme": theme})
}

// PutTheme stores the theme.
func (h *PrefsHandler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme domain.Theme `json:"theme"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Theme.Valid() {
		Error(w, http.StatusBadRequest, `theme must be "dark" or "light"`)
		return
	}
	if err := h.StoreFor(r).Set(r.Context(), store.ThemeKey.Name, string(req.Theme)); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	JSON(w, http.StatusOK, map[string]domain.Theme{"theme": req.Theme})
}
