package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
)

type contextKey int

const claimsKey contextKey = iota

// ClaimsFromContext returns the claims of an allowed navigation.
func ClaimsFromContext(ctx context.Context) (*domain.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*domain.Claims)
	return c, ok
}

// StoreResolver returns the profile store for a request.
type StoreResolver func(r *http.Request) store.Store

// RequireSession gates next behind the guard. Page navigations are
// redirected to LoginPath; API calls get 401 with the redirect target.
func RequireSession(g *Guard, resolve StoreResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := g.Check(r.Context(), resolve(r))
			if v.Allowed() {
				ctx := context.WithValue(r.Context(), claimsKey, v.Claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":    "unauthorized",
					"reason":   string(v.Reason),
					"redirect": v.RedirectTo,
				})
				return
			}
			http.Redirect(w, r, v.RedirectTo, http.StatusFound)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
