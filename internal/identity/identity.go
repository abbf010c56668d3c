// Package identity provides anonymous per-browser profile identity. Each
// profile owns one key-value namespace in the store.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"
)

const (
	ProfileCookieName = "quantdesk_profile"
	profileCookieAge  = 180 * 24 * time.Hour
)

type contextKey int

const profileIDKey contextKey = iota

var profileIDPattern = regexp.MustCompile(`^prof_[a-f0-9]{32}$`)

// ProfileIDFromContext extracts the profile ID from the request context.
func ProfileIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(profileIDKey).(string); ok {
		return v
	}
	return ""
}

// WithProfileID returns ctx carrying id.
func WithProfileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, profileIDKey, id)
}

// NewProfileID returns a fresh random profile ID.
func NewProfileID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate profile id: %w", err)
	}
	return "prof_" + hex.EncodeToString(buf), nil
}

// IsValidProfileID reports whether id has the profile ID shape.
func IsValidProfileID(id string) bool {
	return profileIDPattern.MatchString(id)
}

func setProfileCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(profileCookieAge.Seconds()),
		Expires:  time.Now().Add(profileCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateProfileID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(ProfileCookieName); err == nil && IsValidProfileID(c.Value) {
		setProfileCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := NewProfileID()
	if err != nil {
		return "", err
	}
	setProfileCookie(w, id, isDev)
	return id, nil
}

// Middleware assigns every browser a profile cookie and injects its ID.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := getOrCreateProfileID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish browser profile"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfileID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
