package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/quantdesk/internal/assistant"
	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/identity"
	"github.com/ashureev/quantdesk/internal/middleware"
	"github.com/ashureev/quantdesk/internal/relay"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/store"
)

// Deps are the collaborators of the HTTP surface. Bridge, Metrics and SPA
// are optional.
type Deps struct {
	Store          store.Store
	Gateway        *auth.Gateway
	Limiter        *auth.Limiter
	Guard          *session.Guard
	Assistant      *assistant.Manager
	Registry       *relay.Registry
	Bridge         http.Handler
	Metrics        http.Handler
	SPA            http.Handler
	ChatURL        string
	AllowedOrigins []string
	IsDev          bool
	// TrustProxy takes the client address from forwarding headers. Enable
	// only behind a proxy that overwrites them.
	TrustProxy bool
}

// NewRouter assembles every route of the shell.
func NewRouter(d Deps) chi.Router {
	base := NewHandler(d.Store)
	authHandler := NewAuthHandler(base, d.Gateway, d.Limiter)
	userHandler := NewUserHandler(base, d.Gateway)
	assistantHandler := NewAssistantHandler(base, d.Assistant, d.Registry, d.ChatURL)
	prefsHandler := NewPrefsHandler(base)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	if d.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	// Routes without a browser profile.
	NewHealthHandler(d.Store).RegisterHealth(r)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.Bridge != nil {
		r.Get("/ws/assistant", d.Bridge.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(origins))
		r.Use(identity.Middleware(d.IsDev))

		authHandler.RegisterRoutes(r)
		assistantHandler.RegisterRoutes(r)
		prefsHandler.RegisterRoutes(r)

		// Guarded routes.
		r.Group(func(r chi.Router) {
			r.Use(session.RequireSession(d.Guard, base.StoreFor))
			userHandler.RegisterRoutes(r)
			if d.SPA != nil {
				r.Handle("/dashboard", d.SPA)
				r.Handle("/dashboard/*", d.SPA)
			}
		})

		if d.SPA != nil {
			r.Handle("/*", d.SPA)
		}
	})

	return r
}
