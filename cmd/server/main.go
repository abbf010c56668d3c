// QuantDesk - trading dashboard shell server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/quantdesk/internal/api"
	"github.com/ashureev/quantdesk/internal/assistant"
	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/config"
	"github.com/ashureev/quantdesk/internal/metrics"
	"github.com/ashureev/quantdesk/internal/relay"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/store"
	"github.com/ashureev/quantdesk/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Driver)

	kv, err := store.Open(cfg.Store.Options())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = kv.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return err
	}
	slog.Info("Store connected")

	m := metrics.New(nil)

	gateway := auth.NewGateway(auth.NewClient(cfg.PlatformURL, &http.Client{Timeout: cfg.HTTPClientTimeout}), nil, logger)
	gateway.SetObserver(m)

	guard := session.NewGuard(nil, nil, logger)
	guard.SetObserver(m)

	mgr := assistant.NewManager(kv, assistant.Options{
		FrameTimeout: cfg.Assistant.FrameLoadTimeout,
		TypingSpeed:  cfg.Assistant.TypingSpeed,
		Logger:       logger,
	})

	registry := relay.NewRegistry()
	rl := relay.New(registry, mgr, relay.Options{
		AllowedOrigin: cfg.Assistant.Origin,
		RetryDelay:    cfg.Assistant.RelayRetryDelay,
		AckTimeout:    cfg.Assistant.RelayAckTimeout,
		Logger:        logger,
	})
	rl.SetObserver(m)
	mgr.SetRelay(rl)

	if cfg.Assistant.URL == "" {
		slog.Info("Assistant chat disabled (ASSISTANT_URL not set)")
	}

	origins := []string{"*"}
	if cfg.FrontendURL != "" {
		origins = []string{cfg.FrontendURL}
	}

	r := api.NewRouter(api.Deps{
		Store:          kv,
		Gateway:        gateway,
		Limiter:        auth.NewLimiter(cfg.LoginRateLimit),
		Guard:          guard,
		Assistant:      mgr,
		Registry:       registry,
		Bridge:         relay.NewBridge(registry, mgr, cfg.Assistant.Origin, logger),
		Metrics:        m.Handler(),
		SPA:            web.SPAHandler(),
		ChatURL:        cfg.Assistant.URL,
		AllowedOrigins: origins,
		IsDev:          cfg.IsDevelopment(),
		TrustProxy:     cfg.TrustProxy,
	})

	// SSE and the frame websocket are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
