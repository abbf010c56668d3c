package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/store"
)

const defaultProfile = "cli"

type app struct {
	profile     string
	platformURL string
	timeout     time.Duration
	storeOpts   store.Options
	verbose     bool

	// openStore is replaced in tests.
	openStore func(store.Options) (store.Store, error)
	logger    *slog.Logger
}

func newApp() *app {
	return &app{openStore: store.Open}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "quantctl",
		Short:        "Inspect and drive a quantdesk browser profile",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.profile, "profile", "p", envOr("QUANTDESK_PROFILE", defaultProfile), "profile namespace to operate on")
	f.StringVar(&a.platformURL, "platform-url", envOr("PLATFORM_API_URL", "http://localhost:9000"), "platform API base URL")
	f.DurationVar(&a.timeout, "timeout", 10*time.Second, "platform request timeout")
	f.StringVar(&a.storeOpts.Driver, "store", envOr("STORE_DRIVER", store.DriverSQLite), "store driver (sqlite, redis, memory)")
	f.StringVar(&a.storeOpts.DBPath, "db-path", envOr("DB_PATH", "./data/quantdesk.db"), "SQLite database path")
	f.StringVar(&a.storeOpts.RedisURL, "redis-url", envOr("REDIS_URL", ""), "Redis URL")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newRegisterCmd(a),
		newWhoamiCmd(a),
		newUserCmd(a),
		newGuardCmd(a),
		newHistoryCmd(a),
		newAskCmd(a),
		newKeysCmd(),
	)
	return root
}

// withStore opens the backend, scopes it to the profile and closes it when
// fn returns.
func (a *app) withStore(fn func(kv store.Store) error) (err error) {
	base, err := a.openStore(a.storeOpts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := base.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(store.Scoped(base, a.profile))
}

// withBase is withStore without the profile scope.
func (a *app) withBase(fn func(base store.Store) error) (err error) {
	base, err := a.openStore(a.storeOpts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := base.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(base)
}

func (a *app) gateway() *auth.Gateway {
	client := auth.NewClient(a.platformURL, &http.Client{Timeout: a.timeout})
	return auth.NewGateway(client, nil, a.logger)
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
