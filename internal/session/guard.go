// Package session decides whether a guarded view may render.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
	"github.com/ashureev/quantdesk/internal/token"
)

// LoginPath is where every rejected navigation is sent.
const LoginPath = "/login"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Outcome is the terminal state of a check.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Allow {
		return "allow"
	}
	return "redirect"
}

// Reason records which stage produced the verdict.
type Reason string

const (
	ReasonValid            Reason = "valid"
	ReasonTokenAbsent      Reason = "token_absent"
	ReasonDecodeFailed     Reason = "decode_failed"
	ReasonExpired          Reason = "expired"
	ReasonStoreUnavailable Reason = "store_unavailable"
)

// Verdict is the result of one navigation check.
type Verdict struct {
	Outcome    Outcome
	RedirectTo string
	Reason     Reason
	// Claims is set only when Outcome is Allow.
	Claims *domain.Claims
}

// Allowed reports whether the guarded view may render.
func (v Verdict) Allowed() bool { return v.Outcome == Allow }

func redirect(reason Reason) Verdict {
	return Verdict{Outcome: Redirect, RedirectTo: LoginPath, Reason: reason}
}

// Decide runs CheckPresence, CheckDecode and CheckExpiry against kv. On
// decode failure or expiry both the token and the user-info snapshot are
// removed before the redirect is returned. The returned error only reports
// a failed clear; the verdict is valid either way.
func Decide(ctx context.Context, kv store.Store, codec token.Decoder, clock Clock) (Verdict, error) {
	raw, ok, err := kv.Get(ctx, store.TokenKey.Name)
	if err != nil {
		return redirect(ReasonStoreUnavailable), err
	}
	if !ok {
		return redirect(ReasonTokenAbsent), nil
	}

	claims, err := codec.Decode(raw)
	if err != nil {
		return redirect(ReasonDecodeFailed), kv.Remove(ctx, store.SessionKeys...)
	}

	if claims.Expired(clock.Now()) {
		return redirect(ReasonExpired), kv.Remove(ctx, store.SessionKeys...)
	}

	return Verdict{Outcome: Allow, Reason: ReasonValid, Claims: claims}, nil
}

// Observer is notified of every verdict.
type Observer interface {
	ObserveVerdict(reason string)
}

// Guard wraps Decide with logging and metrics. It holds no per-navigation
// state, so every call re-reads the store.
type Guard struct {
	codec    token.Decoder
	clock    Clock
	logger   *slog.Logger
	observer Observer
}

// NewGuard creates a guard. Nil arguments fall back to token.Codec,
// SystemClock and slog.Default.
func NewGuard(codec token.Decoder, clock Clock, logger *slog.Logger) *Guard {
	if codec == nil {
		codec = token.Codec{}
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{codec: codec, clock: clock, logger: logger}
}

// SetObserver attaches a verdict observer.
func (g *Guard) SetObserver(o Observer) {
	g.observer = o
}

// Check decides one navigation against the profile store kv.
func (g *Guard) Check(ctx context.Context, kv store.Store) Verdict {
	v, err := Decide(ctx, kv, g.codec, g.clock)
	if err != nil {
		g.logger.Warn("session guard store error", "reason", v.Reason, "error", err)
	}
	if v.Reason == ReasonDecodeFailed || v.Reason == ReasonExpired {
		g.logger.Info("session cleared by guard", "reason", v.Reason)
	}
	if g.observer != nil {
		g.observer.ObserveVerdict(string(v.Reason))
	}
	return v
}
