// Package auth is the only writer of the session token and user-info
// entries. It proxies login, logout and registration to the platform API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
	"github.com/ashureev/quantdesk/internal/token"
)

// Operation names reported to the Observer.
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpInfo     = "info"
)

// Outcomes reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNetwork  = "network"
	OutcomeDecode   = "decode"
	OutcomeError    = "error"
)

// Observer is notified once per gateway call.
type Observer interface {
	ObserveAuth(op, outcome string)
}

var (
	userInfoEntry   = store.JSON[domain.UserInfo](store.UserInfoKey)
	rememberedEntry = store.JSON[domain.RememberedUser](store.RememberedUserKey)
)

// Gateway performs auth calls on behalf of one profile store at a time.
// It is safe for concurrent use.
type Gateway struct {
	client   *Client
	codec    token.Decoder
	logger   *slog.Logger
	observer Observer
}

// NewGateway creates a gateway. Nil codec and logger fall back to
// token.Codec and slog.Default.
func NewGateway(client *Client, codec token.Decoder, logger *slog.Logger) *Gateway {
	if codec == nil {
		codec = token.Codec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, codec: codec, logger: logger}
}

// SetObserver attaches an outcome observer.
func (g *Gateway) SetObserver(o Observer) {
	g.observer = o
}

func (g *Gateway) observe(op string, err error) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveAuth(op, outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAuth):
		return OutcomeRejected
	case errors.Is(err, ErrNetwork):
		return OutcomeNetwork
	case errors.Is(err, token.ErrDecode):
		return OutcomeDecode
	default:
		return OutcomeError
	}
}

// Login exchanges credentials for a session token and stores it together
// with the user-info snapshot. Remembered credentials are written on opt-in
// and deleted otherwise. Nothing is written unless the token decodes.
func (g *Gateway) Login(ctx context.Context, kv store.Store, creds domain.Credentials) (claims *domain.Claims, err error) {
	defer func() { g.observe(OpLogin, err) }()

	data, err := g.client.do(ctx, OpLogin, http.MethodPost, PathLogin, "", map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return nil, err
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &token.DecodeError{Reason: "login data is not a token string", Err: err}
	}

	claims, err = g.codec.Decode(raw)
	if err != nil {
		return nil, err
	}

	info, err := userInfoEntry.Encode(claims.UserInfo)
	if err != nil {
		return nil, err
	}
	if err := kv.SetMany(ctx, map[string]string{
		store.TokenKey.Name:    raw,
		store.UserInfoKey.Name: info,
	}); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if creds.Remember {
		err = rememberedEntry.Save(ctx, kv, domain.RememberedUser{Username: creds.Username, Password: creds.Password})
	} else {
		err = rememberedEntry.Delete(ctx, kv)
	}
	if err != nil {
		// The session is already usable; the prefill cache is not.
		g.logger.Warn("failed to update remembered credentials", "error", err)
		err = nil
	}

	g.logger.Info("login succeeded", "user_id", claims.UserInfo.ID)
	return claims, nil
}

// Logout notifies the platform and always clears the token and user-info
// snapshot, whatever the outcome of the network call.
func (g *Gateway) Logout(ctx context.Context, kv store.Store) {
	bearer, _, readErr := kv.Get(ctx, store.TokenKey.Name)
	if readErr != nil {
		g.logger.Warn("logout could not read token", "error", readErr)
	}

	defer func() {
		if err := kv.Remove(context.WithoutCancel(ctx), store.SessionKeys...); err != nil {
			g.logger.Error("logout failed to clear session", "error", err)
		}
	}()

	_, err := g.client.do(ctx, OpLogout, http.MethodPost, PathLogout, bearer, nil)
	g.observe(OpLogout, err)
	if err != nil {
		g.logger.Warn("logout notification failed", "error", err)
	}
}

// Register creates an account. It does not touch local state.
func (g *Gateway) Register(ctx context.Context, reg domain.Registration) error {
	_, err := g.client.do(ctx, OpRegister, http.MethodPost, PathRegister, "", reg)
	g.observe(OpRegister, err)
	return err
}

// CurrentUser fetches the signed-in user's profile. The cached snapshot is
// left as is.
func (g *Gateway) CurrentUser(ctx context.Context, kv store.Store) (*domain.UserInfo, error) {
	bearer, _, err := kv.Get(ctx, store.TokenKey.Name)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return g.fetchUser(ctx, PathInfo, bearer)
}

// UserByID fetches another user's profile.
func (g *Gateway) UserByID(ctx context.Context, kv store.Store, id int64) (*domain.UserInfo, error) {
	bearer, _, err := kv.Get(ctx, store.TokenKey.Name)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return g.fetchUser(ctx, PathInfo+"/"+strconv.FormatInt(id, 10), bearer)
}

func (g *Gateway) fetchUser(ctx context.Context, path, bearer string) (*domain.UserInfo, error) {
	data, err := g.client.do(ctx, OpInfo, http.MethodGet, path, bearer, nil)
	g.observe(OpInfo, err)
	if err != nil {
		return nil, err
	}
	var u domain.UserInfo
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, &NetworkError{Op: OpInfo, Err: fmt.Errorf("parse user: %w", err)}
	}
	return &u, nil
}

// Snapshot returns the cached user info written at login.
func Snapshot(ctx context.Context, kv store.Store) (*domain.UserInfo, bool, error) {
	u, ok, err := userInfoEntry.Load(ctx, kv)
	if err != nil || !ok {
		return nil, false, err
	}
	return &u, true, nil
}

// RememberedCredentials returns the opted-in login prefill, if any.
func RememberedCredentials(ctx context.Context, kv store.Store) (domain.RememberedUser, bool, error) {
	return rememberedEntry.Load(ctx, kv)
}
