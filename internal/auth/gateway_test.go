package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/store"
	"github.com/ashureev/quantdesk/internal/token"
	"github.com/ashureev/quantdesk/internal/token/tokentest"
)

type platformFake struct {
	t          *testing.T
	token      string
	loginCode  int
	loginMsg   string
	lastBearer string
	lastPath   string
	registered []domain.Registration
}

func (p *platformFake) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/user/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))
		if p.loginCode != 0 {
			writeEnvelope(w, p.loginCode, p.loginMsg, nil)
			return
		}
		writeEnvelope(w, 0, "", p.token)
	})
	mux.HandleFunc("POST /api/user/logout", func(w http.ResponseWriter, r *http.Request) {
		p.lastBearer = r.Header.Get("Authorization")
		writeEnvelope(w, 0, "", nil)
	})
	mux.HandleFunc("POST /api/user/register", func(w http.ResponseWriter, r *http.Request) {
		var reg domain.Registration
		require.NoError(p.t, json.NewDecoder(r.Body).Decode(&reg))
		p.registered = append(p.registered, reg)
		if reg.Username == "taken" {
			writeEnvelope(w, 1001, "username already exists", nil)
			return
		}
		writeEnvelope(w, 0, "", nil)
	})
	mux.HandleFunc("GET /api/user/info/", func(w http.ResponseWriter, r *http.Request) {
		p.lastPath = r.URL.Path
		p.lastBearer = r.Header.Get("Authorization")
		writeEnvelope(w, 0, "", domain.UserInfo{ID: 42, Username: "bob"})
	})
	mux.HandleFunc("GET /api/user/info", func(w http.ResponseWriter, r *http.Request) {
		p.lastPath = r.URL.Path
		p.lastBearer = r.Header.Get("Authorization")
		writeEnvelope(w, 0, "", domain.UserInfo{ID: 1, Username: "alice", Nickname: "A"})
	})
	return mux
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func newFixture(t *testing.T) (*platformFake, *Gateway, *store.MemoryStore) {
	t.Helper()
	p := &platformFake{t: t}
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)
	return p, NewGateway(NewClient(srv.URL, srv.Client()), nil, nil), store.NewMemory()
}

func TestLogin_AliceScenario(t *testing.T) {
	p, gw, kv := newFixture(t)
	now := time.Now()
	p.token = tokentest.Mint(t, map[string]any{"id": 1, "nickname": "A"}, now.Add(time.Hour))

	claims, err := gw.Login(context.Background(), kv, domain.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "A", claims.UserInfo.Nickname)

	raw, ok, err := kv.Get(context.Background(), store.UserInfoKey.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":1,"nickname":"A"}`, raw)

	stored, _, _ := kv.Get(context.Background(), store.TokenKey.Name)
	assert.Equal(t, p.token, stored)

	guard := session.NewGuard(nil, session.ClockFunc(func() time.Time { return now }), nil)
	assert.True(t, guard.Check(context.Background(), kv).Allowed())
}

func TestLogin_ExpiredTokenIsRejectedByGuard(t *testing.T) {
	p, gw, kv := newFixture(t)
	now := time.Now()
	p.token = tokentest.Mint(t, map[string]any{"id": 1, "nickname": "A"}, now.Add(-10*time.Second))

	_, err := gw.Login(context.Background(), kv, domain.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	guard := session.NewGuard(nil, session.ClockFunc(func() time.Time { return now }), nil)
	v := guard.Check(context.Background(), kv)
	assert.Equal(t, session.LoginPath, v.RedirectTo)

	_, ok, err := kv.Get(context.Background(), store.TokenKey.Name)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_Rejected(t *testing.T) {
	p, gw, kv := newFixture(t)
	p.loginCode = 401
	p.loginMsg = "invalid username or password"

	_, err := gw.Login(context.Background(), kv, domain.Credentials{Username: "alice", Password: "bad"})
	require.ErrorIs(t, err, ErrAuth)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "invalid username or password", authErr.Message)
	assert.Equal(t, "invalid username or password", Message(err))
	assert.Zero(t, kv.Len())
}

func TestLogin_UndecodableTokenWritesNothing(t *testing.T) {
	p, gw, kv := newFixture(t)
	p.token = "not-a-token"

	_, err := gw.Login(context.Background(), kv, domain.Credentials{Username: "alice", Password: "pw", Remember: true})
	require.ErrorIs(t, err, token.ErrDecode)
	assert.Zero(t, kv.Len())
}

func TestLogin_RememberedCredentials(t *testing.T) {
	p, gw, kv := newFixture(t)
	ctx := context.Background()
	p.token = tokentest.Mint(t, map[string]any{"id": 1}, time.Now().Add(time.Hour))

	_, err := gw.Login(ctx, kv, domain.Credentials{Username: "alice", Password: "pw", Remember: true})
	require.NoError(t, err)
	remembered, ok, err := RememberedCredentials(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.RememberedUser{Username: "alice", Password: "pw"}, remembered)

	_, err = gw.Login(ctx, kv, domain.Credentials{Username: "alice", Password: "pw2", Remember: true})
	require.NoError(t, err)
	remembered, _, _ = RememberedCredentials(ctx, kv)
	assert.Equal(t, "pw2", remembered.Password)

	_, err = gw.Login(ctx, kv, domain.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	_, ok, err = RememberedCredentials(ctx, kv)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	gw := NewGateway(NewClient(srv.URL, srv.Client()), nil, nil)

	_, err := gw.Login(context.Background(), store.NewMemory(), domain.Credentials{Username: "u", Password: "p"})
	require.ErrorIs(t, err, ErrNetwork)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusBadGateway, netErr.Status)
}

func TestLogout_SendsBearerAndClears(t *testing.T) {
	p, gw, kv := newFixture(t)
	ctx := context.Background()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		store.TokenKey.Name:    "tok",
		store.UserInfoKey.Name: `{"id":1}`,
		store.ThemeKey.Name:    "dark",
	}))

	gw.Logout(ctx, kv)

	assert.Equal(t, "Bearer tok", p.lastBearer)
	assert.Equal(t, 1, kv.Len(), "only session entries are cleared")
}

func TestLogout_ClearsWhenNetworkFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	gw := NewGateway(NewClient(url, nil), nil, nil)
	gw.SetObserver(obs)
	kv := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		store.TokenKey.Name:    "tok",
		store.UserInfoKey.Name: `{"id":1}`,
	}))

	gw.Logout(ctx, kv)

	assert.Zero(t, kv.Len())
	assert.Equal(t, []string{"logout:network"}, obs.events)
}

func TestLogout_CancelledContextStillClears(t *testing.T) {
	_, gw, kv := newFixture(t)
	require.NoError(t, kv.Set(context.Background(), store.TokenKey.Name, "tok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw.Logout(ctx, kv)

	assert.Zero(t, kv.Len())
}

func TestRegister(t *testing.T) {
	p, gw, _ := newFixture(t)
	reg := domain.Registration{Username: "carol", Password: "pw", Nickname: "C", Email: "c@example.com", Phone: "555"}

	require.NoError(t, gw.Register(context.Background(), reg))
	require.Len(t, p.registered, 1)
	assert.Equal(t, reg, p.registered[0])

	err := gw.Register(context.Background(), domain.Registration{Username: "taken", Password: "pw"})
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, "username already exists", Message(err))
}

func TestUserLookups(t *testing.T) {
	p, gw, kv := newFixture(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, store.TokenKey.Name, "tok"))

	me, err := gw.CurrentUser(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "/api/user/info", p.lastPath)
	assert.Equal(t, "Bearer tok", p.lastBearer)

	other, err := gw.UserByID(ctx, kv, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), other.ID)
	assert.Equal(t, "/api/user/info/42", p.lastPath)
}

func TestSnapshot(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	_, ok, err := Snapshot(ctx, kv)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, store.UserInfoKey.Name, `{"id":7,"username":"dave"}`))
	u, ok, err := Snapshot(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dave", u.DisplayName())
}

type recordingObserver struct{ events []string }

func (o *recordingObserver) ObserveAuth(op, outcome string) {
	o.events = append(o.events, op+":"+outcome)
}
