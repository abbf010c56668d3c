package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/quantdesk/internal/assistant"
	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/relay"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/store"
	"github.com/ashureev/quantdesk/internal/token/tokentest"
)

type shell struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	kv       *store.MemoryStore
	token    string
	platform *httptest.Server
	down     bool
}

func newShell(t *testing.T, loginLimit int) *shell {
	t.Helper()
	s := &shell{t: t, kv: store.NewMemory()}
	s.token = tokentest.Mint(t, map[string]any{"id": 1, "username": "alice", "nickname": "A"}, time.Now().Add(time.Hour))

	s.platform = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case auth.PathLogin:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "pw" {
				_ = json.NewEncoder(w).Encode(map[string]any{"code": 1, "msg": "wrong password"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": s.token})
		case auth.PathInfo + "/7":
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": map[string]any{"id": 7, "nickname": "Quant Bob"}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
		}
	}))
	t.Cleanup(s.platform.Close)

	mgr := assistant.NewManager(s.kv, assistant.Options{TypingSpeed: time.Millisecond, WelcomeText: "Hi!"})
	registry := relay.NewRegistry()
	rl := relay.New(registry, mgr, relay.Options{RetryDelay: 10 * time.Millisecond})
	mgr.SetRelay(rl)

	spa := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>shell</html>")
	})

	router := NewRouter(Deps{
		Store:     s.kv,
		Gateway:   auth.NewGateway(auth.NewClient(s.platform.URL, nil), nil, nil),
		Limiter:   auth.NewLimiter(loginLimit),
		Guard:     session.NewGuard(nil, nil, nil),
		Assistant: mgr,
		Registry:  registry,
		Bridge:    relay.NewBridge(registry, mgr, "", nil),
		SPA:       spa,
		ChatURL:   "https://chat.example.com/embed?bot=quant",
		IsDev:     true,
	})
	s.srv = httptest.NewServer(router)
	t.Cleanup(s.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	s.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return s
}

func (s *shell) do(method, path string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, data
}

func TestShell_LoginGuardLogout(t *testing.T) {
	s := newShell(t, 0)

	resp, _ := s.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, session.LoginPath, resp.Header.Get("Location"))

	resp, body := s.do(http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "pw", "remember": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"redirect":"/dashboard"`)

	resp, body = s.do(http.MethodGet, "/dashboard/portfolio", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>shell</html>", string(body))

	resp, body = s.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":1,"username":"alice","nickname":"A"}`, string(body))

	resp, body = s.do(http.MethodGet, "/api/users/7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Quant Bob")

	resp, body = s.do(http.MethodGet, "/auth/remembered", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"alice","password":"pw"}`, string(body))

	s.down = true
	resp, _ = s.do(http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "logout succeeds with the platform down")

	resp, body = s.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), `"redirect":"/login"`)
}

func TestShell_LoginErrors(t *testing.T) {
	s := newShell(t, 0)

	resp, body := s.do(http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"wrong password"}`, string(body))

	resp, _ = s.do(http.MethodPost, "/auth/login", map[string]any{"username": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.down = true
	resp, _ = s.do(http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestShell_LoginRateLimited(t *testing.T) {
	s := newShell(t, 2)
	creds := map[string]any{"username": "alice", "password": "nope"}

	s.do(http.MethodPost, "/auth/login", creds)
	s.do(http.MethodPost, "/auth/login", creds)
	resp, _ := s.do(http.MethodPost, "/auth/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestShell_LoginLimitIgnoresForwardedFor(t *testing.T) {
	s := newShell(t, 2)
	body := []byte(`{"username":"alice","password":"nope"}`)

	var last int
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/auth/login", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		resp, err := s.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "forwarded addresses are not trusted by default")
}

func TestShell_ExpiredSessionIsCleared(t *testing.T) {
	s := newShell(t, 0)
	s.token = tokentest.Mint(t, map[string]any{"id": 1}, time.Now().Add(-10*time.Second))

	resp, _ := s.do(http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, s.kv.Len())

	resp, _ = s.do(http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Zero(t, s.kv.Len())
}

func TestShell_AssistantHistory(t *testing.T) {
	s := newShell(t, 0)

	for i := 1; i <= 12; i++ {
		resp, body := s.do(http.MethodPost, "/api/assistant/send", map[string]string{"text": fmt.Sprintf("message %d", i)})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Contains(t, string(body), `"ok":false`, "no frame is connected")
	}

	var got struct {
		Entries []struct {
			Text string `json:"text"`
		} `json:"entries"`
	}
	_, body := s.do(http.MethodGet, "/api/assistant/history", nil)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Entries, 10)
	assert.Equal(t, "message 3", got.Entries[0].Text)
	assert.Equal(t, "message 12", got.Entries[9].Text)

	resp, body := s.do(http.MethodPost, "/api/assistant/quick", map[string]string{"text": "What is beta?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Entries, 1)

	resp, body = s.do(http.MethodDelete, "/api/assistant/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"entries":[]}`, string(body))

	resp, _ = s.do(http.MethodPost, "/api/assistant/send", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShell_AssistantPosition(t *testing.T) {
	s := newShell(t, 0)

	_, body := s.do(http.MethodGet, "/api/assistant/position?w=1280&h=800", nil)
	assert.JSONEq(t, `{"left":1194,"bottom":20}`, string(body))

	_, body = s.do(http.MethodPost, "/api/assistant/drag", map[string]any{
		"viewport": map[string]float64{"width": 1280, "height": 800},
		"events": []map[string]any{
			{"type": "down", "x": 1200, "y": 760},
			{"type": "move", "x": 9000, "y": -9000},
			{"type": "up"},
		},
	})
	assert.JSONEq(t, `{"left":1214,"bottom":734}`, string(body))

	_, body = s.do(http.MethodPut, "/api/assistant/position", map[string]any{
		"viewport": map[string]float64{"width": 800, "height": 600},
		"left":     -40,
		"bottom":   100,
	})
	assert.JSONEq(t, `{"left":10,"bottom":100}`, string(body))
}

func TestShell_Welcome(t *testing.T) {
	s := newShell(t, 0)

	resp, body := s.do(http.MethodGet, "/api/assistant/welcome", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events, chars []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if ev, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, ev)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok && len(events) > 0 && events[len(events)-1] == "char" {
			var c string
			require.NoError(t, json.Unmarshal([]byte(data), &c))
			chars = append(chars, c)
		}
	}
	assert.Equal(t, []string{"char", "char", "char", "done"}, events)
	assert.Equal(t, "Hi!", strings.Join(chars, ""))

	_, body = s.do(http.MethodGet, "/api/assistant/welcome", nil)
	assert.Contains(t, string(body), "event: skip")
}

func TestShell_Frame(t *testing.T) {
	s := newShell(t, 0)

	var frame struct {
		State string `json:"state"`
		URL   string `json:"url"`
	}
	_, body := s.do(http.MethodGet, "/api/assistant/frame", nil)
	require.NoError(t, json.Unmarshal(body, &frame))
	assert.Equal(t, "hidden", frame.State)
	assert.Contains(t, frame.URL, "bot=quant")
	assert.Contains(t, frame.URL, FrameParam+"=")

	_, body = s.do(http.MethodPost, "/api/assistant/frame/show", nil)
	require.NoError(t, json.Unmarshal(body, &frame))
	assert.Equal(t, "loading", frame.State)

	_, body = s.do(http.MethodPost, "/api/assistant/frame/loaded", nil)
	require.NoError(t, json.Unmarshal(body, &frame))
	assert.Equal(t, "ready", frame.State)

	firstURL := frame.URL
	_, body = s.do(http.MethodPost, "/api/assistant/frame/hide", nil)
	var hidden struct {
		State string `json:"state"`
		URL   string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(body, &hidden))
	assert.Equal(t, "hidden", hidden.State)
	assert.Empty(t, hidden.URL, "hide revokes the frame id")

	_, body = s.do(http.MethodGet, "/api/assistant/frame", nil)
	require.NoError(t, json.Unmarshal(body, &frame))
	assert.NotEqual(t, firstURL, frame.URL, "a hidden frame reopens with a new id")

	resp, _ := s.do(http.MethodPost, "/api/assistant/frame/explode", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShell_Theme(t *testing.T) {
	s := newShell(t, 0)

	_, body := s.do(http.MethodGet, "/api/prefs/theme", nil)
	assert.JSONEq(t, `{"theme":"dark"}`, string(body))

	resp, _ := s.do(http.MethodPut, "/api/prefs/theme", map[string]string{"theme": "light"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = s.do(http.MethodGet, "/api/prefs/theme", nil)
	assert.JSONEq(t, `{"theme":"light"}`, string(body))

	resp, _ = s.do(http.MethodPut, "/api/prefs/theme", map[string]string{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShell_ProfilesAreIsolated(t *testing.T) {
	s := newShell(t, 0)
	resp, _ := s.do(http.MethodPost, "/api/assistant/send", map[string]string{"text": "mine"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	other := &http.Client{}
	r, err := other.Get(s.srv.URL + "/api/assistant/history")
	require.NoError(t, err)
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	assert.JSONEq(t, `{"entries":[]}`, string(body))
}

func TestShell_Health(t *testing.T) {
	s := newShell(t, 0)
	resp, body := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}
