// Package assistant holds the per-profile state of the AI-assistant widget:
// its on-screen position, the bounded chat history, the one-time welcome
// message and the load state of the embedded chat frame.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/relay"
	"github.com/ashureev/quantdesk/internal/store"
)

// ErrEmptyMessage is returned when a message has no visible text.
var ErrEmptyMessage = errors.New("message is empty")

// Forwarder delivers a message into the profile's embedded chat frame.
type Forwarder interface {
	Forward(ctx context.Context, profileID, text string) relay.Result
}

// Options configures a Manager. Zero values take the package defaults.
type Options struct {
	FrameTimeout time.Duration
	TypingSpeed  time.Duration
	WelcomeText  string
	Now          func() time.Time
	AfterFunc    AfterFunc
	Logger       *slog.Logger
	// IdleTimeout drops the in-memory state of profiles not seen for this
	// long. Persisted entries are kept.
	IdleTimeout time.Duration
}

// DefaultIdleTimeout is how long an untouched profile keeps its frame and
// gesture state.
const DefaultIdleTimeout = 30 * time.Minute

type profile struct {
	historyMu sync.Mutex
	frame     *Frame

	dragMu  sync.Mutex
	dragger *Dragger

	lastSeen time.Time // guarded by Manager.mu
}

// Manager owns the widget state of every profile. It implements
// relay.Frames so the relay can open frames and observe readiness.
type Manager struct {
	base  store.Store
	opts  Options
	relay Forwarder

	mu        sync.Mutex
	profiles  map[string]*profile
	lastSweep time.Time
}

// NewManager creates a manager over the shared store base.
func NewManager(base store.Store, opts Options) *Manager {
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	if opts.TypingSpeed <= 0 {
		opts.TypingSpeed = DefaultTypingSpeed
	}
	if opts.WelcomeText == "" {
		opts.WelcomeText = DefaultWelcomeText
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		base:     base,
		opts:     opts,
		profiles: make(map[string]*profile),
	}
}

// SetRelay attaches the message relay. Without one, Send only records
// history.
func (m *Manager) SetRelay(f Forwarder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relay = f
}

func (m *Manager) forwarder() Forwarder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.relay
}

func (m *Manager) profile(id string, create bool) *profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Now()
	m.sweep(now)

	p, ok := m.profiles[id]
	if !ok && create {
		p = &profile{frame: NewFrame(m.opts.FrameTimeout, m.opts.AfterFunc)}
		m.profiles[id] = p
	}
	if p != nil {
		p.lastSeen = now
	}
	return p
}

// sweep drops profiles idle for longer than IdleTimeout. It walks the map
// at most twice per timeout. Caller holds mu.
func (m *Manager) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.opts.IdleTimeout/2 {
		return
	}
	m.lastSweep = now
	for id, p := range m.profiles {
		if now.Sub(p.lastSeen) > m.opts.IdleTimeout {
			p.frame.Hide()
			delete(m.profiles, id)
		}
	}
}

// Visible implements relay.Frames.
func (m *Manager) Visible(profileID string) bool {
	p := m.profile(profileID, false)
	return p != nil && p.frame.Visible()
}

// Show implements relay.Frames.
func (m *Manager) Show(profileID string) {
	m.profile(profileID, true).frame.Show()
}

// Loaded implements relay.Frames.
func (m *Manager) Loaded(profileID string) {
	m.profile(profileID, true).frame.Loaded()
}

// Widget returns the widget of one profile.
func (m *Manager) Widget(profileID string) *Widget {
	return &Widget{
		id: profileID,
		kv: store.Scoped(m.base, profileID),
		p:  m.profile(profileID, true),
		m:  m,
	}
}

// Widget is the assistant state of one profile.
type Widget struct {
	id string
	kv store.Store
	p  *profile
	m  *Manager
}

// History returns the chat log.
func (w *Widget) History() *History {
	return NewHistory(w.kv, &w.p.historyMu, w.m.opts.Now)
}

// Welcome returns the welcome preference.
func (w *Widget) Welcome() Welcome {
	return Welcome{kv: w.kv}
}

// Typewriter returns the welcome typewriter.
func (w *Widget) Typewriter() Typewriter {
	return Typewriter{Text: w.m.opts.WelcomeText, Speed: w.m.opts.TypingSpeed}
}

// Frame returns the chat frame state machine.
func (w *Widget) Frame() *Frame {
	return w.p.frame
}

// Position returns the live position during a gesture, otherwise the
// stored one.
func (w *Widget) Position(ctx context.Context, vp domain.Viewport) (domain.Position, error) {
	w.p.dragMu.Lock()
	d := w.p.dragger
	w.p.dragMu.Unlock()
	if d != nil && d.Dragging() {
		return Clamp(d.Position(), vp), nil
	}
	return LoadPosition(ctx, w.kv, vp)
}

// SetPosition clamps and stores pos, abandoning any gesture in progress.
func (w *Widget) SetPosition(ctx context.Context, vp domain.Viewport, pos domain.Position) (domain.Position, error) {
	pos = Clamp(pos, vp)
	w.p.dragMu.Lock()
	w.p.dragger = nil
	w.p.dragMu.Unlock()
	return pos, SavePosition(ctx, w.kv, pos)
}

// Drag feeds pointer events into the profile's gesture. A gesture may span
// several calls; a new one starts from the stored position.
func (w *Widget) Drag(ctx context.Context, vp domain.Viewport, events []PointerEvent) (domain.Position, error) {
	w.p.dragMu.Lock()
	defer w.p.dragMu.Unlock()

	if w.p.dragger == nil || !w.p.dragger.Dragging() {
		pos, err := LoadPosition(ctx, w.kv, vp)
		if err != nil {
			return pos, err
		}
		w.p.dragger = NewDragger(w.kv, vp, pos)
	} else {
		w.p.dragger.Resize(vp)
	}
	return w.p.dragger.Replay(ctx, events)
}

// SendResult reports a sent message.
type SendResult struct {
	Entries []domain.ChatEntry `json:"entries"`
	Relay   relay.Result       `json:"relay"`
}

// Send appends text to the history and then hands it to the relay. The
// relay outcome never affects the stored history.
func (w *Widget) Send(ctx context.Context, text string) (SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SendResult{}, ErrEmptyMessage
	}

	entries, err := w.History().Append(ctx, text)
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{Entries: entries, Relay: relay.Result{OK: false, Reason: relay.ReasonNoRelay}}
	if f := w.m.forwarder(); f != nil {
		res.Relay = f.Forward(ctx, w.id, text)
	}
	if !res.Relay.OK {
		w.m.opts.Logger.Info("assistant message kept locally", "profile_id", w.id, "reason", res.Relay.Reason)
	}
	return res, nil
}

// QuickQuestion starts a fresh conversation with text.
func (w *Widget) QuickQuestion(ctx context.Context, text string) (SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return SendResult{}, ErrEmptyMessage
	}
	if err := w.History().Clear(ctx); err != nil {
		return SendResult{}, err
	}
	return w.Send(ctx, text)
}
