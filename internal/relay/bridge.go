package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
)

// Bridge accepts WebSocket connections from the bridge script running
// inside the chat frame.
type Bridge struct {
	registry *Registry
	frames   Frames
	patterns []string
	logger   *slog.Logger
}

// NewBridge creates the handler. allowedOrigin is the chat document's
// origin; an empty value accepts any origin.
func NewBridge(registry *Registry, frames Frames, allowedOrigin string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	patterns := []string{"*"}
	if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		patterns = []string{u.Host}
	}
	return &Bridge{registry: registry, frames: frames, patterns: patterns, logger: logger}
}

// ServeHTTP handles GET /ws/assistant?frame=<id>.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frameID := r.URL.Query().Get("frame")
	profileID, ok := b.registry.Resolve(frameID)
	if !ok {
		http.Error(w, "unknown frame", http.StatusNotFound)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: b.patterns,
	})
	if err != nil {
		b.logger.Warn("assistant bridge upgrade failed", "profile_id", profileID, "error", err)
		return
	}

	link := NewLink(ws, r.Header.Get("Origin"))
	b.registry.Register(profileID, link)
	defer func() {
		b.registry.Unregister(profileID, link)
		link.Close("bridge ended")
	}()

	b.readLoop(r.Context(), ws, link, profileID)
}

func (b *Bridge) readLoop(ctx context.Context, ws *websocket.Conn, link *Link, profileID string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				b.logger.Debug("assistant bridge read ended", "profile_id", profileID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		kind, err := link.handle(data)
		if err != nil {
			b.logger.Warn("assistant bridge message ignored", "profile_id", profileID, "error", err)
			continue
		}
		if kind == TypeReady && b.frames != nil {
			b.frames.Loaded(profileID)
		}
	}
}
