package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/quantdesk/internal/assistant"
	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/identity"
	"github.com/ashureev/quantdesk/internal/relay"
)

// FrameParam is the query parameter carrying the frame id into the chat
// document, where the bridge script picks it up.
const FrameParam = "qd_frame"

var defaultViewport = domain.Viewport{Width: 1280, Height: 800}

// AssistantHandler serves the assistant widget state.
type AssistantHandler struct {
	*Handler
	mgr      *assistant.Manager
	registry *relay.Registry
	chatURL  string
}

// NewAssistantHandler creates an assistant handler. chatURL is the embedded
// chat document; registry may be nil when no relay runs.
func NewAssistantHandler(base *Handler, mgr *assistant.Manager, registry *relay.Registry, chatURL string) *AssistantHandler {
	return &AssistantHandler{Handler: base, mgr: mgr, registry: registry, chatURL: chatURL}
}

// RegisterRoutes registers assistant routes.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant", func(r chi.Router) {
		r.Get("/position", h.GetPosition)
		r.Put("/position", h.PutPosition)
		r.Post("/drag", h.Drag)

		r.Get("/history", h.GetHistory)
		r.Post("/history", h.AppendHistory)
		r.Delete("/history", h.ClearHistory)
		r.Post("/send", h.Send)
		r.Post("/quick", h.Quick)

		r.Get("/welcome", h.Welcome)
		r.Post("/welcome/dismiss", h.DismissWelcome)

		r.Get("/frame", h.GetFrame)
		r.Post("/frame/{action}", h.FrameAction)
	})
}

func (h *AssistantHandler) widget(r *http.Request) *assistant.Widget {
	return h.mgr.Widget(identity.ProfileIDFromContext(r.Context()))
}

func viewportFromQuery(r *http.Request) domain.Viewport {
	q := r.URL.Query()
	w, errW := strconv.ParseFloat(q.Get("w"), 64)
	ht, errH := strconv.ParseFloat(q.Get("h"), 64)
	if errW != nil || errH != nil || w <= 0 || ht <= 0 {
		return defaultViewport
	}
	return domain.Viewport{Width: w, Height: ht}
}

func orDefault(vp domain.Viewport) domain.Viewport {
	if vp.Width <= 0 || vp.Height <= 0 {
		return defaultViewport
	}
	return vp
}

// GetPosition returns the widget position for the viewport in ?w=&h=.
func (h *AssistantHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.widget(r).Position(r.Context(), viewportFromQuery(r))
	if err != nil {
		slog.Warn("failed to load widget position", "error", err)
	}
	JSON(w, http.StatusOK, pos)
}

// PutPosition stores an explicit position.
func (h *AssistantHandler) PutPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewport domain.Viewport `json:"viewport"`
		domain.Position
	}
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	pos, err := h.widget(r).SetPosition(r.Context(), orDefault(req.Viewport), req.Position)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to save position")
		return
	}
	JSON(w, http.StatusOK, pos)
}

// Drag feeds pointer events into the current gesture.
func (h *AssistantHandler) Drag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewport domain.Viewport          `json:"viewport"`
		Events   []assistant.PointerEvent `json:"events"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	pos, err := h.widget(r).Drag(r.Context(), orDefault(req.Viewport), req.Events)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to save position")
		return
	}
	JSON(w, http.StatusOK, pos)
}

type messageRequest struct {
	Text string `json:"text"`
}

// GetHistory returns the chat history, oldest first.
func (h *AssistantHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.widget(r).History().Entries(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// AppendHistory records a message without relaying it.
func (h *AssistantHandler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, assistant.ErrEmptyMessage.Error())
		return
	}
	entries, err := h.widget(r).History().Append(r.Context(), req.Text)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to save history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ClearHistory empties the chat history.
func (h *AssistantHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.widget(r).History().Clear(r.Context()); err != nil {
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"entries": []domain.ChatEntry{}})
}

// Send records a message and relays it into the chat frame.
func (h *AssistantHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, (*assistant.Widget).Send)
}

// Quick starts a fresh conversation with a suggested question.
func (h *AssistantHandler) Quick(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, (*assistant.Widget).QuickQuestion)
}

type sendFunc func(*assistant.Widget, context.Context, string) (assistant.SendResult, error)

func (h *AssistantHandler) send(w http.ResponseWriter, r *http.Request, fn sendFunc) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := fn(h.widget(r), r.Context(), req.Text)
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, err.Error())
	case err != nil:
		Error(w, http.StatusInternalServerError, "failed to save history")
	default:
		JSON(w, http.StatusOK, res)
	}
}

// Welcome streams the welcome text as server-sent events, one rune per
// "char" event, then "done". A profile that has seen it gets "skip".
func (h *AssistantHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	widget := h.widget(r)
	play, err := widget.Welcome().ShouldPlay(r.Context())
	if err != nil {
		slog.Warn("failed to read welcome preference", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	if !play {
		_ = writeSSE(w, "skip", "{}")
		flusher.Flush()
		return
	}

	for ch := range widget.Typewriter().Runes(r.Context()) {
		data, _ := json.Marshal(ch)
		if err := writeSSE(w, "char", string(data)); err != nil {
			return
		}
		flusher.Flush()
	}
	if r.Context().Err() != nil {
		return
	}

	if err := widget.Welcome().MarkSeen(r.Context()); err != nil {
		slog.Warn("failed to store welcome preference", "error", err)
	}
	_ = writeSSE(w, "done", "{}")
	flusher.Flush()
}

// DismissWelcome stops the welcome from ever playing again.
func (h *AssistantHandler) DismissWelcome(w http.ResponseWriter, r *http.Request) {
	if err := h.widget(r).Welcome().MarkSeen(r.Context()); err != nil {
		Error(w, http.StatusInternalServerError, "failed to save preference")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type frameResponse struct {
	State assistant.FrameState `json:"state"`
	URL   string               `json:"url,omitempty"`
}

func (h *AssistantHandler) frameURL(profileID string) string {
	if h.chatURL == "" || h.registry == nil {
		return h.chatURL
	}
	u, err := url.Parse(h.chatURL)
	if err != nil {
		return h.chatURL
	}
	q := u.Query()
	q.Set(FrameParam, h.registry.Issue(profileID))
	u.RawQuery = q.Encode()
	return u.String()
}

// GetFrame returns the frame state and the URL to load.
func (h *AssistantHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	profileID := identity.ProfileIDFromContext(r.Context())
	JSON(w, http.StatusOK, frameResponse{
		State: h.mgr.Widget(profileID).Frame().State(),
		URL:   h.frameURL(profileID),
	})
}

// FrameAction drives the frame state machine: show, loaded, retry, hide.
func (h *AssistantHandler) FrameAction(w http.ResponseWriter, r *http.Request) {
	profileID := identity.ProfileIDFromContext(r.Context())
	frame := h.mgr.Widget(profileID).Frame()

	var state assistant.FrameState
	switch action := chi.URLParam(r, "action"); action {
	case "show":
		state = frame.Show()
	case "loaded":
		state = frame.Loaded()
	case "retry":
		state = frame.Retry()
	case "hide":
		state = frame.Hide()
		if h.registry != nil {
			h.registry.CloseProfile(profileID)
		}
		// No URL: the next show or frame fetch issues a fresh frame id.
		JSON(w, http.StatusOK, frameResponse{State: state})
		return
	default:
		Error(w, http.StatusNotFound, fmt.Sprintf("unknown frame action %q", action))
		return
	}
	JSON(w, http.StatusOK, frameResponse{State: state, URL: h.frameURL(profileID)})
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
