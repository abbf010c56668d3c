// Package relay forwards chat messages into the embedded third-party chat
// frame. Delivery is best effort: the frame may be slow to load, served
// from another origin, or laid out without the controls the bridge script
// looks for. Every outcome is reported as a Result; nothing is returned as
// an error.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults for Options.
const (
	DefaultRetryDelay = time.Second
	DefaultAckTimeout = 5 * time.Second
)

// Frames opens chat frames and tracks their visibility.
type Frames interface {
	Visible(profileID string) bool
	Show(profileID string)
	Loaded(profileID string)
}

// Observer is notified of every Forward outcome.
type Observer interface {
	ObserveRelay(reason string)
}

// Options configures a Relay.
type Options struct {
	// AllowedOrigin is the origin the chat document must announce.
	AllowedOrigin string
	// RetryDelay bounds the wait for a frame to announce itself.
	RetryDelay time.Duration
	// AckTimeout bounds the wait for a command acknowledgement.
	AckTimeout time.Duration
	Logger     *slog.Logger
}

// Relay sends messages to chat frames.
type Relay struct {
	registry *Registry
	frames   Frames
	origin   string
	retry    time.Duration
	ack      time.Duration
	logger   *slog.Logger
	observer Observer
}

// New creates a relay over registry.
func New(registry *Registry, frames Frames, opts Options) *Relay {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Relay{
		registry: registry,
		frames:   frames,
		origin:   normalizeOrigin(opts.AllowedOrigin),
		retry:    opts.RetryDelay,
		ack:      opts.AckTimeout,
		logger:   opts.Logger,
	}
}

// SetObserver attaches an outcome observer.
func (r *Relay) SetObserver(o Observer) {
	r.observer = o
}

// Forward types text into the profile's chat frame and submits it. A hidden
// frame is opened first and given up to the retry delay to announce itself.
func (r *Relay) Forward(ctx context.Context, profileID, text string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = failure(ReasonPanic, fmt.Errorf("%v", p))
		}
		r.report(profileID, res)
	}()

	shown := false
	if r.frames != nil && !r.frames.Visible(profileID) {
		r.frames.Show(profileID)
		shown = true
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.retry)
	link, err := r.registry.WaitReady(waitCtx, profileID)
	cancel()
	if err != nil {
		return failure(ReasonFrameNotReady, err)
	}
	// A link that was already ready sends no new ready message after Show.
	if shown {
		r.frames.Loaded(profileID)
	}

	if origin := normalizeOrigin(link.Origin()); r.origin != "" && origin != r.origin {
		return failure(ReasonCrossOrigin, fmt.Errorf("frame origin %q is not %q", origin, r.origin))
	}
	if c := link.Controls(); !c.Found() {
		return failure(ReasonControlsNotFound, fmt.Errorf("input=%t submit=%t", c.Input, c.Submit))
	}

	cmd := Command{Type: TypeCommand, ID: uuid.NewString(), Steps: DefaultSteps, Value: text}
	ackCtx, cancel := context.WithTimeout(ctx, r.ack)
	defer cancel()

	ack, err := link.Send(ackCtx, cmd)
	switch {
	case err != nil && ackCtx.Err() != nil:
		res = failure(ReasonAckTimeout, err)
	case err != nil:
		res = failure(ReasonSendFailed, err)
	case !ack.OK:
		res = failure(ReasonRejected, fmt.Errorf("frame: %s", ack.Error))
	default:
		return Result{OK: true, Reason: ReasonDelivered, CommandID: cmd.ID}
	}
	res.CommandID = cmd.ID
	return res
}

func (r *Relay) report(profileID string, res Result) {
	if r.observer != nil {
		r.observer.ObserveRelay(string(res.Reason))
	}
	if !res.OK {
		r.logger.Warn("assistant relay failed", "profile_id", profileID, "reason", res.Reason, "error", res.Err)
	}
}

func normalizeOrigin(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSuffix(s, "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
