package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFrameIdle is how long an issued frame id outlives its last use
// while no frame is connected.
const DefaultFrameIdle = 30 * time.Minute

// Registry tracks the live chat frame of every profile. A profile has at
// most one frame; registering a new one closes the old.
type Registry struct {
	mu        sync.RWMutex
	active    map[string]*Link
	frames    map[string]string       // frame id -> profile id
	issued    map[string]*issuedFrame // profile id -> frame
	notify    chan struct{}
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type issuedFrame struct {
	id       string
	lastSeen time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*Link),
		frames: make(map[string]string),
		issued: make(map[string]*issuedFrame),
		notify: make(chan struct{}),
		idle:   DefaultFrameIdle,
		now:    time.Now,
	}
}

// Issue returns the frame id the chat frame must present when it connects.
// Ids are stable per profile so reloading the frame keeps working.
func (r *Registry) Issue(profileID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	if f, ok := r.issued[profileID]; ok {
		f.lastSeen = now
		return f.id
	}
	f := &issuedFrame{id: uuid.NewString(), lastSeen: now}
	r.issued[profileID] = f
	r.frames[f.id] = profileID
	return f.id
}

// sweep forgets frame ids of disconnected profiles idle past r.idle.
// Callers hold r.mu.
func (r *Registry) sweep(now time.Time) {
	if now.Sub(r.lastSweep) < r.idle/2 {
		return
	}
	r.lastSweep = now
	for profileID, f := range r.issued {
		if _, live := r.active[profileID]; live {
			continue
		}
		if now.Sub(f.lastSeen) > r.idle {
			r.forget(profileID)
		}
	}
}

// forget drops the frame id issued to profileID. Callers hold r.mu.
func (r *Registry) forget(profileID string) {
	if f, ok := r.issued[profileID]; ok {
		delete(r.frames, f.id)
		delete(r.issued, profileID)
	}
}

// touch marks the profile's frame id as used. Callers hold r.mu.
func (r *Registry) touch(profileID string) {
	if f, ok := r.issued[profileID]; ok {
		f.lastSeen = r.now()
	}
}

// Resolve returns the profile that owns frameID.
func (r *Registry) Resolve(frameID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.frames[frameID]
	return p, ok
}

// GetActive returns the connected frame of a profile.
func (r *Registry) GetActive(profileID string) *Link {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[profileID]
}

// Register makes link the frame of profileID.
func (r *Registry) Register(profileID string, link *Link) {
	r.mu.Lock()
	existing := r.active[profileID]
	r.active[profileID] = link
	r.touch(profileID)
	link.mu.Lock()
	link.onReady = r.broadcast
	link.mu.Unlock()
	r.mu.Unlock()

	if existing != nil && existing != link {
		existing.Close("frame replaced")
	}
	r.broadcast()
	slog.Info("Assistant frame registered", "profile_id", profileID)
}

// Unregister removes link if it is still the profile's frame.
func (r *Registry) Unregister(profileID string, link *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.active[profileID]; ok && current == link {
		delete(r.active, profileID)
		r.touch(profileID)
		slog.Info("Assistant frame unregistered", "profile_id", profileID)
	}
}

// CloseProfile disconnects the frame of a profile and revokes its frame id.
func (r *Registry) CloseProfile(profileID string) {
	r.mu.Lock()
	link, ok := r.active[profileID]
	delete(r.active, profileID)
	r.forget(profileID)
	r.mu.Unlock()
	if ok {
		link.Close("frame closed")
		slog.Info("Assistant frame closed", "profile_id", profileID)
	}
}

// broadcast wakes every WaitReady call.
func (r *Registry) broadcast() {
	r.mu.Lock()
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// WaitReady blocks until the profile has a frame that announced itself.
func (r *Registry) WaitReady(ctx context.Context, profileID string) (*Link, error) {
	for {
		r.mu.RLock()
		link := r.active[profileID]
		ch := r.notify
		r.mu.RUnlock()

		if link != nil && link.Ready() {
			return link, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}
