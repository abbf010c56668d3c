package assistant

import (
	"context"
	"sync"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
)

// Dragger tracks one drag gesture of the widget:
// PointerDown, any number of PointerMove, PointerUp.
type Dragger struct {
	mu       sync.Mutex
	kv       store.Store
	vp       domain.Viewport
	pos      domain.Position
	dragging bool
	last     domain.Point
}

// NewDragger starts idle at pos, clamped into vp.
func NewDragger(kv store.Store, vp domain.Viewport, pos domain.Position) *Dragger {
	return &Dragger{kv: kv, vp: vp, pos: Clamp(pos, vp)}
}

// PointerDown anchors a gesture at p.
func (d *Dragger) PointerDown(p domain.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dragging = true
	d.last = p
}

// PointerMove applies the delta from the previous sample. Moves outside a
// gesture are ignored and report false.
func (d *Dragger) PointerMove(p domain.Point) (domain.Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dragging {
		return d.pos, false
	}

	// Pointer y grows downwards, bottom grows upwards.
	d.pos = Clamp(domain.Position{
		Left:   d.pos.Left + (p.X - d.last.X),
		Bottom: d.pos.Bottom - (p.Y - d.last.Y),
	}, d.vp)
	d.last = p
	return d.pos, true
}

// PointerUp ends the gesture and persists the final position once.
func (d *Dragger) PointerUp(ctx context.Context) (domain.Position, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dragging {
		return d.pos, nil
	}
	d.dragging = false
	return d.pos, SavePosition(ctx, d.kv, d.pos)
}

// Resize re-clamps the current position into a new viewport.
func (d *Dragger) Resize(vp domain.Viewport) domain.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vp = vp
	d.pos = Clamp(d.pos, vp)
	return d.pos
}

// Position returns the live position.
func (d *Dragger) Position() domain.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

// Dragging reports whether a gesture is in progress.
func (d *Dragger) Dragging() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dragging
}

// EventType names a pointer event of a replayed gesture.
type EventType string

const (
	EventDown EventType = "down"
	EventMove EventType = "move"
	EventUp   EventType = "up"
)

// PointerEvent is one sample of a gesture sent by the shell.
type PointerEvent struct {
	Type EventType `json:"type"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// Replay feeds events through the dragger in order and returns the final
// position. Unknown event types are skipped.
func (d *Dragger) Replay(ctx context.Context, events []PointerEvent) (domain.Position, error) {
	for _, ev := range events {
		p := domain.Point{X: ev.X, Y: ev.Y}
		switch ev.Type {
		case EventDown:
			d.PointerDown(p)
		case EventMove:
			d.PointerMove(p)
		case EventUp:
			if _, err := d.PointerUp(ctx); err != nil {
				return d.Position(), err
			}
		}
	}
	return d.Position(), nil
}
