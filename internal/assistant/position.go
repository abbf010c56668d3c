package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/store"
)

const (
	// WidgetSize is the edge length of the launcher button in pixels.
	WidgetSize = 66
	// EdgeMargin is the minimum gap kept between the widget and the viewport edge.
	EdgeMargin = 10
	// DefaultInset is the distance from the bottom-right corner on first use.
	DefaultInset = 20
)

// storedPosition is the persisted form. Older shells anchored the widget
// top/right; those entries are still accepted on read.
type storedPosition struct {
	Left   string `json:"left,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
}

var positionEntry = store.JSON[storedPosition](store.PositionKey)

func parsePx(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatPx(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func clampAxis(v, extent float64) float64 {
	hi := extent - WidgetSize
	if hi < EdgeMargin {
		hi = EdgeMargin
	}
	switch {
	case v < EdgeMargin:
		return EdgeMargin
	case v > hi:
		return hi
	}
	return v
}

// Clamp keeps the widget's bounding box inside vp on both axes.
func Clamp(p domain.Position, vp domain.Viewport) domain.Position {
	return domain.Position{
		Left:   clampAxis(p.Left, vp.Width),
		Bottom: clampAxis(p.Bottom, vp.Height),
	}
}

// DefaultPosition places the widget near the bottom-right corner.
func DefaultPosition(vp domain.Viewport) domain.Position {
	return Clamp(domain.Position{
		Left:   vp.Width - WidgetSize - DefaultInset,
		Bottom: DefaultInset,
	}, vp)
}

// resolve converts sp to bottom-left coordinates. Axes that cannot be
// recovered take the default.
func (sp storedPosition) resolve(vp domain.Viewport) domain.Position {
	p := DefaultPosition(vp)
	if v, ok := parsePx(sp.Left); ok {
		p.Left = v
	} else if v, ok := parsePx(sp.Right); ok {
		p.Left = vp.Width - v - WidgetSize
	}
	if v, ok := parsePx(sp.Bottom); ok {
		p.Bottom = v
	} else if v, ok := parsePx(sp.Top); ok {
		p.Bottom = vp.Height - v - WidgetSize
	}
	return Clamp(p, vp)
}

// LoadPosition reads the saved position for vp. A missing or unreadable
// entry yields the default; only store failures are returned.
func LoadPosition(ctx context.Context, kv store.Store, vp domain.Viewport) (domain.Position, error) {
	raw, ok, err := kv.Get(ctx, store.PositionKey.Name)
	if err != nil {
		return DefaultPosition(vp), fmt.Errorf("load position: %w", err)
	}
	if !ok {
		return DefaultPosition(vp), nil
	}
	var sp storedPosition
	if err := json.Unmarshal([]byte(raw), &sp); err != nil {
		return DefaultPosition(vp), nil
	}
	return sp.resolve(vp), nil
}

// SavePosition persists p in pixel-string form.
func SavePosition(ctx context.Context, kv store.Store, p domain.Position) error {
	return positionEntry.Save(ctx, kv, storedPosition{
		Left:   formatPx(p.Left),
		Bottom: formatPx(p.Bottom),
	})
}
