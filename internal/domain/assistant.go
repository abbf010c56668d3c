package domain

import (
	"time"
)

// ChatEntry is one message sent through the assistant widget.
type ChatEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Point is a pointer sample in viewport pixels, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the visible area of the shell in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is the widget offset from the bottom-left corner of the viewport.
type Position struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
}

// Theme is the shell colour scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeDark || t == ThemeLight
}
