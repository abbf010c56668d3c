package assistant

import (
	"context"
	"iter"
	"time"

	"github.com/ashureev/quantdesk/internal/store"
)

// DefaultWelcomeText greets a profile the first time the chat panel opens.
const DefaultWelcomeText = "Hi, I'm your quant assistant. Ask me about market moves, strategy ideas or anything on your dashboard."

// DefaultTypingSpeed is the delay between typed runes.
const DefaultTypingSpeed = 50 * time.Millisecond

var hideWelcome = store.Flag(store.HideWelcomeKey)

// Welcome is the one-time welcome preference of a profile.
type Welcome struct {
	kv store.Store
}

// ShouldPlay reports whether the welcome typewriter may run. An unreadable
// preference counts as seen.
func (w Welcome) ShouldPlay(ctx context.Context) (bool, error) {
	hidden, err := hideWelcome.IsSet(ctx, w.kv)
	if err != nil {
		return false, err
	}
	return !hidden, nil
}

// MarkSeen prevents the welcome typewriter from replaying.
func (w Welcome) MarkSeen(ctx context.Context) error {
	return hideWelcome.Set(ctx, w.kv)
}

// Typewriter reveals a text one rune at a time.
type Typewriter struct {
	Text  string
	Speed time.Duration
}

// Runes yields each rune of the text after waiting Speed. Iteration stops
// early when ctx is done.
func (t Typewriter) Runes(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		var timer *time.Timer
		if t.Speed > 0 {
			timer = time.NewTimer(t.Speed)
			defer timer.Stop()
		}
		for i, r := range []rune(t.Text) {
			if ctx.Err() != nil {
				return
			}
			if timer != nil {
				if i > 0 {
					timer.Reset(t.Speed)
				}
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			}
			if !yield(string(r)) {
				return
			}
		}
	}
}
