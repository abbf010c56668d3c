package assistant

import (
	"sync"
	"time"
)

// FrameState is the load state of the embedded chat document.
type FrameState string

const (
	FrameHidden  FrameState = "hidden"
	FrameLoading FrameState = "loading"
	FrameReady   FrameState = "ready"
	FrameError   FrameState = "error"
)

// DefaultFrameTimeout bounds how long the frame may stay loading.
const DefaultFrameTimeout = 10 * time.Second

// Stopper cancels a pending timer.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Frame is the state machine Hidden -> Loading -> Ready | Error. Loading
// turns into Error when the timeout fires; Retry is the only way out of
// Error besides Hide.
type Frame struct {
	mu        sync.Mutex
	state     FrameState
	timeout   time.Duration
	afterFunc AfterFunc
	timer     Stopper
	gen       uint64
}

// NewFrame creates a hidden frame. Zero timeout and nil afterFunc take the
// defaults.
func NewFrame(timeout time.Duration, afterFunc AfterFunc) *Frame {
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Frame{state: FrameHidden, timeout: timeout, afterFunc: afterFunc}
}

// State returns the current state.
func (f *Frame) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Visible reports whether the frame is shown in any state.
func (f *Frame) Visible() bool {
	return f.State() != FrameHidden
}

// Show opens a hidden frame and starts loading. Other states are kept.
func (f *Frame) Show() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameHidden {
		f.startLoading()
	}
	return f.state
}

// Loaded marks a loading or failed frame as ready.
func (f *Frame) Loaded() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameLoading || f.state == FrameError {
		f.stopTimer()
		f.state = FrameReady
	}
	return f.state
}

// Fail forces a loading frame into Error.
func (f *Frame) Fail() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameLoading {
		f.stopTimer()
		f.state = FrameError
	}
	return f.state
}

// Retry re-enters Loading from Error.
func (f *Frame) Retry() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameError {
		f.startLoading()
	}
	return f.state
}

// Hide closes the frame from any state.
func (f *Frame) Hide() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTimer()
	f.state = FrameHidden
	return f.state
}

// startLoading arms the timeout. Caller holds mu.
func (f *Frame) startLoading() {
	f.stopTimer()
	f.state = FrameLoading
	gen := f.gen
	f.timer = f.afterFunc(f.timeout, func() { f.expire(gen) })
}

func (f *Frame) expire(gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || f.state != FrameLoading {
		return
	}
	f.timer = nil
	f.state = FrameError
}

// stopTimer cancels the pending timeout. Caller holds mu.
func (f *Frame) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
}
