package relay

import "errors"

// ErrRelay is matched by every relay failure.
var ErrRelay = errors.New("relay failed")

// Reason classifies a relay outcome.
type Reason string

const (
	ReasonDelivered        Reason = "delivered"
	ReasonNoRelay          Reason = "no_relay"
	ReasonFrameNotReady    Reason = "frame_not_ready"
	ReasonCrossOrigin      Reason = "cross_origin"
	ReasonControlsNotFound Reason = "controls_not_found"
	ReasonSendFailed       Reason = "send_failed"
	ReasonAckTimeout       Reason = "ack_timeout"
	ReasonRejected         Reason = "rejected"
	ReasonPanic            Reason = "panic"
)

// Error describes a failed forward.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "relay: " + string(e.Reason) + ": " + e.Err.Error()
	}
	return "relay: " + string(e.Reason)
}

// Is reports ErrRelay.
func (e *Error) Is(target error) bool { return target == ErrRelay }

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of Forward. Err is set whenever OK is false.
type Result struct {
	OK        bool   `json:"ok"`
	Reason    Reason `json:"reason"`
	CommandID string `json:"command_id,omitempty"`
	Err       *Error `json:"-"`
}

func failure(reason Reason, err error) Result {
	return Result{Reason: reason, Err: &Error{Reason: reason, Err: err}}
}
