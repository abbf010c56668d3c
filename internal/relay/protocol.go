package relay

// Message types exchanged with the bridge script in the chat frame.
const (
	TypeReady   = "ready"
	TypeCommand = "command"
	TypeAck     = "ack"
)

// Steps the bridge performs for a command, in order.
const (
	StepSetValue      = "set_value"
	StepDispatchInput = "dispatch_input"
	StepClickSubmit   = "click_submit"
)

// DefaultSteps fill the input, notify the frame's framework and submit.
var DefaultSteps = []string{StepSetValue, StepDispatchInput, StepClickSubmit}

// Controls reports which controls the bridge found in the document.
type Controls struct {
	Input  bool `json:"input"`
	Submit bool `json:"submit"`
}

// Found reports whether both controls exist.
func (c Controls) Found() bool { return c.Input && c.Submit }

// inbound is any message from the frame.
type inbound struct {
	Type     string   `json:"type"`
	Origin   string   `json:"origin,omitempty"`
	Controls Controls `json:"controls"`
	ID       string   `json:"id,omitempty"`
	OK       *bool    `json:"ok,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Command is sent to the frame.
type Command struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	Steps []string `json:"steps"`
	Value string   `json:"value"`
}

// Ack is the frame's answer to a Command. A missing ok field counts as
// success.
type Ack struct {
	ID    string
	OK    bool
	Error string
}
