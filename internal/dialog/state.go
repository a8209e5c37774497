package dialog

import "fmt"

type Mode int

const (
	Idle Mode = iota
	Reading
	Composing
)

func (m Mode) String() string {
	switch m {
	case Reading:
		return "reading"
	case Composing:
		return "composing"
	}
	return "idle"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*m = Idle
	case "reading":
		*m = Reading
	case "composing":
		*m = Composing
	default:
		return fmt.Errorf("unknown mode %q", b)
	}
	return nil
}

type Stage string

const (
	StageInit             Stage = "init"
	StageRecipient        Stage = "recipient"
	StageRecipientConfirm Stage = "recipient_confirm"
	StageSubject          Stage = "subject"
	StageMessage          Stage = "message"
	StageConfirm          Stage = "confirm"
)

type Draft struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// State is the slice of a session the router decides on.
type State struct {
	Mode     Mode
	Stage    Stage
	Draft    Draft
	Listed   int // emails in the current folder view
	Selected int // open email, -1 for none
}

func (s State) HasOpen() bool {
	return s.Selected >= 0 && s.Selected < s.Listed
}

func (s State) InRange(i int) bool {
	return i >= 0 && i < s.Listed
}
