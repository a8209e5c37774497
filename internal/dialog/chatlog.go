package dialog

import "sync"

type Speaker string

const (
	SpeakerUser      Speaker = "User"
	SpeakerAssistant Speaker = "Swar"
)

// ChatLogSize is the number of turns kept in the visible transcript.
const ChatLogSize = 20

type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// ChatLog is a sliding window of recent turns. Only the newest entry
// may be rewritten, and only while it belongs to the assistant.
type ChatLog struct {
	mu    sync.Mutex
	turns []Turn
	limit int
}

func NewChatLog(limit int) *ChatLog {
	if limit <= 0 {
		limit = ChatLogSize
	}
	return &ChatLog{limit: limit}
}

func (l *ChatLog) Append(s Speaker, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, Turn{Speaker: s, Text: text})
	if over := len(l.turns) - l.limit; over > 0 {
		l.turns = append(l.turns[:0:0], l.turns[over:]...)
	}
}

// RewriteLast replaces the text of the newest entry when it is an
// assistant turn and reports whether it did.
func (l *ChatLog) RewriteLast(text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.turns)
	if n == 0 || l.turns[n-1].Speaker != SpeakerAssistant {
		return false
	}
	l.turns[n-1].Text = text
	return true
}

// Turns returns a copy, oldest first.
func (l *ChatLog) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Turn(nil), l.turns...)
}

func (l *ChatLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.turns)
}
