package dialog

import (
	"fmt"
	"testing"
)

func TestChatLogEvictsOldest(t *testing.T) {
	l := NewChatLog(ChatLogSize)
	for i := 0; i < 57; i++ {
		l.Append(SpeakerUser, fmt.Sprintf("turn %d", i))
		if l.Len() > ChatLogSize {
			t.Fatalf("log grew to %d", l.Len())
		}
	}

	turns := l.Turns()
	if len(turns) != ChatLogSize {
		t.Fatalf("expected %d turns, got %d", ChatLogSize, len(turns))
	}
	if turns[0].Text != "turn 37" || turns[len(turns)-1].Text != "turn 56" {
		t.Fatalf("unexpected window %q .. %q", turns[0].Text, turns[len(turns)-1].Text)
	}
}

func TestChatLogRewriteOnlyLastAssistant(t *testing.T) {
	l := NewChatLog(5)
	l.Append(SpeakerAssistant, "first")
	l.Append(SpeakerUser, "hello")

	if l.RewriteLast("changed") {
		t.Fatalf("rewrote a user turn")
	}

	l.Append(SpeakerAssistant, "")
	if !l.RewriteLast("partial") {
		t.Fatalf("expected rewrite of assistant turn")
	}

	turns := l.Turns()
	if turns[0].Text != "first" || turns[2].Text != "partial" {
		t.Fatalf("unexpected turns %+v", turns)
	}
}

func TestChatLogTurnsIsCopy(t *testing.T) {
	l := NewChatLog(3)
	l.Append(SpeakerAssistant, "a")
	turns := l.Turns()
	turns[0].Text = "mutated"
	if l.Turns()[0].Text != "a" {
		t.Fatalf("snapshot aliased the log")
	}
}
