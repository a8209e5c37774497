package dialog

import (
	"testing"

	"swar/internal/nlu"
)

func idle(listed, selected int) State {
	return State{Mode: Idle, Listed: listed, Selected: selected}
}

func TestRouteIdle(t *testing.T) {
	cases := []struct {
		text     string
		st       State
		kind     ActionKind
		index    int
		folder   string
		feedback string
	}{
		{text: "open three", st: idle(5, -1), kind: OpenEmail, index: 2},
		{text: "open email 9", st: idle(5, -1), kind: Unhandled, feedback: feedbackInvalid},
		{text: "go to trash", st: idle(5, -1), kind: Navigate, folder: nlu.FolderTrash},
		{text: "read it", st: idle(5, 1), kind: ReadCurrent, index: 1},
		{text: "read it", st: idle(5, -1), kind: Unhandled, feedback: feedbackNothingOpen},
		{text: "compose", st: idle(0, -1), kind: StartCompose},
		{text: "stop", st: idle(0, -1), kind: StopNarration},
		{text: "log out", st: idle(0, -1), kind: Logout},
		{text: "summarize", st: idle(3, 0), kind: Summarize, index: 0},
		{text: "summarize email 2", st: idle(3, -1), kind: Summarize, index: 1},
		{text: "reply with option two", st: idle(3, 0), kind: Reply, index: 1},
		{text: "reply with option two", st: idle(3, -1), kind: Unhandled, feedback: feedbackNoReplyTo},
		{text: "yes", st: idle(3, -1), kind: Unhandled, feedback: feedbackUnknown},
		{text: "foobar xyz", st: idle(3, -1), kind: Unhandled, feedback: feedbackUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			act := Route(nlu.Match(tc.text), tc.text, tc.st)
			if act.Kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, act.Kind)
			}
			if act.Index != tc.index {
				t.Fatalf("expected index %d, got %d", tc.index, act.Index)
			}
			if act.Folder != tc.folder {
				t.Fatalf("expected folder %q, got %q", tc.folder, act.Folder)
			}
			if act.Feedback != tc.feedback {
				t.Fatalf("expected feedback %q, got %q", tc.feedback, act.Feedback)
			}
		})
	}
}

func TestRouteDeleteResolution(t *testing.T) {
	t.Run("explicit index wins over selection", func(t *testing.T) {
		act := Route(nlu.Match("delete email 4"), "delete email 4", idle(5, 1))
		if act.Kind != Delete || act.Index != 3 {
			t.Fatalf("unexpected %+v", act)
		}
	})
	t.Run("open selection", func(t *testing.T) {
		act := Route(nlu.Match("delete this"), "delete this", idle(5, 1))
		if act.Kind != Delete || act.Index != 1 {
			t.Fatalf("unexpected %+v", act)
		}
	})
	t.Run("clarification", func(t *testing.T) {
		act := Route(nlu.Match("delete"), "delete", idle(5, -1))
		if act.Kind != Unhandled || act.Feedback != feedbackWhich {
			t.Fatalf("unexpected %+v", act)
		}
	})
}

func TestRouteComposingGlobalsPreempt(t *testing.T) {
	st := State{Mode: Composing, Stage: StageSubject, Listed: 3, Selected: -1}

	cases := map[string]ActionKind{
		"go to inbox":    Navigate,
		"open email 2":   OpenEmail,
		"stop":           StopNarration,
		"sign out":       Logout,
		"delete email 1": WizardAdvance,
		"meeting notes":  WizardAdvance,
		"cancel":         WizardAdvance,
	}
	for text, kind := range cases {
		if act := Route(nlu.Match(text), text, st); act.Kind != kind {
			t.Fatalf("%q: expected %s, got %s", text, kind, act.Kind)
		}
	}
}

func TestRouteConfirmStage(t *testing.T) {
	st := State{Mode: Composing, Stage: StageConfirm, Draft: Draft{To: "a@b.c"}}

	if act := Route(nlu.Match("yes"), "yes", st); act.Kind != Send {
		t.Fatalf("expected send, got %s", act.Kind)
	}
	if act := Route(nlu.Match("send"), "send", st); act.Kind != Send {
		t.Fatalf("expected send, got %s", act.Kind)
	}
	if act := Route(nlu.Match("cancel, don't send"), "cancel, don't send", st); act.Kind != WizardAdvance {
		t.Fatalf("expected wizard cancel, got %s", act.Kind)
	}
	if act := Route(nlu.Match("hmm"), "hmm", st); act.Kind != WizardAdvance {
		t.Fatalf("expected wizard re-prompt, got %s", act.Kind)
	}
}

func TestCanonicalFolder(t *testing.T) {
	cases := map[string]string{
		"inbox":    nlu.FolderInbox,
		" Sent ":   nlu.FolderSent,
		"draft":    nlu.FolderDrafts,
		"bin":      nlu.FolderTrash,
		"settings": nlu.FolderSettings,
		"spam":     "",
	}
	for in, want := range cases {
		if got := CanonicalFolder(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
