package nlu

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		text   string
		kind   Kind
		index  int
		hasIdx bool
		folder string
	}{
		{text: "open three", kind: KindOpenEmail, index: 2, hasIdx: true},
		{text: "open email 5", kind: KindOpenEmail, index: 4, hasIdx: true},
		{text: "read the second email", kind: KindOpenEmail, index: 1, hasIdx: true},
		{text: "open the third one", kind: KindOpenEmail, index: 2, hasIdx: true},
		{text: "open tenth", kind: KindOpenEmail, index: 9, hasIdx: true},
		{text: "read it", kind: KindRead},
		{text: "read", kind: KindRead},
		{text: "delete email 2", kind: KindDelete, index: 1, hasIdx: true},
		{text: "remove this", kind: KindDelete},
		{text: "delete", kind: KindDelete},
		{text: "yes", kind: KindConfirm},
		{text: "yes, send it", kind: KindConfirm},
		{text: "send", kind: KindConfirm},
		{text: "nope", kind: KindConfirm},
		{text: "log out", kind: KindLogout},
		{text: "sign out please", kind: KindLogout},
		{text: "stop", kind: KindStop},
		{text: "be quiet", kind: KindStop},
		{text: "summarize email 3", kind: KindSummarize, index: 2, hasIdx: true},
		{text: "give me a summary", kind: KindSummarize},
		{text: "reply with option two", kind: KindReply, index: 1, hasIdx: true},
		{text: "option 3", kind: KindReply, index: 2, hasIdx: true},
		{text: "compose", kind: KindCompose},
		{text: "write an email", kind: KindCompose},
		{text: "go to inbox", kind: KindNavigation, folder: FolderInbox},
		{text: "show sent mail", kind: KindNavigation, folder: FolderSent},
		{text: "outbox", kind: KindNavigation, folder: FolderSent},
		{text: "open trash", kind: KindNavigation, folder: FolderTrash},
		{text: "the bin", kind: KindNavigation, folder: FolderTrash},
		{text: "drafts", kind: KindNavigation, folder: FolderDrafts},
		{text: "open settings", kind: KindNavigation, folder: FolderSettings},
		{text: "cancel trash the draft", kind: KindCancel},
		{text: "foobar xyz", kind: KindUnknown},
		{text: "", kind: KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := Match(tc.text)
			if got.Kind != tc.kind {
				t.Fatalf("kind: expected %q, got %q", tc.kind, got.Kind)
			}
			idx, ok := got.Index()
			if ok != tc.hasIdx {
				t.Fatalf("index present: expected %v, got %v", tc.hasIdx, ok)
			}
			if ok && idx != tc.index {
				t.Fatalf("index: expected %d, got %d", tc.index, idx)
			}
			if tc.folder != "" && got.Str(ParamFolder) != tc.folder {
				t.Fatalf("folder: expected %q, got %q", tc.folder, got.Str(ParamFolder))
			}
		})
	}
}

func TestMatchDeleteTarget(t *testing.T) {
	got := Match("delete it")
	if got.Str(ParamTarget) != "current" {
		t.Fatalf("expected current target, got %v", got.Params)
	}
	if _, ok := got.Index(); ok {
		t.Fatalf("expected no index")
	}
}

func TestMatchSummarizeDefaultsToCurrent(t *testing.T) {
	got := Match("make it short")
	if got.Kind != KindSummarize || got.Str(ParamTarget) != "current" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestMatchConfirmationValue(t *testing.T) {
	if !Match("yes that's right").Affirmative() {
		t.Fatalf("expected affirmative")
	}
	if !Match("no that's wrong").Negative() {
		t.Fatalf("expected negative")
	}
}

func TestMatchWordBoundaries(t *testing.T) {
	// "snow" holds "no", "binary" holds "bin", "knows" holds "no".
	for _, text := range []string{"snow binary", "he knows", "robin"} {
		if got := Match(text); got.Kind != KindUnknown {
			t.Fatalf("%q: expected unknown, got %q", text, got.Kind)
		}
	}
}

func TestMatchReplyWithoutNumberFallsThrough(t *testing.T) {
	if got := Match("reply with something nice"); got.Kind != KindUnknown {
		t.Fatalf("expected unknown, got %q", got.Kind)
	}
}

func TestUnknownHasNoParams(t *testing.T) {
	if got := Match("hmm"); got.Params != nil {
		t.Fatalf("expected nil params, got %v", got.Params)
	}
}
