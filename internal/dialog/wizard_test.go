package dialog

import (
	"testing"

	"swar/internal/nlu"
)

func TestWizardTransitions(t *testing.T) {
	cases := []struct {
		name  string
		stage Stage
		draft Draft
		text  string
		next  Stage
		want  Draft
		send  bool
	}{
		{"recipient stored", StageRecipient, Draft{}, "john at gmail dot com", StageRecipientConfirm, Draft{To: "john@gmail.com"}, false},
		{"recipient accepted", StageRecipientConfirm, Draft{To: "a@b.c"}, "yes", StageSubject, Draft{To: "a@b.c"}, false},
		{"recipient correct", StageRecipientConfirm, Draft{To: "a@b.c"}, "that is correct", StageSubject, Draft{To: "a@b.c"}, false},
		{"recipient rejected", StageRecipientConfirm, Draft{To: "a@b.c"}, "no", StageRecipient, Draft{}, false},
		{"recipient unclear", StageRecipientConfirm, Draft{To: "a@b.c"}, "maybe", StageRecipientConfirm, Draft{To: "a@b.c"}, false},
		{"subject verbatim", StageSubject, Draft{To: "a@b.c"}, "Meeting", StageMessage, Draft{To: "a@b.c", Subject: "Meeting"}, false},
		{"body verbatim", StageMessage, Draft{To: "a@b.c", Subject: "s"}, "see you at noon", StageConfirm, Draft{To: "a@b.c", Subject: "s", Body: "see you at noon"}, false},
		{"confirm send", StageConfirm, Draft{To: "a@b.c"}, "send", StageConfirm, Draft{To: "a@b.c"}, true},
		{"confirm other", StageConfirm, Draft{To: "a@b.c"}, "hmm", StageConfirm, Draft{To: "a@b.c"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Advance(tc.stage, tc.draft, nlu.Match(tc.text), tc.text)
			if st.Stage != tc.next {
				t.Fatalf("stage: expected %s, got %s", tc.next, st.Stage)
			}
			if st.Draft != tc.want {
				t.Fatalf("draft: expected %+v, got %+v", tc.want, st.Draft)
			}
			if st.Send != tc.send {
				t.Fatalf("send: expected %v", tc.send)
			}
			if st.Exit {
				t.Fatalf("unexpected exit")
			}
			if !tc.send && st.Prompt == "" {
				t.Fatalf("expected a prompt")
			}
		})
	}
}

func TestWizardCancelFromAnyStage(t *testing.T) {
	full := Draft{To: "a@b.c", Subject: "s", Body: "b"}
	for _, stage := range []Stage{StageInit, StageRecipient, StageRecipientConfirm, StageSubject, StageMessage, StageConfirm} {
		st := Advance(stage, full, nlu.Match("cancel"), "cancel")
		if !st.Exit || st.Draft != (Draft{}) || st.Prompt != promptCancelled {
			t.Fatalf("%s: expected reset exit, got %+v", stage, st)
		}
	}
}

func TestWizardUsesRemoteAddress(t *testing.T) {
	in := nlu.Intent{Kind: nlu.KindComposeSet, Params: map[string]any{nlu.ParamValue: "jane.doe@mail.com"}}
	st := Advance(StageRecipient, Draft{}, in, "jane dot doe at mail dot com please")
	if st.Draft.To != "jane.doe@mail.com" {
		t.Fatalf("unexpected address %q", st.Draft.To)
	}
}

func TestBegin(t *testing.T) {
	st := Begin(Draft{})
	if st.Stage != StageRecipient || st.Prompt != promptRecipient {
		t.Fatalf("unexpected %+v", st)
	}
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"john at gmail dot com":         "john@gmail.com",
		"John Dot Doe at Gmail dot com": "john.doe@gmail.com",
		"john@gmail.com":                "john@gmail.com",
		"jane at work dot co dot uk.":   "jane@work.co.uk",
	}
	for in, want := range cases {
		if got := NormalizeAddress(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
