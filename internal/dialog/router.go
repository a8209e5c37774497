package dialog

import (
	"strings"

	"swar/internal/nlu"
)

type ActionKind int

const (
	Unhandled ActionKind = iota
	Navigate
	OpenEmail
	ReadCurrent
	StartCompose
	WizardAdvance
	Send
	Delete
	Logout
	StopNarration
	Summarize
	Reply
)

var actionNames = [...]string{
	Unhandled:     "unhandled",
	Navigate:      "navigate",
	OpenEmail:     "open_email",
	ReadCurrent:   "read_current",
	StartCompose:  "start_compose",
	WizardAdvance: "wizard_advance",
	Send:          "send",
	Delete:        "delete",
	Logout:        "logout",
	StopNarration: "stop_narration",
	Summarize:     "summarize",
	Reply:         "reply",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "action(?)"
}

// Feedback spoken for requests the router cannot place.
const (
	feedbackUnknown     = "I didn't understand."
	feedbackInvalid     = "Invalid number."
	feedbackWhich       = "Which email?"
	feedbackNothingOpen = "No email is open to read."
	feedbackNoReplyTo   = "Open an email first."
	feedbackWhichOption = "Which option?"
)

type Action struct {
	Kind     ActionKind
	Folder   string
	Index    int
	Intent   nlu.Intent // carried to the wizard
	Input    string     // raw utterance for the wizard
	Feedback string     // spoken for Unhandled
}

func unhandled(feedback string) Action {
	return Action{Kind: Unhandled, Feedback: feedback}
}

// Route maps an intent to an action for the given state. It has no
// side effects.
func Route(in nlu.Intent, utterance string, st State) Action {
	if st.Mode == Composing {
		return routeComposing(in, utterance, st)
	}

	switch in.Kind {
	case nlu.KindNavigation:
		return navigate(in)

	case nlu.KindOpenEmail:
		return openEmail(in, st)

	case nlu.KindDelete:
		if i, ok := in.Index(); ok {
			if !st.InRange(i) {
				return unhandled(feedbackInvalid)
			}
			return Action{Kind: Delete, Index: i}
		}
		if st.HasOpen() {
			return Action{Kind: Delete, Index: st.Selected}
		}
		return unhandled(feedbackWhich)

	case nlu.KindRead:
		if !st.HasOpen() {
			return unhandled(feedbackNothingOpen)
		}
		return Action{Kind: ReadCurrent, Index: st.Selected}

	case nlu.KindSummarize:
		if i, ok := in.Index(); ok {
			if !st.InRange(i) {
				return unhandled(feedbackInvalid)
			}
			return Action{Kind: Summarize, Index: i}
		}
		if st.HasOpen() {
			return Action{Kind: Summarize, Index: st.Selected}
		}
		return unhandled(feedbackWhich)

	case nlu.KindReply:
		if !st.HasOpen() {
			return unhandled(feedbackNoReplyTo)
		}
		i, ok := in.Index()
		if !ok {
			return unhandled(feedbackWhichOption)
		}
		return Action{Kind: Reply, Index: i}

	case nlu.KindStop, nlu.KindCancel:
		return Action{Kind: StopNarration}

	case nlu.KindLogout:
		return Action{Kind: Logout}

	case nlu.KindCompose:
		return Action{Kind: StartCompose}
	}

	return unhandled(feedbackUnknown)
}

// routeComposing lets the global intents pre-empt the wizard.
func routeComposing(in nlu.Intent, utterance string, st State) Action {
	switch in.Kind {
	case nlu.KindNavigation:
		return navigate(in)
	case nlu.KindOpenEmail:
		return openEmail(in, st)
	case nlu.KindStop:
		return Action{Kind: StopNarration}
	case nlu.KindLogout:
		return Action{Kind: Logout}
	}

	lower := strings.ToLower(utterance)
	if st.Stage == StageConfirm && in.Kind != nlu.KindCancel && !cancelRe.MatchString(lower) && ConfirmsSend(in, lower) {
		return Action{Kind: Send}
	}

	return Action{Kind: WizardAdvance, Intent: in, Input: utterance}
}

func navigate(in nlu.Intent) Action {
	folder := CanonicalFolder(in.Str(nlu.ParamFolder))
	if folder == "" {
		return unhandled(feedbackUnknown)
	}
	return Action{Kind: Navigate, Folder: folder}
}

func openEmail(in nlu.Intent, st State) Action {
	i, ok := in.Index()
	if !ok || !st.InRange(i) {
		return unhandled(feedbackInvalid)
	}
	return Action{Kind: OpenEmail, Index: i}
}

var folders = []string{nlu.FolderInbox, nlu.FolderSent, nlu.FolderDrafts, nlu.FolderTrash, nlu.FolderSettings}

// CanonicalFolder maps a folder name from any source to its display
// name, or "" when it is not one of ours.
func CanonicalFolder(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "draft":
		return nlu.FolderDrafts
	case "setting":
		return nlu.FolderSettings
	case "bin":
		return nlu.FolderTrash
	}
	for _, f := range folders {
		if strings.ToLower(f) == n {
			return f
		}
	}
	return ""
}
