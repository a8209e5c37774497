package dialog

import (
	"regexp"
	"strings"

	"swar/internal/nlu"
)

const (
	promptRecipient     = "Who is the email for?"
	promptRecipientMore = "Okay. Who is the email for?"
	promptYesNo         = "Please say Yes or No."
	promptSubject       = "Great. Subject?"
	promptMessage       = "Subject set. Message?"
	promptConfirm       = "Message set. Say 'Yes' to send."
	promptSendOrCancel  = "Say 'Yes' to send, or 'Cancel'."
	promptCancelled     = "Cancelled."
)

var (
	agreeRe    = regexp.MustCompile(`\byes\b|\bcorrect\b`)
	disagreeRe = regexp.MustCompile(`\bno\b|\bwrong\b`)
	sendRe     = regexp.MustCompile(`\byes\b|\bsend\b`)
	cancelRe   = regexp.MustCompile(`\bcancel\w*`)
)

// Step is the outcome of feeding one input to the wizard.
type Step struct {
	Stage  Stage
	Draft  Draft
	Prompt string
	Send   bool // the user confirmed sending the draft
	Exit   bool // the wizard is over, the session returns to Idle
}

// Begin runs the automatic init stage.
func Begin(d Draft) Step {
	return Step{Stage: StageRecipient, Draft: d, Prompt: promptRecipient}
}

// Advance feeds one utterance to the wizard at the given stage.
// It never performs the send itself.
func Advance(stage Stage, d Draft, in nlu.Intent, text string) Step {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if in.Kind == nlu.KindCancel || cancelRe.MatchString(lower) {
		return Step{Stage: StageInit, Prompt: promptCancelled, Exit: true}
	}

	switch stage {
	case StageInit:
		return Begin(d)

	case StageRecipient:
		addr := in.Str(nlu.ParamValue)
		if in.Kind != nlu.KindComposeSet || addr == "" {
			addr = NormalizeAddress(text)
		}
		d.To = addr
		return Step{Stage: StageRecipientConfirm, Draft: d, Prompt: "I heard " + addr + ". Is this correct?"}

	case StageRecipientConfirm:
		switch {
		case in.Affirmative() || agreeRe.MatchString(lower):
			return Step{Stage: StageSubject, Draft: d, Prompt: promptSubject}
		case in.Negative() || disagreeRe.MatchString(lower):
			d.To = ""
			return Step{Stage: StageRecipient, Draft: d, Prompt: promptRecipientMore}
		}
		return Step{Stage: StageRecipientConfirm, Draft: d, Prompt: promptYesNo}

	case StageSubject:
		d.Subject = text
		return Step{Stage: StageMessage, Draft: d, Prompt: promptMessage}

	case StageMessage:
		d.Body = text
		return Step{Stage: StageConfirm, Draft: d, Prompt: promptConfirm}

	case StageConfirm:
		if ConfirmsSend(in, lower) {
			return Step{Stage: StageConfirm, Draft: d, Send: true}
		}
		return Step{Stage: StageConfirm, Draft: d, Prompt: promptSendOrCancel}
	}

	return Begin(d)
}

// ConfirmsSend reports an affirmative answer at the confirm stage.
func ConfirmsSend(in nlu.Intent, lower string) bool {
	return in.Affirmative() || sendRe.MatchString(lower)
}

// NormalizeAddress turns dictated "john at gmail dot com" into
// "john@gmail.com".
func NormalizeAddress(spoken string) string {
	s := " " + strings.ToLower(strings.TrimSpace(spoken)) + " "
	s = strings.ReplaceAll(s, " at ", "@")
	s = strings.ReplaceAll(s, " dot ", ".")
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimRight(s, ".")
}
