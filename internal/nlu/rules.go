package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

// Ordinal words are tried before cardinals so "the third one" resolves
// to the ordinal.
var (
	ordinals = compileSpelled(
		"first", "second", "third", "fourth", "fifth",
		"sixth", "seventh", "eighth", "ninth", "tenth",
	)
	cardinals = compileSpelled("one", "two", "three", "four", "five")
)

type spelledRe struct {
	re    *regexp.Regexp
	index int
}

func compileSpelled(words ...string) []spelledRe {
	out := make([]spelledRe, len(words))
	for i, w := range words {
		out[i] = spelledRe{re: regexp.MustCompile(`\b` + w + `\b`), index: i}
	}
	return out
}

var (
	digitsRe = regexp.MustCompile(`\d+`)

	cancelRe    = regexp.MustCompile(`\bcancel\w*`)
	logoutRe    = regexp.MustCompile(`\blog ?out\b|\bsign ?out\b|\blog me out\b`)
	stopRe      = regexp.MustCompile(`\bstop\w*|\bquiet\b|\bshut up\b`)
	yesRe       = regexp.MustCompile(`\byes\b|\byeah\b|\byep\b|\bsend it\b`)
	noRe        = regexp.MustCompile(`\bno\b|\bnope\b|\bwrong\b`)
	deleteRe    = regexp.MustCompile(`\bdelete\w*|\bremove\w*`)
	deictic     = regexp.MustCompile(`\bthis\b|\bit\b|\bcurrent\b`)
	summarizeRe = regexp.MustCompile(`\bsummari[sz]e\w*|\bsummary\b|\bshort\b`)
	replyRe     = regexp.MustCompile(`\breply with\b|\boption\b`)
	openRe      = regexp.MustCompile(`\bopen\w*|\bread\w*`)
	composeRe   = regexp.MustCompile(`\bcompose\w*|\bnew (e-?mail|mail|message)\b|\bwrite an? (e-?mail|mail|message)\b`)

	inboxRe    = regexp.MustCompile(`\binbox\b`)
	sentRe     = regexp.MustCompile(`\bsent\b|\boutbox\b`)
	trashRe    = regexp.MustCompile(`\btrash\b|\bbin\b`)
	draftsRe   = regexp.MustCompile(`\bdrafts?\b`)
	settingsRe = regexp.MustCompile(`\bsettings?\b|\bconfig\w*`)
)

var readPhrases = map[string]bool{
	"read":           true,
	"read it":        true,
	"read the mail":  true,
	"read email":     true,
	"read the email": true,
	"speak":          true,
}

// Match runs the deterministic rule table. The first rule that fires
// wins; anything left over is Unknown.
func Match(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Unknown()
	}

	switch {
	case cancelRe.MatchString(t):
		return newIntent(KindCancel)
	case logoutRe.MatchString(t):
		return newIntent(KindLogout)
	case stopRe.MatchString(t):
		return newIntent(KindStop)
	case t == "send" || yesRe.MatchString(t):
		return newIntent(KindConfirm, ParamValue, "yes")
	case noRe.MatchString(t):
		return newIntent(KindConfirm, ParamValue, "no")
	}

	if deleteRe.MatchString(t) {
		if n, ok := firstNumber(t); ok {
			return newIntent(KindDelete, ParamIndex, n)
		}
		if deictic.MatchString(t) {
			return newIntent(KindDelete, ParamTarget, "current")
		}
		return newIntent(KindDelete)
	}

	if summarizeRe.MatchString(t) {
		if n, ok := firstNumber(t); ok {
			return newIntent(KindSummarize, ParamIndex, n)
		}
		if n, ok := spelledIndex(t); ok {
			return newIntent(KindSummarize, ParamIndex, n)
		}
		return newIntent(KindSummarize, ParamTarget, "current")
	}

	if replyRe.MatchString(t) {
		if n, ok := firstNumber(t); ok {
			return newIntent(KindReply, ParamIndex, n)
		}
		if n, ok := matchSpelled(t, cardinals[:3]); ok {
			return newIntent(KindReply, ParamIndex, n)
		}
	}

	if readPhrases[t] {
		return newIntent(KindRead)
	}

	if openRe.MatchString(t) {
		if n, ok := firstNumber(t); ok {
			return newIntent(KindOpenEmail, ParamIndex, n)
		}
		if n, ok := spelledIndex(t); ok {
			return newIntent(KindOpenEmail, ParamIndex, n)
		}
	}

	if composeRe.MatchString(t) {
		return newIntent(KindCompose)
	}

	switch {
	case inboxRe.MatchString(t):
		return newIntent(KindNavigation, ParamFolder, FolderInbox)
	case sentRe.MatchString(t):
		return newIntent(KindNavigation, ParamFolder, FolderSent)
	case trashRe.MatchString(t):
		return newIntent(KindNavigation, ParamFolder, FolderTrash)
	case draftsRe.MatchString(t):
		return newIntent(KindNavigation, ParamFolder, FolderDrafts)
	case settingsRe.MatchString(t):
		return newIntent(KindNavigation, ParamFolder, FolderSettings)
	}

	return Unknown()
}

// firstNumber returns the first spoken decimal as a zero-based index.
func firstNumber(t string) (int, bool) {
	m := digitsRe.FindString(t)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func spelledIndex(t string) (int, bool) {
	if n, ok := matchSpelled(t, ordinals); ok {
		return n, true
	}
	return matchSpelled(t, cardinals)
}

func matchSpelled(t string, table []spelledRe) (int, bool) {
	for _, s := range table {
		if s.re.MatchString(t) {
			return s.index, true
		}
	}
	return 0, false
}
