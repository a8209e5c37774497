package speech

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNoSpeech is returned by Capture when nothing was said before the
// profile timeout.
var ErrNoSpeech = errors.New("no speech")

// Utterance is one recognized chunk of speech.
type Utterance struct {
	Text string
	At   time.Time
}

// Recognizer annotations such as [BLANK_AUDIO] or (wind blowing).
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

// NewUtterance lowercases raw recognizer output and drops annotations
// and the trailing punctuation recognizers like to add.
func NewUtterance(raw string, at time.Time) Utterance {
	raw = annotationRe.ReplaceAllString(raw, " ")
	t := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	t = strings.TrimRight(t, ".!?,;: ")
	return Utterance{Text: t, At: at}
}

func (u Utterance) Empty() bool { return u.Text == "" }

// Profile bounds a single capture.
type Profile struct {
	Timeout     time.Duration // wait for speech to start
	PhraseLimit time.Duration // max phrase length once started
	Threshold   float64       // RMS energy gate
	Calibrate   bool          // raise the gate to the ambient level first
	Cue         bool          // play the listening cue
}

var (
	CommandProfile = Profile{
		Timeout:     5 * time.Second,
		PhraseLimit: 10 * time.Second,
		Threshold:   0.015,
		Calibrate:   true,
		Cue:         true,
	}

	// InterruptProfile is polled while narration plays. It favors
	// catching a short "stop" over transcribing whole sentences.
	InterruptProfile = Profile{
		Timeout:     500 * time.Millisecond,
		PhraseLimit: 1500 * time.Millisecond,
		Threshold:   0.03,
	}
)

// Handle is a running synthesis.
type Handle interface {
	Active() bool
	Done() <-chan struct{}
	Cancel() error
}

type Synthesizer interface {
	Synthesize(text string) (Handle, error)
}

type Listener interface {
	Capture(ctx context.Context, p Profile) (Utterance, error)
}

// Channel is the full duplex speech I/O a session talks through.
type Channel interface {
	Synthesizer
	Listener
}

// Duplex pairs an independent synthesizer and listener.
type Duplex struct {
	Synthesizer
	Listener
}
