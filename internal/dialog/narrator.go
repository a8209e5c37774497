package dialog

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"sync"
	"time"

	"swar/internal/speech"
)

const (
	// TypewriterRate is the cosmetic reveal speed of narrated text. It
	// has no relation to the audio position.
	TypewriterRate = 20.0

	cursor   = " ▌"
	ellipsis = "..."

	startWait = 3 * time.Second
	startPoll = 100 * time.Millisecond
)

var interruptRe = regexp.MustCompile(`\bstop\w*|\bcancel\w*`)

// Progress projects how much of text a listener has "seen" after
// elapsed, at rate runes per second. Cosmetic only.
func Progress(text string, elapsed time.Duration, rate float64) string {
	if elapsed <= 0 || rate <= 0 {
		return ""
	}
	r := []rune(text)
	n := int(elapsed.Seconds() * rate)
	if n >= len(r) {
		return text
	}
	return string(r[:n])
}

// Outcome reports how a narration ended.
type Outcome struct {
	Interrupted bool
	Shown       string           // the final visible assistant turn
	By          speech.Utterance // the interrupting utterance
}

// Narrator owns the session's synthesis. At most one handle is alive
// at a time; starting a new one cancels the old.
type Narrator struct {
	ch      speech.Channel
	log     *ChatLog
	changed func()
	now     func() time.Time

	mu      sync.Mutex
	current speech.Handle
}

func NewNarrator(ch speech.Channel, chat *ChatLog) *Narrator {
	return &Narrator{ch: ch, log: chat, changed: func() {}, now: time.Now}
}

// OnChange registers a callback fired whenever the chat log changes.
func (n *Narrator) OnChange(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	n.changed = fn
}

func (n *Narrator) start(text string) (speech.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current != nil {
		if err := n.current.Cancel(); err != nil {
			log.Warn("Failed to cancel synthesis", "err", err)
		}
		n.current = nil
	}

	h, err := n.ch.Synthesize(text)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	n.current = h
	return h, nil
}

func (n *Narrator) release(h speech.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == h {
		n.current = nil
	}
}

// Stop silences whatever is being spoken.
func (n *Narrator) Stop() {
	n.mu.Lock()
	h := n.current
	n.current = nil
	n.mu.Unlock()

	if h != nil {
		if err := h.Cancel(); err != nil {
			log.Warn("Failed to cancel synthesis", "err", err)
		}
	}
}

// Say logs text as an assistant turn and speaks it to the end.
func (n *Narrator) Say(ctx context.Context, text string) error {
	n.log.Append(SpeakerAssistant, text)
	n.changed()

	h, err := n.start(text)
	if err != nil {
		return err
	}
	defer n.release(h)

	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		_ = h.Cancel()
		return ctx.Err()
	}
}

// SpeakAndListen narrates text while polling the microphone for an
// interrupt word. The visible assistant turn grows as a typewriter
// projection and is finalized to the full text or an ellipsized
// prefix.
func (n *Narrator) SpeakAndListen(ctx context.Context, text string) (Outcome, error) {
	n.log.Append(SpeakerAssistant, "")
	n.changed()

	h, err := n.start(text)
	if err != nil {
		n.finish(text)
		return Outcome{Shown: text}, err
	}
	defer n.release(h)
	began := n.now()

	if !n.awaitActive(ctx, h) {
		n.finish(text)
		return Outcome{Shown: text}, ctx.Err()
	}

	for h.Active() {
		u, err := n.ch.Capture(ctx, speech.InterruptProfile)
		shown := Progress(text, n.now().Sub(began), TypewriterRate)

		if err == nil && interruptRe.MatchString(u.Text) {
			final := shown + ellipsis
			n.log.RewriteLast(final)
			n.log.Append(SpeakerUser, u.Text)
			n.changed()
			if err := h.Cancel(); err != nil {
				log.Warn("Failed to cancel synthesis", "err", err)
			}
			return Outcome{Interrupted: true, Shown: final, By: u}, nil
		}

		if err != nil && !errors.Is(err, speech.ErrNoSpeech) {
			if ctx.Err() != nil {
				_ = h.Cancel()
				n.finish(shown + ellipsis)
				return Outcome{Interrupted: true, Shown: shown + ellipsis}, ctx.Err()
			}
			log.Debug("Interrupt listen failed", "err", err)
		}

		if shown != text {
			shown += cursor
		}
		n.log.RewriteLast(shown)
		n.changed()
	}

	n.finish(text)
	return Outcome{Shown: text}, nil
}

// awaitActive waits a bounded time for synthesis to start. False with
// a nil ctx error means it never did, which counts as completed.
func (n *Narrator) awaitActive(ctx context.Context, h speech.Handle) bool {
	deadline := n.now().Add(startWait)
	for !h.Active() {
		select {
		case <-h.Done():
			return false
		default:
		}
		if n.now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			_ = h.Cancel()
			return false
		case <-time.After(startPoll):
		}
	}
	return true
}

func (n *Narrator) finish(text string) {
	n.log.RewriteLast(text)
	n.changed()
}
