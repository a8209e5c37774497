// Package auth runs the spoken login: face lookup, then a PIN said out
// loud.
package auth

import (
	"context"
	"errors"
	"fmt"
	"image"
	log "log/slog"
	"regexp"
	"strings"
	"time"

	"swar/internal/dialog"
	"swar/internal/identity"
	"swar/internal/speech"
)

var (
	ErrUnknownFace       = errors.New("unknown face")
	ErrCancelled         = errors.New("login cancelled")
	ErrTooManyAttempts   = errors.New("too many wrong PINs")
	errCameraUnavailable = errors.New("camera unavailable")
)

const (
	DefaultAttempts = 3
	scanWindow      = 2 * time.Second
	scanInterval    = 100 * time.Millisecond
)

var cancelRe = regexp.MustCompile(`\b(stop|cancel)\b`)

// Directory finds enrolled users by face.
type Directory interface {
	LookupByFace(ctx context.Context, frame image.Image) (identity.User, float64, error)
}

// Speaker says one line and waits for it to finish.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

type Options struct {
	Directory Directory
	Camera    identity.Camera
	Speaker   Speaker
	Listener  speech.Listener
	Chat      *dialog.ChatLog
	Attempts  int
}

// Login blocks until a user is verified, the login is cancelled, the
// face is unknown or the PIN attempts run out.
func Login(ctx context.Context, o Options) (identity.User, error) {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}

	u, err := scan(ctx, o.Directory, o.Camera)
	if errors.Is(err, identity.ErrNotFound) || errors.Is(err, errCameraUnavailable) {
		o.say(ctx, "Unknown face. Please enroll first.")
		return identity.User{}, ErrUnknownFace
	}
	if err != nil {
		return identity.User{}, err
	}

	o.say(ctx, fmt.Sprintf("Welcome %s. PIN?", u.Name))

	for wrong := 0; wrong < o.Attempts; {
		utt, err := o.Listener.Capture(ctx, speech.CommandProfile)
		if errors.Is(err, speech.ErrNoSpeech) {
			continue
		}
		if err != nil {
			return identity.User{}, err
		}
		if o.Chat != nil {
			o.Chat.Append(dialog.SpeakerUser, MaskPin(utt.Text))
		}

		if cancelRe.MatchString(utt.Text) {
			o.say(ctx, "Cancelled login.")
			return identity.User{}, ErrCancelled
		}

		if identity.VerifyPin(u, Digits(utt.Text)) {
			o.say(ctx, "Logged in.")
			log.Info("User logged in", "user", u.Email)
			return u, nil
		}

		wrong++
		log.Warn("Wrong PIN", "user", u.Email, "attempt", wrong)
		o.say(ctx, "Wrong PIN.")
	}

	o.say(ctx, "Too many attempts.")
	return identity.User{}, ErrTooManyAttempts
}

func (o Options) say(ctx context.Context, text string) {
	if err := o.Speaker.Say(ctx, text); err != nil {
		log.Error("Failed to speak", "err", err)
	}
}

// scan keeps grabbing frames for scanWindow until one matches.
func scan(ctx context.Context, dir Directory, cam identity.Camera) (identity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, scanWindow)
	defer cancel()

	var last error = errCameraUnavailable
	for {
		frame, err := cam.Capture(ctx)
		if err == nil {
			u, score, lerr := dir.LookupByFace(ctx, frame)
			if lerr == nil {
				return u, nil
			}
			log.Debug("Face scan miss", "score", score, "err", lerr)
			if ctx.Err() == nil {
				last = lerr
			}
		} else if ctx.Err() == nil {
			log.Warn("Camera capture failed", "err", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return identity.User{}, last
			}
			return identity.User{}, ctx.Err()
		case <-time.After(scanInterval):
		}
	}
}

var digitWords = map[string]rune{
	"zero": '0', "oh": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
}

// Digits keeps the digits of a spoken PIN, so "one two 3 four" gives
// "1234".
func Digits(text string) string {
	var b strings.Builder
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if d, ok := digitWords[strings.Trim(w, ".,!?")]; ok {
			b.WriteRune(d)
			continue
		}
		for _, r := range w {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// MaskPin replaces every word carrying a digit with one asterisk per
// digit, so "my pin is one 23" reads "my pin is * **".
func MaskPin(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if d := Digits(w); d != "" {
			words[i] = strings.Repeat("*", len(d))
		}
	}
	return strings.Join(words, " ")
}
