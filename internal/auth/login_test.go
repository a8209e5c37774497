package auth

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"swar/internal/dialog"
	"swar/internal/identity"
	"swar/internal/speech"
)

type fakeDir struct {
	user  identity.User
	miss  int
	calls int
}

func (d *fakeDir) LookupByFace(_ context.Context, _ image.Image) (identity.User, float64, error) {
	d.calls++
	if d.calls <= d.miss || d.user.Name == "" {
		return identity.User{}, 0.1, identity.ErrNotFound
	}
	return d.user, 0.9, nil
}

type fakeCamera struct{ err error }

func (c fakeCamera) Capture(context.Context) (image.Image, error) {
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakeSpeaker struct{ lines []string }

func (s *fakeSpeaker) Say(_ context.Context, text string) error {
	s.lines = append(s.lines, text)
	return nil
}

func (s *fakeSpeaker) last() string {
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

// script replays utterances; "" is silence.
type script struct{ said []string }

func (l *script) Capture(ctx context.Context, _ speech.Profile) (speech.Utterance, error) {
	if len(l.said) == 0 {
		return speech.Utterance{}, errors.New("script exhausted")
	}
	t := l.said[0]
	l.said = l.said[1:]
	if t == "" {
		return speech.Utterance{}, speech.ErrNoSpeech
	}
	return speech.NewUtterance(t, time.Now()), nil
}

var ann = identity.User{Name: "Ann", Email: "ann@example.com", PIN: "1234"}

func options(dir Directory, cam identity.Camera, said ...string) (Options, *fakeSpeaker) {
	sp := &fakeSpeaker{}
	return Options{
		Directory: dir,
		Camera:    cam,
		Speaker:   sp,
		Listener:  &script{said: said},
		Chat:      dialog.NewChatLog(dialog.ChatLogSize),
	}, sp
}

func TestLoginSuccess(t *testing.T) {
	o, sp := options(&fakeDir{user: ann}, fakeCamera{}, "", "one two three four")

	u, err := Login(context.Background(), o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != ann.Email {
		t.Fatalf("unexpected user %+v", u)
	}
	if sp.lines[0] != "Welcome Ann. PIN?" || sp.last() != "Logged in." {
		t.Fatalf("unexpected lines %q", sp.lines)
	}
	if turns := o.Chat.Turns(); len(turns) != 1 || turns[0].Text != "* * * *" {
		t.Fatalf("expected the PIN utterance to be logged masked, got %+v", turns)
	}
}

func TestMaskPin(t *testing.T) {
	cases := map[string]string{
		"one two three four": "* * * *",
		"my pin is 1234":     "my pin is ****",
		"oh 12, nine":        "* ** *",
		"cancel":             "cancel",
		"":                   "",
	}
	for in, want := range cases {
		if got := MaskPin(in); got != want {
			t.Fatalf("MaskPin(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestLoginRetriesScan(t *testing.T) {
	dir := &fakeDir{user: ann, miss: 2}
	o, _ := options(dir, fakeCamera{}, "1234")

	if _, err := Login(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.calls != 3 {
		t.Fatalf("expected 3 lookups, got %d", dir.calls)
	}
}

func TestLoginUnknownFace(t *testing.T) {
	o, sp := options(&fakeDir{}, fakeCamera{})

	if _, err := Login(context.Background(), o); !errors.Is(err, ErrUnknownFace) {
		t.Fatalf("expected ErrUnknownFace, got %v", err)
	}
	if sp.last() != "Unknown face. Please enroll first." {
		t.Fatalf("unexpected line %q", sp.last())
	}
}

func TestLoginCameraFailure(t *testing.T) {
	o, _ := options(&fakeDir{user: ann}, fakeCamera{err: errors.New("no device")})

	if _, err := Login(context.Background(), o); !errors.Is(err, ErrUnknownFace) {
		t.Fatalf("expected ErrUnknownFace, got %v", err)
	}
}

func TestLoginWrongPin(t *testing.T) {
	o, sp := options(&fakeDir{user: ann}, fakeCamera{}, "four three two one", "1234")

	if _, err := Login(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.lines[1] != "Wrong PIN." {
		t.Fatalf("unexpected lines %q", sp.lines)
	}
}

func TestLoginTooManyAttempts(t *testing.T) {
	o, sp := options(&fakeDir{user: ann}, fakeCamera{}, "1", "2", "3")
	o.Attempts = 3

	if _, err := Login(context.Background(), o); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if sp.last() != "Too many attempts." {
		t.Fatalf("unexpected line %q", sp.last())
	}
}

func TestLoginCancel(t *testing.T) {
	o, sp := options(&fakeDir{user: ann}, fakeCamera{}, "cancel")

	if _, err := Login(context.Background(), o); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if sp.last() != "Cancelled login." {
		t.Fatalf("unexpected line %q", sp.last())
	}
}

func TestDigits(t *testing.T) {
	cases := map[string]string{
		"1234":               "1234",
		"one two three four": "1234",
		"my pin is 4 5 six":  "456",
		"zero oh nine.":      "009",
		"john phone someone": "",
		"it's 12, then 34":   "1234",
	}
	for in, want := range cases {
		if got := Digits(in); got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
}
