package dialog

import (
	"context"
	"errors"
	"sync"
	"time"

	"swar/internal/mail"
	"swar/internal/nlu"
	"swar/internal/speech"
)

type fakeHandle struct {
	text      string
	remaining int
	done      chan struct{}
	once      sync.Once
	cancelled bool
}

func (h *fakeHandle) Active() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Cancel() error {
	if h.Active() {
		h.cancelled = true
	}
	h.end()
	return nil
}

func (h *fakeHandle) end() {
	h.once.Do(func() { close(h.done) })
}

// fakeChannel scripts speech I/O. Handles for texts accepted by live
// stay active for lifetime interrupt polls; all others end at once.
type fakeChannel struct {
	mu sync.Mutex

	live     func(text string) bool
	lifetime int

	spoken     []string
	handles    []*fakeHandle
	overlapped int

	interrupts []string // "" means silence
	commands   []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{live: func(string) bool { return false }}
}

func (f *fakeChannel) Synthesize(text string) (speech.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, h := range f.handles {
		if h.Active() {
			f.overlapped++
		}
	}

	h := &fakeHandle{text: text, done: make(chan struct{})}
	if f.live(text) && f.lifetime > 0 {
		h.remaining = f.lifetime
	} else {
		h.end()
	}
	f.spoken = append(f.spoken, text)
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeChannel) Capture(_ context.Context, p speech.Profile) (speech.Utterance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p == speech.InterruptProfile {
		for _, h := range f.handles {
			if h.Active() {
				h.remaining--
				if h.remaining <= 0 {
					h.end()
				}
			}
		}
		return pop(&f.interrupts)
	}
	return pop(&f.commands)
}

func pop(q *[]string) (speech.Utterance, error) {
	if len(*q) == 0 {
		return speech.Utterance{}, speech.ErrNoSpeech
	}
	t := (*q)[0]
	*q = (*q)[1:]
	if t == "" {
		return speech.Utterance{}, speech.ErrNoSpeech
	}
	return speech.NewUtterance(t, time.Now()), nil
}

func (f *fakeChannel) said(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.spoken {
		if s == text {
			return true
		}
	}
	return false
}

func (f *fakeChannel) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.spoken) == 0 {
		return ""
	}
	return f.spoken[len(f.spoken)-1]
}

type sentMail struct {
	to, subject, body string
}

type fakeStore struct {
	folders  map[string][]mail.Message
	bodies   map[uint32]string
	listErr  map[string]error
	sendErr  error
	trashErr error

	sent    []sentMail
	trashed []uint32
	listed  []string
}

func newFakeStore(n int) *fakeStore {
	st := &fakeStore{folders: map[string][]mail.Message{}, bodies: map[uint32]string{}}
	for i := 0; i < n; i++ {
		id := uint32(100 + i)
		st.folders[nlu.FolderInbox] = append(st.folders[nlu.FolderInbox], mail.Message{
			ID:      id,
			Sender:  "Ann <ann@example.com>",
			Subject: "Subject " + string(rune('A'+i)),
		})
		st.bodies[id] = "Body of message " + string(rune('A'+i))
	}
	return st
}

func (s *fakeStore) ListRecent(_ context.Context, _ mail.Account, folder string, limit int) ([]mail.Message, error) {
	s.listed = append(s.listed, folder)
	if err := s.listErr[folder]; err != nil {
		return nil, err
	}
	msgs := s.folders[folder]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]mail.Message(nil), msgs...), nil
}

func (s *fakeStore) FetchBody(_ context.Context, _ mail.Account, _ string, id uint32) (string, error) {
	b, ok := s.bodies[id]
	if !ok {
		return "", errors.New("no such message")
	}
	return b, nil
}

func (s *fakeStore) Send(_ context.Context, _ mail.Account, to, subject, body string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentMail{to, subject, body})
	return nil
}

func (s *fakeStore) MoveToTrash(_ context.Context, _ mail.Account, _ string, id uint32) error {
	if s.trashErr != nil {
		return s.trashErr
	}
	s.trashed = append(s.trashed, id)
	return nil
}

type throwingRemote struct {
	calls int
}

func (r *throwingRemote) Infer(context.Context, string, string) (nlu.Intent, error) {
	r.calls++
	panic("remote exploded")
}

type fakeAssistant struct {
	replies []string
}

func (a *fakeAssistant) Summarize(_ context.Context, body string) (string, error) {
	return "Summary: " + body, nil
}

func (a *fakeAssistant) SuggestReplies(context.Context, string) ([]string, error) {
	return a.replies, nil
}
