package dialog

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"swar/internal/mail"
	"swar/internal/nlu"
	"swar/internal/speech"
)

// Classifier turns an utterance into an intent. It must not fail.
type Classifier interface {
	Classify(ctx context.Context, text string) nlu.Intent
}

// Assistant is the optional AI helper for summaries and replies.
type Assistant interface {
	Summarize(ctx context.Context, body string) (string, error)
	SuggestReplies(ctx context.Context, body string) ([]string, error)
}

// Publisher receives a snapshot after every visible change.
type Publisher interface {
	Publish(Snapshot)
}

type Snapshot struct {
	User     string         `json:"user"`
	Folder   string         `json:"folder"`
	Mode     Mode           `json:"mode"`
	Stage    Stage          `json:"stage,omitempty"`
	Draft    Draft          `json:"draft"`
	Emails   []mail.Message `json:"emails"`
	Selected int            `json:"selected"`
	Chat     []Turn         `json:"chat"`
}

type Options struct {
	User       string
	Account    mail.Account
	FetchLimit int
	Assistant  Assistant // may be nil
	Publisher  Publisher // may be nil
}

// Session is the per-login dialog context. It is driven from a single
// goroutine; only Narrator.Stop may be called from elsewhere.
type Session struct {
	classifier Classifier
	narrator   *Narrator
	listener   speech.Listener
	store      mail.Store
	chat       *ChatLog
	opts       Options

	folder   string
	fetched  string
	emails   []mail.Message
	selected int
	mode     Mode
	stage    Stage
	draft    Draft
	position int
	replies  []string
	ended    bool
}

func NewSession(c Classifier, ch speech.Channel, store mail.Store, opts Options) *Session {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 10
	}
	chat := NewChatLog(ChatLogSize)
	s := &Session{
		classifier: c,
		narrator:   NewNarrator(ch, chat),
		listener:   ch,
		store:      store,
		chat:       chat,
		opts:       opts,
		folder:     nlu.FolderInbox,
		selected:   -1,
		stage:      StageInit,
	}
	s.narrator.OnChange(s.publish)
	return s
}

func (s *Session) Narrator() *Narrator { return s.narrator }

func (s *Session) Chat() *ChatLog { return s.chat }

// Ended reports whether the user logged out.
func (s *Session) Ended() bool { return s.ended }

func (s *Session) State() State {
	return State{
		Mode:     s.mode,
		Stage:    s.stage,
		Draft:    s.draft,
		Listed:   len(s.emails),
		Selected: s.selected,
	}
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		User:     s.opts.User,
		Folder:   s.folder,
		Mode:     s.mode,
		Stage:    s.stageIfComposing(),
		Draft:    s.draft,
		Emails:   append([]mail.Message(nil), s.emails...),
		Selected: s.selected,
		Chat:     s.chat.Turns(),
	}
}

func (s *Session) stageIfComposing() Stage {
	if s.mode == Composing {
		return s.stage
	}
	return ""
}

func (s *Session) publish() {
	if s.opts.Publisher != nil {
		s.opts.Publisher.Publish(s.Snapshot())
	}
}

// Run drives turns until logout or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.say(ctx, fmt.Sprintf("Hello %s. Say a command.", s.opts.User))

	for !s.ended {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Turn(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// Turn performs one capture and handles it. A capture timeout is not
// an error.
func (s *Session) Turn(ctx context.Context) error {
	s.refresh(ctx)
	s.prompt(ctx)

	u, err := s.listener.Capture(ctx, speech.CommandProfile)
	if errors.Is(err, speech.ErrNoSpeech) {
		return nil
	}
	if err != nil {
		log.Warn("Capture failed", "err", err)
		return err
	}
	if u.Empty() {
		return nil
	}

	s.HandleUtterance(ctx, u)
	return nil
}

// prompt speaks the wizard's opening question.
func (s *Session) prompt(ctx context.Context) {
	if s.mode != Composing || s.stage != StageInit {
		return
	}
	st := Begin(s.draft)
	s.stage, s.draft = st.Stage, st.Draft
	s.say(ctx, st.Prompt)
}

// refresh lists the current folder when it changed since the last
// fetch. Settings has no listing and compose leaves the list alone.
func (s *Session) refresh(ctx context.Context) {
	if s.mode == Composing || s.folder == nlu.FolderSettings || s.fetched == s.folder {
		return
	}
	s.fetched = s.folder

	if !s.opts.Account.Valid() {
		s.emails = nil
		s.publish()
		return
	}

	msgs, err := s.store.ListRecent(ctx, s.opts.Account, s.folder, s.opts.FetchLimit)
	if err != nil {
		log.Error("Failed to list folder", "folder", s.folder, "err", err)
		s.emails = nil
		s.selected = -1
		s.publish()
		s.say(ctx, "Failed to fetch "+s.folder+".")
		return
	}

	s.emails = msgs
	log.Info("Fetched folder", "folder", s.folder, "count", len(msgs))
	s.publish()
}

// HandleUtterance classifies, routes and executes one user turn.
func (s *Session) HandleUtterance(ctx context.Context, u speech.Utterance) {
	s.chat.Append(SpeakerUser, u.Text)
	s.publish()

	s.dispatch(ctx, u)
}

func (s *Session) dispatch(ctx context.Context, u speech.Utterance) {
	in := s.classifier.Classify(ctx, u.Text)
	act := Route(in, u.Text, s.State())

	log.Info("Turn", "text", u.Text, "intent", in.Kind, "action", act.Kind, "mode", s.mode)

	s.execute(ctx, act)
}

func (s *Session) execute(ctx context.Context, act Action) {
	switch act.Kind {
	case Navigate:
		s.leaveCompose()
		s.switchFolder(act.Folder)
		s.say(ctx, "Opening "+act.Folder)
		if act.Folder == nlu.FolderSettings {
			s.say(ctx, s.settingsText())
		}

	case OpenEmail:
		s.leaveCompose()
		s.selected = act.Index
		s.mode = Reading
		s.position = 0
		s.replies = nil
		s.say(ctx, fmt.Sprintf("Opening email %d", act.Index+1))
		s.readCurrent(ctx)

	case ReadCurrent:
		s.mode = Reading
		s.readCurrent(ctx)

	case StartCompose:
		s.mode = Composing
		s.stage = StageInit
		s.draft = Draft{}
		s.say(ctx, "Starting Composer.")

	case WizardAdvance:
		st := Advance(s.stage, s.draft, act.Intent, act.Input)
		if st.Send {
			s.send(ctx)
			return
		}
		if st.Exit {
			s.leaveCompose()
			s.mode = s.modeAfterCompose()
		} else {
			s.stage, s.draft = st.Stage, st.Draft
		}
		s.say(ctx, st.Prompt)

	case Send:
		s.send(ctx)

	case Delete:
		s.delete(ctx, act.Index)

	case Logout:
		s.narrator.Stop()
		s.leaveCompose()
		s.say(ctx, "Logged out.")
		s.ended = true

	case StopNarration:
		s.narrator.Stop()
		s.say(ctx, "Stopped.")

	case Summarize:
		s.summarize(ctx, act.Index)

	case Reply:
		s.reply(ctx, act.Index)

	default:
		fb := act.Feedback
		if fb == "" {
			fb = feedbackUnknown
		}
		s.say(ctx, fb)
	}
}

// switchFolder drops the old listing. Indices and UIDs only make sense
// within the folder they were listed from.
func (s *Session) switchFolder(folder string) {
	s.folder = folder
	s.fetched = ""
	s.emails = nil
	s.selected = -1
	s.replies = nil
	s.position = 0
	s.mode = Idle
}

// leaveCompose abandons any draft in progress.
func (s *Session) leaveCompose() {
	if s.mode == Composing {
		log.Debug("Leaving composer", "stage", s.stage)
	}
	s.mode = Idle
	s.stage = StageInit
	s.draft = Draft{}
}

func (s *Session) modeAfterCompose() Mode {
	if s.State().HasOpen() {
		return Reading
	}
	return Idle
}

func (s *Session) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := s.narrator.Say(ctx, text); err != nil && ctx.Err() == nil {
		log.Warn("Failed to speak", "err", err)
	}
}

// body returns the message body, fetching and caching it on first use.
func (s *Session) body(ctx context.Context, i int) (string, error) {
	m := &s.emails[i]
	if m.Body != "" {
		return m.Body, nil
	}
	b, err := s.store.FetchBody(ctx, s.opts.Account, s.folder, m.ID)
	if err != nil {
		return "", err
	}
	m.Body = b
	return b, nil
}

func (s *Session) readCurrent(ctx context.Context) {
	if !s.State().HasOpen() {
		s.say(ctx, feedbackNothingOpen)
		return
	}
	m := s.emails[s.selected]

	body, err := s.body(ctx, s.selected)
	if err != nil {
		log.Error("Failed to fetch body", "id", m.ID, "err", err)
		s.say(ctx, "Failed to download the email.")
		return
	}

	text := fmt.Sprintf("From: %s. Subject: %s. Message: %s", m.Sender, m.Subject, strings.Join(strings.Fields(body), " "))
	out, err := s.narrator.SpeakAndListen(ctx, text)
	if err != nil && ctx.Err() == nil {
		log.Warn("Narration failed", "err", err)
	}
	s.position = len([]rune(strings.TrimSuffix(out.Shown, ellipsis)))

	if out.Interrupted && ctx.Err() == nil {
		s.dispatch(ctx, out.By)
	}
}

func (s *Session) send(ctx context.Context) {
	if !s.opts.Account.Valid() {
		s.say(ctx, "Error. Missing mail settings.")
		return
	}
	if strings.TrimSpace(s.draft.To) == "" {
		s.say(ctx, "Error. No recipient.")
		return
	}

	s.say(ctx, "Sending email...")
	if err := s.store.Send(ctx, s.opts.Account, s.draft.To, s.draft.Subject, s.draft.Body); err != nil {
		log.Error("Failed to send", "to", s.draft.To, "err", err)
		s.stage = StageConfirm
		s.say(ctx, "Failed to send. Check credentials.")
		return
	}

	log.Info("Sent", "to", s.draft.To)
	s.leaveCompose()
	s.switchFolder(nlu.FolderSent)
	s.say(ctx, "Sent successfully! Opening Sent folder.")
}

func (s *Session) delete(ctx context.Context, i int) {
	m := s.emails[i]
	if err := s.store.MoveToTrash(ctx, s.opts.Account, s.folder, m.ID); err != nil {
		log.Error("Failed to delete", "id", m.ID, "folder", s.folder, "err", err)
		s.say(ctx, "Failed to delete.")
		return
	}

	s.switchFolder(nlu.FolderTrash)
	s.say(ctx, fmt.Sprintf("Deleted email %d. Opening Trash.", i+1))
}

func (s *Session) summarize(ctx context.Context, i int) {
	if s.opts.Assistant == nil {
		s.say(ctx, "AI key missing. Cannot summarize.")
		return
	}

	body, err := s.body(ctx, i)
	if err != nil {
		log.Error("Failed to fetch body", "err", err)
		s.say(ctx, "Failed to download the email.")
		return
	}

	sum, err := s.opts.Assistant.Summarize(ctx, body)
	if err != nil {
		log.Error("Failed to summarize", "err", err)
		s.say(ctx, "Failed to generate summary.")
		return
	}

	out, err := s.narrator.SpeakAndListen(ctx, sum)
	if err != nil && ctx.Err() == nil {
		log.Warn("Narration failed", "err", err)
	}
	if out.Interrupted && ctx.Err() == nil {
		s.dispatch(ctx, out.By)
	}
}

// reply prefills a draft with suggestion i and jumps to confirm.
func (s *Session) reply(ctx context.Context, i int) {
	if s.opts.Assistant == nil {
		s.say(ctx, "AI key missing. Cannot suggest replies.")
		return
	}

	if s.replies == nil {
		body, err := s.body(ctx, s.selected)
		if err != nil {
			log.Error("Failed to fetch body", "err", err)
			s.say(ctx, "Failed to download the email.")
			return
		}
		replies, err := s.opts.Assistant.SuggestReplies(ctx, body)
		if err != nil {
			log.Error("Failed to suggest replies", "err", err)
			s.say(ctx, "Failed to suggest replies.")
			return
		}
		s.replies = replies
	}

	if i < 0 || i >= len(s.replies) {
		s.say(ctx, "Invalid option.")
		return
	}

	m := s.emails[s.selected]
	subject := m.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	s.mode = Composing
	s.stage = StageConfirm
	s.draft = Draft{To: m.SenderAddress(), Subject: subject, Body: s.replies[i]}
	s.say(ctx, fmt.Sprintf("Replying with: %s. Say 'Yes' to send.", s.replies[i]))
}

func (s *Session) settingsText() string {
	if s.opts.Account.Address == "" {
		return "No mail account is configured."
	}
	return "Signed in as " + s.opts.Account.Address + "."
}
