package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	log "log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
)

// Server holds the mail endpoints shared by every account.
type Server struct {
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
	Timeout  time.Duration
}

// Remote is the IMAP/SMTP backed Store. Each call opens its own
// connection; nothing is retried.
type Remote struct {
	srv Server
}

func NewRemote(srv Server) *Remote {
	if srv.Timeout <= 0 {
		srv.Timeout = 30 * time.Second
	}
	return &Remote{srv: srv}
}

// Mailbox names tried for each folder, in order. Special-use
// attributes win over names when the server advertises them.
var mailboxCandidates = map[string][]string{
	"Inbox":  {"INBOX"},
	"Sent":   {"[Gmail]/Sent Mail", "[Gmail]/Sent", "Sent", "Sent Items"},
	"Drafts": {"[Gmail]/Drafts", "Drafts"},
	"Trash":  {"[Gmail]/Trash", "[Gmail]/Bin", "Trash", "Bin"},
}

var specialUse = map[string]string{
	"Sent":   `\Sent`,
	"Drafts": `\Drafts`,
	"Trash":  `\Trash`,
}

func (r *Remote) connect(ctx context.Context, acct Account) (*client.Client, error) {
	if !acct.Valid() {
		return nil, ErrNoCredentials
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", r.srv.IMAPHost, r.srv.IMAPPort)

	c, err := client.DialTLS(addr, &tls.Config{
		ServerName: r.srv.IMAPHost,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to IMAP server: %w", err)
	}
	c.Timeout = r.srv.Timeout

	if err := c.Login(acct.Address, acct.Password); err != nil {
		c.Logout() //nolint:errcheck
		return nil, fmt.Errorf("login to IMAP server: %w", err)
	}

	log.Debug("Connected to IMAP server", "addr", addr, "account", acct.Address)
	return c, nil
}

func (r *Remote) mailbox(c *client.Client, folder string) (string, error) {
	if folder == "Inbox" {
		return "INBOX", nil
	}

	boxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", boxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range boxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}

	name := pickMailbox(folder, infos)
	if name == "" {
		return "", fmt.Errorf("no mailbox for folder %q", folder)
	}
	return name, nil
}

func pickMailbox(folder string, infos []*imap.MailboxInfo) string {
	if attr, ok := specialUse[folder]; ok {
		for _, m := range infos {
			for _, a := range m.Attributes {
				if strings.EqualFold(a, attr) {
					return m.Name
				}
			}
		}
	}

	names := make(map[string]bool, len(infos))
	for _, m := range infos {
		names[m.Name] = true
	}
	for _, cand := range mailboxCandidates[folder] {
		if names[cand] {
			return cand
		}
	}

	if cands := mailboxCandidates[folder]; len(cands) > 0 {
		return cands[0]
	}
	return ""
}

func (r *Remote) ListRecent(ctx context.Context, acct Account, folder string, limit int) ([]Message, error) {
	c, err := r.connect(ctx, acct)
	if err != nil {
		return nil, err
	}
	defer c.Logout() //nolint:errcheck

	name, err := r.mailbox(c, folder)
	if err != nil {
		return nil, err
	}

	mbox, err := c.Select(name, true)
	if err != nil {
		return nil, fmt.Errorf("select folder: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	start := uint32(1)
	if limit > 0 && mbox.Messages > uint32(limit) {
		start = mbox.Messages - uint32(limit) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(start, mbox.Messages)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		fetched = append(fetched, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	// Newest first.
	sort.Slice(fetched, func(i, j int) bool { return fetched[i].SeqNum > fetched[j].SeqNum })

	out := make([]Message, 0, len(fetched))
	for _, msg := range fetched {
		out = append(out, headerOf(msg))
	}
	return out, nil
}

func headerOf(msg *imap.Message) Message {
	m := Message{ID: msg.Uid}
	if msg.Envelope == nil {
		return m
	}

	m.Subject = msg.Envelope.Subject
	m.Date = msg.Envelope.Date
	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		if from.PersonalName != "" {
			m.Sender = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
		} else {
			m.Sender = from.Address()
		}
	}
	if m.Subject == "" {
		m.Subject = "(no subject)"
	}
	return m
}

func (r *Remote) FetchBody(ctx context.Context, acct Account, folder string, id uint32) (string, error) {
	c, err := r.connect(ctx, acct)
	if err != nil {
		return "", err
	}
	defer c.Logout() //nolint:errcheck

	name, err := r.mailbox(c, folder)
	if err != nil {
		return "", err
	}
	if _, err := c.Select(name, true); err != nil {
		return "", fmt.Errorf("select folder: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		if lit := msg.GetBody(section); lit != nil {
			b, err := io.ReadAll(lit)
			if err != nil {
				log.Error("Error reading literal", "err", err)
				continue
			}
			raw = b
		}
	}
	if err := <-done; err != nil {
		return "", fmt.Errorf("fetch body: %w", err)
	}
	if raw == nil {
		return "", fmt.Errorf("message %d not found", id)
	}

	return parseBody(raw), nil
}

// parseBody prefers the text part; enmime down-converts HTML-only
// mail to text.
func parseBody(raw []byte) string {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		log.Debug("Failed to parse with enmime, using raw body", "err", err)
		return string(raw)
	}
	return strings.TrimSpace(env.Text)
}

func (r *Remote) MoveToTrash(ctx context.Context, acct Account, folder string, id uint32) error {
	c, err := r.connect(ctx, acct)
	if err != nil {
		return err
	}
	defer c.Logout() //nolint:errcheck

	src, err := r.mailbox(c, folder)
	if err != nil {
		return err
	}
	trash, err := r.mailbox(c, "Trash")
	if err != nil {
		return err
	}

	if err := trashMessage(c, src, trash, id); err != nil {
		return err
	}
	log.Info("Moved to trash", "uid", id, "from", src, "to", trash)
	return nil
}

// uidExpunge is UID EXPUNGE from UIDPLUS (RFC 4315).
type uidExpunge struct {
	seqSet *imap.SeqSet
}

func (cmd uidExpunge) Command() *imap.Command {
	return &imap.Command{Name: "UID", Arguments: []interface{}{imap.RawString("EXPUNGE"), cmd.seqSet}}
}

// trashMessage removes exactly one message from src. MOVE is used when
// the server has it, otherwise the message is copied, flagged and
// removed with UID EXPUNGE. Without UIDPLUS a plain EXPUNGE would also
// take messages other clients flagged, so it only runs when the target
// is the sole \Deleted message.
func trashMessage(c *client.Client, src, trash string, id uint32) error {
	if _, err := c.Select(src, false); err != nil {
		return fmt.Errorf("select folder: %w", err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(id)

	if src != trash {
		ok, err := c.Support("MOVE")
		if err != nil {
			return fmt.Errorf("capabilities: %w", err)
		}
		if ok {
			if err := c.UidMove(seqSet, trash); err != nil {
				return fmt.Errorf("move to trash: %w", err)
			}
			return nil
		}

		if err := c.UidCopy(seqSet, trash); err != nil {
			return fmt.Errorf("copy to trash: %w", err)
		}
	}

	flags := []interface{}{imap.DeletedFlag}
	if err := c.UidStore(seqSet, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("flag deleted: %w", err)
	}

	ok, err := c.Support("UIDPLUS")
	if err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	if ok {
		status, err := c.Execute(uidExpunge{seqSet: seqSet}, nil)
		if err == nil {
			err = status.Err()
		}
		if err != nil {
			return fmt.Errorf("uid expunge: %w", err)
		}
		return nil
	}

	crit := imap.NewSearchCriteria()
	crit.WithFlags = []string{imap.DeletedFlag}
	flagged, err := c.UidSearch(crit)
	if err != nil {
		return fmt.Errorf("search deleted: %w", err)
	}
	if othersFlagged(flagged, id) {
		log.Warn("Other messages are flagged deleted, skipping expunge", "folder", src, "uid", id)
		return nil
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

func othersFlagged(flagged []uint32, id uint32) bool {
	return slices.ContainsFunc(flagged, func(uid uint32) bool { return uid != id })
}
