package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

// ErrNoCredentials means the account has no mailbox login configured.
var ErrNoCredentials = errors.New("missing mail credentials")

// Account holds the mailbox login of the signed-in user.
type Account struct {
	Address  string
	Password string
}

func (a Account) Valid() bool {
	return strings.TrimSpace(a.Address) != "" && a.Password != ""
}

// Message is one listed email. Body is empty until fetched.
type Message struct {
	ID      uint32    `json:"id"`
	Sender  string    `json:"sender"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Body    string    `json:"-"`
}

// SenderAddress extracts the bare address from the From header.
func (m Message) SenderAddress() string {
	if a, err := mail.ParseAddress(m.Sender); err == nil {
		return a.Address
	}
	return strings.TrimSpace(m.Sender)
}

// Store is the remote mailbox. Folder names are the display names
// (Inbox, Sent, Drafts, Trash).
type Store interface {
	ListRecent(ctx context.Context, acct Account, folder string, limit int) ([]Message, error)
	FetchBody(ctx context.Context, acct Account, folder string, id uint32) (string, error)
	Send(ctx context.Context, acct Account, to, subject, body string) error
	MoveToTrash(ctx context.Context, acct Account, folder string, id uint32) error
}
