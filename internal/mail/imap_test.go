package mail

import (
	"bytes"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
)

// moveBackend gives the in-memory mailboxes MOVE support.
type moveBackend struct {
	*memory.Backend
}

func (b moveBackend) Login(ci *imap.ConnInfo, username, password string) (backend.User, error) {
	u, err := b.Backend.Login(ci, username, password)
	if err != nil {
		return nil, err
	}
	return moveUser{u}, nil
}

type moveUser struct {
	backend.User
}

func (u moveUser) GetMailbox(name string) (backend.Mailbox, error) {
	mb, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return moveMailbox{mb.(*memory.Mailbox)}, nil
}

type moveMailbox struct {
	*memory.Mailbox
}

func (m moveMailbox) MoveMessages(uid bool, seqSet *imap.SeqSet, dest string) error {
	if err := m.CopyMessages(uid, seqSet, dest); err != nil {
		return err
	}
	var kept []*memory.Message
	for i, msg := range m.Messages {
		id := uint32(i + 1)
		if uid {
			id = msg.Uid
		}
		if !seqSet.Contains(id) {
			kept = append(kept, msg)
		}
	}
	m.Messages = kept
	return nil
}

// newIMAPClient serves INBOX with uids 6, 7 and 8 and an empty Trash.
func newIMAPClient(t *testing.T) *client.Client {
	t.Helper()

	s := server.New(moveBackend{memory.New()})
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { s.Close() })

	c, err := client.Dial(ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Logout() }) //nolint:errcheck

	if err := c.Login("username", "password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Create("Trash"); err != nil {
		t.Fatalf("create trash: %v", err)
	}
	for _, subject := range []string{"second", "third"} {
		msg := bytes.NewBufferString("Subject: " + subject + "\r\n\r\nhello\r\n")
		if err := c.Append("INBOX", nil, time.Now(), msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return c
}

func listUIDs(t *testing.T, c *client.Client, mbox string) []uint32 {
	t.Helper()

	if _, err := c.Select(mbox, true); err != nil {
		t.Fatalf("select %s: %v", mbox, err)
	}
	uids, err := c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		t.Fatalf("search %s: %v", mbox, err)
	}
	return uids
}

func TestTrashMessageMovesOnlyTarget(t *testing.T) {
	c := newIMAPClient(t)

	// Flagged by some other client, must survive.
	if _, err := c.Select("INBOX", false); err != nil {
		t.Fatalf("select: %v", err)
	}
	other := new(imap.SeqSet)
	other.AddNum(6)
	if err := c.UidStore(other, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil); err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := trashMessage(c, "INBOX", "Trash", 7); err != nil {
		t.Fatalf("trash: %v", err)
	}

	if got := listUIDs(t, c, "INBOX"); !slices.Equal(got, []uint32{6, 8}) {
		t.Fatalf("expected inbox uids [6 8], got %v", got)
	}
	if got := listUIDs(t, c, "Trash"); len(got) != 1 {
		t.Fatalf("expected one message in trash, got %v", got)
	}
}

func TestOthersFlagged(t *testing.T) {
	cases := []struct {
		flagged []uint32
		want    bool
	}{
		{nil, false},
		{[]uint32{7}, false},
		{[]uint32{6, 7}, true},
		{[]uint32{8}, true},
	}
	for _, tc := range cases {
		if got := othersFlagged(tc.flagged, 7); got != tc.want {
			t.Fatalf("othersFlagged(%v, 7): expected %v, got %v", tc.flagged, tc.want, got)
		}
	}
}
