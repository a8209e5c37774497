package ipc

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")

	got := make(chan ControlMessage, 1)
	ln, err := StartServer(path, func(m ControlMessage) (string, error) {
		got <- m
		if m.Cmd == "bogus" {
			return "", errors.New("unknown command")
		}
		return "queued", nil
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ln.Close()

	rep, err := Send(path, ControlMessage{Cmd: CmdSay, Text: "go to inbox"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !rep.OK || rep.Status != "queued" {
		t.Fatalf("unexpected reply %+v", rep)
	}
	if m := <-got; m.Cmd != CmdSay || m.Text != "go to inbox" {
		t.Fatalf("unexpected message %+v", m)
	}

	rep, err = Send(path, ControlMessage{Cmd: "bogus"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if rep.OK || rep.Error != "unknown command" {
		t.Fatalf("unexpected reply %+v", rep)
	}
}

func TestSendWithoutDaemon(t *testing.T) {
	if _, err := Send(filepath.Join(t.TempDir(), "none.sock"), ControlMessage{Cmd: CmdStop}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartServerReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	first, err := StartServer(path, func(ControlMessage) (string, error) { return "", nil })
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first.Close()

	second, err := StartServer(path, func(ControlMessage) (string, error) { return "", nil })
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	second.Close()
}
