package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	log "log/slog"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// buildMessage renders a plain text message with enmime.
func buildMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	rcpt, err := netmail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	part, err := enmime.Builder().
		From("", from).
		To(rcpt.Name, rcpt.Address).
		Subject(subject).
		Date(date).
		Text([]byte(body)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Send delivers one message. Port 465 speaks implicit TLS, anything
// else is upgraded with STARTTLS.
func (r *Remote) Send(ctx context.Context, acct Account, to, subject, body string) error {
	if !acct.Valid() {
		return ErrNoCredentials
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(acct.Address, strings.TrimSpace(to), subject, body, time.Now())
	if err != nil {
		return err
	}

	c, err := r.dialSMTP(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	auth := smtp.PlainAuth("", acct.Address, acct.Password, r.srv.SMTPHost)
	return deliver(c, auth, acct.Address, strings.TrimSpace(to), msg)
}

// deliver runs one mail transaction. The message is queued once the
// server accepts DATA, so a failing QUIT is only logged and never
// reported as a send failure.
func deliver(c *smtp.Client, auth smtp.Auth, from, to string, msg []byte) error {
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient %s: %w", to, err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data command: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	log.Info("Mail sent", "to", to, "bytes", len(msg))
	if err := c.Quit(); err != nil {
		log.Warn("SMTP quit failed after delivery", "to", to, "err", err)
	}
	return nil
}

func (r *Remote) dialSMTP(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", r.srv.SMTPHost, r.srv.SMTPPort)
	tlsCfg := &tls.Config{ServerName: r.srv.SMTPHost, MinVersion: tls.VersionTLS12}
	dialer := &net.Dialer{Timeout: r.srv.Timeout}

	if r.srv.SMTPPort == 465 {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connect to SMTP server: %w", err)
		}
		c, err := smtp.NewClient(conn, r.srv.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create SMTP client: %w", err)
		}
		return c, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to SMTP server: %w", err)
	}
	c, err := smtp.NewClient(conn, r.srv.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create SMTP client: %w", err)
	}
	if err := c.StartTLS(tlsCfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("start TLS: %w", err)
	}
	return c, nil
}
