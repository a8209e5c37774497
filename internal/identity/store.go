package identity

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"image"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"swar/internal/mail"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// DefaultThreshold is the lowest face score accepted as a match.
const DefaultThreshold = 0.4

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT UNIQUE NOT NULL,
	pin           TEXT NOT NULL,
	face          BLOB,
	mail_address  TEXT NOT NULL DEFAULT '',
	mail_password TEXT NOT NULL DEFAULT ''
);
`

// User is one enrolled person.
type User struct {
	ID    int64
	Name  string
	Email string
	PIN   string
	Face  []byte
	Mail  mail.Account
}

// Directory is the SQLite backed user table.
type Directory struct {
	db        *sql.DB
	matcher   Matcher
	threshold float64
}

// Open creates the database file and schema when missing.
func Open(path string, m Matcher, threshold float64) (*Directory, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if m == nil {
		m = HistogramMatcher{}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	log.Info("User directory opened", "path", path)
	return &Directory{db: db, matcher: m, threshold: threshold}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

// Add enrolls a user. The face frame is reduced to a signature before
// it is stored.
func (d *Directory) Add(ctx context.Context, u User, face image.Image) (int64, error) {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return 0, errors.New("name and email are required")
	}
	if !validPin(u.PIN) {
		return 0, errors.New("PIN must be digits only")
	}

	var sig any
	if face != nil {
		b, err := d.matcher.Signature(face)
		if err != nil {
			return 0, fmt.Errorf("face signature: %w", err)
		}
		sig = b
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (name, email, pin, face, mail_address, mail_password) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PIN, sig, u.Mail.Address, u.Mail.Password)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// UpdateCredentials replaces the mailbox login of the user with email.
func (d *Directory) UpdateCredentials(ctx context.Context, email string, acct mail.Account) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET mail_address = ?, mail_password = ? WHERE email = ?`,
		acct.Address, acct.Password, email)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Directory) ByEmail(ctx context.Context, email string) (User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, email, pin, face, mail_address, mail_password FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// LookupByFace returns the best scoring user over the threshold along
// with the score.
func (d *Directory) LookupByFace(ctx context.Context, frame image.Image) (User, float64, error) {
	probe, err := d.matcher.Signature(frame)
	if err != nil {
		return User{}, 0, fmt.Errorf("face signature: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, email, pin, face, mail_address, mail_password FROM users WHERE face IS NOT NULL`)
	if err != nil {
		return User{}, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var (
		best  User
		score float64
		found bool
	)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return User{}, 0, err
		}
		s, err := d.matcher.Score(u.Face, probe)
		if err != nil {
			log.Warn("Skipping unreadable face signature", "user", u.Email, "err", err)
			continue
		}
		if !found || s > score {
			best, score, found = u, s, true
		}
	}
	if err := rows.Err(); err != nil {
		return User{}, 0, fmt.Errorf("iterate users: %w", err)
	}

	if !found || score <= d.threshold {
		log.Debug("No face match", "best", score)
		return User{}, score, ErrNotFound
	}
	log.Debug("Face matched", "user", best.Email, "score", score)
	return best, score, nil
}

// VerifyPin compares the digits of attempt with the stored PIN.
func VerifyPin(u User, attempt string) bool {
	if u.PIN == "" || attempt == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.PIN), []byte(attempt)) == 1
}

func validPin(pin string) bool {
	if pin == "" {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PIN, &u.Face, &u.Mail.Address, &u.Mail.Password); err != nil {
		return User{}, err
	}
	return u, nil
}
