// Package ui streams session snapshots to a websocket hub for display.
package ui

import (
	"context"
	"encoding/json"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"swar/internal/dialog"
)

type Event struct {
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data dialog.Snapshot `json:"data"`
}

// Feed is a dialog.Publisher. Publish never blocks: only the newest
// pending snapshot is kept, and a writer goroutine started by Run
// delivers it, dialing and redialing the hub as needed.
type Feed struct {
	url     string
	reconn  time.Duration
	timeout time.Duration
	pending chan []byte
}

func NewFeed(url string, reconn time.Duration) *Feed {
	if reconn <= 0 {
		reconn = 2 * time.Second
	}
	return &Feed{
		url:     url,
		reconn:  reconn,
		timeout: 5 * time.Second,
		pending: make(chan []byte, 1),
	}
}

func (f *Feed) Publish(s dialog.Snapshot) {
	payload, err := json.Marshal(Event{Type: "snapshot", At: time.Now(), Data: s})
	if err != nil {
		log.Error("Failed to marshal snapshot", "err", err)
		return
	}

	for {
		select {
		case f.pending <- payload:
			return
		default:
		}
		// Drop the stale one.
		select {
		case <-f.pending:
		default:
		}
	}
}

// Run delivers snapshots until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	var conn *ws.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		var payload []byte
		select {
		case <-ctx.Done():
			return
		case payload = <-f.pending:
		}

		for {
			if conn == nil {
				c, err := f.dial(ctx)
				if err != nil {
					log.Debug("UI hub unreachable", "url", f.url, "err", err)
					if !sleep(ctx, f.reconn) {
						return
					}
					// A newer snapshot may have arrived meanwhile.
					select {
					case payload = <-f.pending:
					default:
					}
					continue
				}
				conn = c
				log.Info("Connected to UI hub", "url", f.url)
			}

			conn.SetWriteDeadline(time.Now().Add(f.timeout))
			if err := conn.WriteMessage(ws.TextMessage, payload); err != nil {
				log.Warn("UI hub write failed", "err", err)
				conn.Close()
				conn = nil
				continue
			}
			break
		}
	}
}

func (f *Feed) dial(ctx context.Context) (*ws.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	conn, _, err := ws.DefaultDialer.DialContext(ctx, f.url, nil)
	return conn, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
