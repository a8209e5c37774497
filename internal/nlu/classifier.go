package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"
)

// Folder names as they appear in navigation intents.
const (
	FolderInbox    = "Inbox"
	FolderSent     = "Sent"
	FolderDrafts   = "Drafts"
	FolderTrash    = "Trash"
	FolderSettings = "Settings"
)

// Remote is the semantic tier, consulted only for utterances the rule
// table could not place.
type Remote interface {
	Infer(ctx context.Context, utterance, schema string) (Intent, error)
}

type Classifier struct {
	remote Remote
}

// NewClassifier builds a two-stage classifier. remote may be nil, in
// which case only the rules run.
func NewClassifier(remote Remote) *Classifier {
	return &Classifier{remote: remote}
}

// Classify never fails: remote errors and bad replies degrade to the
// rule result.
func (c *Classifier) Classify(ctx context.Context, text string) Intent {
	fast := Match(text)
	if fast.Kind != KindUnknown {
		log.Debug("NLU fast path", "intent", fast.Kind, "params", fast.Params)
		return fast
	}
	if c.remote == nil {
		return fast
	}

	in, err := c.infer(ctx, strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		log.Warn("Remote classifier failed", "err", err)
		return fast
	}

	log.Debug("NLU remote", "intent", in.Kind, "params", in.Params)
	return in
}

func (c *Classifier) infer(ctx context.Context, text string) (in Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote classifier panic: %v", r)
		}
	}()

	in, err = c.remote.Infer(ctx, text, Schema)
	if err != nil {
		return Unknown(), err
	}
	return in.normalize(), nil
}

// ParseReply decodes a remote classifier reply, tolerating a markdown
// code fence around the JSON.
func ParseReply(raw string) (Intent, error) {
	body := StripFence(raw)
	if body == "" {
		return Unknown(), fmt.Errorf("empty reply")
	}

	var in Intent
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return Unknown(), fmt.Errorf("unmarshal intent: %w (raw: %s)", err, raw)
	}
	return in.normalize(), nil
}

// StripFence removes a leading ```lang line and a trailing ``` line.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Schema enumerates the intents the remote classifier may return.
const Schema = `Valid intents:
- navigation (params: folder_name [Inbox, Sent, Trash, Drafts, Settings])
- open_email (params: index [integer 0-based])
- read_content (no params)
- compose_start (no params)
- compose_action (params: field [recipient, subject, message], value [string, an email address must be written as name@domain])
- confirmation (params: value [yes, no])
- cancel (no params)
- stop (no params)
- logout (no params)
- delete_email (params: index [integer 0-based] or target ["current"])
- summarize_email (params: index [integer 0-based] or target ["current"])
- reply_with_suggestion (params: index [integer 0-based, 0 to 2])
- unknown (no params)

Spoken numbers are one-based: "email two" is index 1.
Reply with a single JSON object: {"intent": "<name>", "params": {...}}`
