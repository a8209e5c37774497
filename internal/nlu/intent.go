package nlu

import (
	"strconv"
	"strings"
)

type Kind string

const (
	KindNavigation Kind = "navigation"
	KindOpenEmail  Kind = "open_email"
	KindRead       Kind = "read_content"
	KindCompose    Kind = "compose_start"
	KindComposeSet Kind = "compose_action"
	KindConfirm    Kind = "confirmation"
	KindCancel     Kind = "cancel"
	KindStop       Kind = "stop"
	KindLogout     Kind = "logout"
	KindDelete     Kind = "delete_email"
	KindSummarize  Kind = "summarize_email"
	KindReply      Kind = "reply_with_suggestion"
	KindUnknown    Kind = "unknown"
)

// Parameter names shared with the remote classifier schema.
const (
	ParamFolder = "folder_name"
	ParamIndex  = "index"
	ParamValue  = "value"
	ParamTarget = "target"
	ParamField  = "field"
)

// Intent is the structured reading of one utterance. Unknown never
// carries parameters.
type Intent struct {
	Kind   Kind           `json:"intent"`
	Params map[string]any `json:"params,omitempty"`
}

func Unknown() Intent {
	return Intent{Kind: KindUnknown}
}

func newIntent(kind Kind, kv ...any) Intent {
	in := Intent{Kind: kind}
	for i := 0; i+1 < len(kv); i += 2 {
		if in.Params == nil {
			in.Params = make(map[string]any, len(kv)/2)
		}
		in.Params[kv[i].(string)] = kv[i+1]
	}
	return in
}

// Str returns a string parameter, trimmed. Non-string values are
// rendered with their default formatting.
func (in Intent) Str(key string) string {
	v, ok := in.Params[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// Index returns a zero-based index parameter. JSON numbers from the
// remote classifier arrive as float64, rules produce int.
func (in Intent) Index() (int, bool) {
	v, ok := in.Params[ParamIndex]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Affirmative reports a confirmation intent carrying "yes".
func (in Intent) Affirmative() bool {
	return in.Kind == KindConfirm && strings.EqualFold(in.Str(ParamValue), "yes")
}

// Negative reports a confirmation intent carrying "no".
func (in Intent) Negative() bool {
	return in.Kind == KindConfirm && strings.EqualFold(in.Str(ParamValue), "no")
}

// normalize fixes up intents that came from outside the rule table.
func (in Intent) normalize() Intent {
	in.Kind = Kind(strings.ToLower(strings.TrimSpace(string(in.Kind))))
	if in.Kind == "" || in.Kind == KindUnknown {
		return Unknown()
	}
	if len(in.Params) == 0 {
		in.Params = nil
	}
	return in
}
