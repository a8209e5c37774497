package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

const systemPrompt = `
You are SWAR-NLU, the intent classifier of a voice controlled email client.
Your ONLY job is to convert the user's utterance into a minimal structured JSON.

GENERAL RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Do NOT add explanations.
4. Output ONLY JSON.
5. If the user is dictating an email address ("john dot doe at gmail dot com"),
   write it as "johndoe@gmail.com" in the value param.
6. If the user says "cancel", the intent is "cancel".
7. If the meaning is unclear, the intent is "unknown".
`

// OpenAI backs the remote classifier and the email helpers with the
// chat completions API.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(client openai.Client, model string) *OpenAI {
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}
	return &OpenAI{client: client, model: openai.ChatModel(model)}
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: o.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}

	return content, nil
}

func (o *OpenAI) Infer(ctx context.Context, utterance, schema string) (Intent, error) {
	content, err := o.complete(ctx, systemPrompt+"\n"+schema, utterance)
	if err != nil {
		return Unknown(), err
	}

	log.Debug("Processed", "data", content)

	return ParseReply(content)
}

// Summarize condenses an email body to two sentences.
func (o *OpenAI) Summarize(ctx context.Context, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "No content to summarize.", nil
	}

	content, err := o.complete(ctx,
		"Summarize the following email content in 2 sentences, capturing the main point and any action items. Plain text only.",
		body,
	)
	if err != nil {
		return "", err
	}

	return strings.Join(strings.Fields(content), " "), nil
}

// SuggestReplies proposes up to three short replies to an email.
func (o *OpenAI) SuggestReplies(ctx context.Context, body string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	content, err := o.complete(ctx,
		`Read the email and write 3 short, polite and distinct replies (under 10 words each).
Return them as a JSON list of strings, e.g. ["Yes, sure.", "No thanks.", "I will check."]`,
		body,
	)
	if err != nil {
		return nil, err
	}

	var out []string
	if err := json.Unmarshal([]byte(StripFence(content)), &out); err != nil {
		return nil, fmt.Errorf("unmarshal replies: %w (raw: %s)", err, content)
	}
	if len(out) > 3 {
		out = out[:3]
	}

	return out, nil
}
