package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-memory/core"
)

// DefaultClaudeModel is the reply model used when none is configured.
const DefaultClaudeModel = "claude-sonnet-4-5"

// ClaudeResponder replies with the Anthropic Messages API.
type ClaudeResponder struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeResponder creates a responder over client.
func NewClaudeResponder(client *anthropic.Client, model string, maxTokens int64) *ClaudeResponder {
	if model == "" {
		model = DefaultClaudeModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ClaudeResponder{client: client, model: model, maxTokens: maxTokens}
}

// Respond sends the window and the new message.
func (r *ClaudeResponder) Respond(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages:  claudeMessages(req.History, req.UserMessage),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
	}

	var resp *anthropic.Message
	var err error
	if req.StreamCallback != nil {
		resp, err = r.createMessageStreaming(ctx, params, req.StreamCallback)
	} else {
		resp, err = r.client.Messages.New(ctx, params)
	}
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// claudeMessages converts the window into alternating user/assistant
// messages starting with a user message, as the API requires. Adjacent turns
// from the same role are merged.
func claudeMessages(history []core.Turn, userMessage string) []anthropic.MessageParam {
	turns := append(append([]core.Turn(nil), history...), core.Turn{Role: core.RoleUser, Content: userMessage})

	type merged struct {
		role core.Role
		text string
	}
	var out []merged
	for _, t := range turns {
		if t.Role == core.RoleSystem {
			continue
		}
		if len(out) == 0 && t.Role != core.RoleUser {
			continue // leading assistant turns left behind by archival
		}
		if n := len(out); n > 0 && out[n-1].role == t.Role {
			out[n-1].text += "\n\n" + t.Content
			continue
		}
		out = append(out, merged{role: t.Role, text: t.Content})
	}

	messages := make([]anthropic.MessageParam, 0, len(out))
	for _, m := range out {
		block := anthropic.NewTextBlock(m.text)
		if m.role == core.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}

// createMessageStreaming handles streaming API calls.
func (r *ClaudeResponder) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	stream := r.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream: %w", err)
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				callback(delta.Text, false)
			}
		case anthropic.MessageStopEvent:
			callback("", true)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}

var _ Responder = (*ClaudeResponder)(nil)
