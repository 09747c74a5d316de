package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/core"
)

// OpenAIResponder replies through an OpenAI-compatible chat endpoint, such
// as a local llama.cpp server.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAIResponder creates a responder over client.
func NewOpenAIResponder(client *openai.Client, model string) *OpenAIResponder {
	return &OpenAIResponder{client: client, model: model}
}

// Respond sends the system prompt, the window and the new message.
func (r *OpenAIResponder) Respond(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: openAIMessages(req),
	}

	if req.StreamCallback != nil {
		return r.stream(ctx, chatReq, req.StreamCallback)
	}

	resp, err := r.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *OpenAIResponder) stream(ctx context.Context, chatReq openai.ChatCompletionRequest, callback func(string, bool)) (string, error) {
	chatReq.Stream = true
	stream, err := r.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai stream failed: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			callback("", true)
			return text.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("openai stream failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		text.WriteString(chunk)
		callback(chunk, false)
	}
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserMessage})
}

var _ Responder = (*OpenAIResponder)(nil)
