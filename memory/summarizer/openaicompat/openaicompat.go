// Package openaicompat summarizes archived turns through any
// OpenAI-compatible chat completions endpoint, such as a local llama.cpp
// server.
package openaicompat

import (
	"context"
	"errors"
	"fmt"

	"github.com/kataras/golog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/summarizer"
)

const (
	DefaultBaseURL = "http://localhost:7777/v1"
	DefaultModel   = "Vexa"
)

// Config configures the summarizer. Local servers ignore the API key.
type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Summarizer calls CreateChatCompletion with the archivist prompt.
type Summarizer struct {
	client *openai.Client
	model  string
}

// New creates a summarizer.
func New(cfg Config) *Summarizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return NewWithClient(openai.NewClientWithConfig(config), cfg.Model)
}

// NewWithClient shares an existing client.
func NewWithClient(client *openai.Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

// Summarize sends the batch transcript and parses the reply.
func (s *Summarizer) Summarize(ctx context.Context, turns []core.Turn) (memory.Summary, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizer.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: summarizer.BuildPrompt(turns)},
		},
		Temperature: summarizer.Temperature,
	})
	if err != nil {
		return memory.Summary{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return memory.Summary{}, errors.New("chat completion returned no choices")
	}

	golog.Debugf("[SUMMARY] %s summarized %d turns (%d tokens)", s.model, len(turns), resp.Usage.TotalTokens)
	return summarizer.ParseResponse(resp.Choices[0].Message.Content), nil
}

var _ memory.Summarizer = (*Summarizer)(nil)
