// Package claude summarizes archived turns with the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kataras/golog"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/summarizer"
)

const (
	DefaultModel     = "claude-haiku-4-5"
	DefaultMaxTokens = 512
)

// Config configures the summarizer.
type Config struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// Summarizer asks Claude for a SUMMARY/TOPIC/POINTS reply.
type Summarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a summarizer with its own client. Retries are left to the
// archiver's fallback.
func New(cfg Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude summarizer: API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewWithClient(&client, cfg.Model, cfg.MaxTokens), nil
}

// NewWithClient shares an existing client.
func NewWithClient(client *anthropic.Client, model string, maxTokens int64) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Summarizer{client: client, model: model, maxTokens: maxTokens}
}

// Summarize sends the batch transcript and parses the reply.
func (s *Summarizer) Summarize(ctx context.Context, turns []core.Turn) (memory.Summary, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(summarizer.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summarizer.BuildPrompt(turns))),
		},
		System: []anthropic.TextBlockParam{
			{Text: summarizer.SystemPrompt},
		},
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return memory.Summary{}, fmt.Errorf("claude api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	golog.Debugf("[SUMMARY] Claude summarized %d turns (%d output tokens)", len(turns), resp.Usage.OutputTokens)
	return summarizer.ParseResponse(text.String()), nil
}

var _ memory.Summarizer = (*Summarizer)(nil)
