// Package openai embeds text through an OpenAI-compatible /embeddings
// endpoint (OpenAI, Ollama, LM Studio, vLLM).
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/kataras/golog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultModel is text-embedding-3-small.
const DefaultModel = string(openai.SmallEmbedding3)

// DefaultDimensions is the vector size of DefaultModel.
const DefaultDimensions = 1536

// Config configures the embedder.
type Config struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Embedder calls the embeddings API once per text.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
	// requested is sent as the request's dimensions; zero leaves the
	// model at its native size.
	requested int
}

// New creates an embedder. Local servers accept any API key, so an empty
// key is only rejected when no base URL is set.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai embedder: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	requested := cfg.Dimensions
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	golog.Infof("[EMBED] OpenAI-compatible embedder: model=%s, dims=%d", cfg.Model, cfg.Dimensions)
	return &Embedder{
		client:    openai.NewClientWithConfig(config),
		model:     openai.EmbeddingModel(cfg.Model),
		dims:      cfg.Dimensions,
		requested: requested,
	}, nil
}

// Embed returns the embedding for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.requested,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dims {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, configured %d",
			memory.ErrDimensionMismatch, e.model, len(vec), e.dims)
	}
	return vec, nil
}

// Dimensions returns the configured vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

var _ memory.Embedder = (*Embedder)(nil)
