package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kataras/golog"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	openaiembed "github.com/becomeliminal/nim-memory/memory/embedder/openai"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/sqlite"
	"github.com/becomeliminal/nim-memory/memory/summarizer/claude"
	"github.com/becomeliminal/nim-memory/memory/summarizer/openaicompat"
)

// app is everything a command needs, built from config.
type app struct {
	cfg      *config.Config
	manager  *memory.Manager
	engine   *engine.Engine
	registry *prometheus.Registry
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newApp wires store, embedder, summarizer and reply model. withResponder
// is false for commands that never produce replies.
func newApp(cfg *config.Config, withResponder bool) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}

	emb, err := a.newEmbedder()
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := newStore(cfg.Store, emb.Dimensions())
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []memory.Option{memory.WithMetrics(memory.NewMetrics(a.registry, "nim"))}
	if sum, err := newSummarizer(cfg.LLM); err != nil {
		golog.Warnf("[MEMORY] Summarizer unavailable, using fallback summaries: %v", err)
	} else if sum != nil {
		opts = append(opts, memory.WithSummarizer(sum))
	}
	mcfg := cfg.Memory
	a.manager = memory.NewManager(store, emb, &mcfg, opts...)

	if withResponder {
		responder, err := newResponder(cfg.LLM)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.engine = engine.NewEngine(a.manager, responder, engine.WithRespondTimeout(cfg.LLM.Timeout))
	}
	return a, nil
}

func (a *app) newEmbedder() (memory.Embedder, error) {
	ec := a.cfg.Embedder
	var (
		emb memory.Embedder
		err error
	)
	switch ec.Provider {
	case config.EmbedderMock:
		dims := ec.Dimensions
		if dims == 0 {
			dims = mock.DefaultDimensions
		}
		emb = mock.NewWithDimensions(dims)
	case config.EmbedderOpenAI:
		emb, err = openaiembed.New(openaiembed.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
	case config.EmbedderONNX:
		onnxCfg := ec.ONNX
		if onnxCfg.Dimensions == 0 {
			onnxCfg.Dimensions = ec.Dimensions
		}
		emb, err = newONNXEmbedder(onnxCfg)
	default:
		err = fmt.Errorf("unknown embedder provider %q", ec.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if c, ok := emb.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	if ec.CacheBytes <= 0 {
		return emb, nil
	}
	c, err := cached.New(emb, ec.Provider+":"+ec.Model, ec.CacheBytes)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c)
	return c, nil
}

func newStore(sc config.StoreConfig, dims int) (memory.Store, error) {
	switch sc.Backend {
	case config.StoreChromem:
		if sc.Path == "" {
			return chromem.New(dims)
		}
		return chromem.Open(chromem.Options{Path: sc.Path, Compress: sc.Compress, Dimensions: dims})
	case config.StoreSQLite:
		return sqlite.Open(sc.Path, dims)
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// newSummarizer returns nil when LLM summaries are turned off.
func newSummarizer(lc config.LLMConfig) (memory.Summarizer, error) {
	if !lc.Summarize {
		return nil, nil
	}
	switch lc.Provider {
	case config.LLMAnthropic:
		return claude.New(claude.Config{APIKey: lc.APIKey, BaseURL: lc.BaseURL, Model: lc.SummarizerModel})
	case config.LLMOpenAI:
		model := lc.SummarizerModel
		if model == "" {
			model = lc.Model
		}
		return openaicompat.New(openaicompat.Config{APIKey: lc.APIKey, BaseURL: lc.BaseURL, Model: model}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	}
}

func newResponder(lc config.LLMConfig) (engine.Responder, error) {
	switch lc.Provider {
	case config.LLMAnthropic:
		opts := []option.RequestOption{option.WithAPIKey(lc.APIKey)}
		if lc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(lc.BaseURL))
		}
		client := anthropic.NewClient(opts...)
		return engine.NewClaudeResponder(&client, lc.Model, lc.MaxTokens), nil
	case config.LLMOpenAI:
		oc := openai.DefaultConfig(lc.APIKey)
		oc.BaseURL = openaicompat.DefaultBaseURL
		if lc.BaseURL != "" {
			oc.BaseURL = lc.BaseURL
		}
		model := lc.Model
		if model == "" {
			model = openaicompat.DefaultModel
		}
		return engine.NewOpenAIResponder(openai.NewClientWithConfig(oc), model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	}
}
