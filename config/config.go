// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
	"github.com/becomeliminal/nim-memory/server"
)

// Store backends.
const (
	StoreChromem = "chromem"
	StoreSQLite  = "sqlite"
)

// Embedder providers.
const (
	EmbedderMock   = "mock"
	EmbedderOpenAI = "openai"
	EmbedderONNX   = "onnx"
)

// LLM providers, used for replies and summaries.
const (
	LLMAnthropic = "anthropic"
	LLMOpenAI    = "openai"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is the whole configuration file.
type Config struct {
	Persona  engine.Persona `yaml:"persona"`
	Memory   memory.Config  `yaml:"memory"`
	Store    StoreConfig    `yaml:"store"`
	Embedder EmbedderConfig `yaml:"embedder"`
	LLM      LLMConfig      `yaml:"llm"`
	Server   server.Config  `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects and locates the durable store.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"` // directory; empty keeps chromem in memory
	Compress bool   `yaml:"compress"`
}

// EmbedderConfig selects the embedding model.
type EmbedderConfig struct {
	Provider   string      `yaml:"provider"`
	Model      string      `yaml:"model"`
	BaseURL    string      `yaml:"base_url"`
	APIKey     string      `yaml:"api_key"`
	Dimensions int         `yaml:"dimensions"`  // zero uses the provider's native size
	CacheBytes int64       `yaml:"cache_bytes"` // zero disables the cache
	ONNX       onnx.Config `yaml:"onnx"`
}

// LLMConfig selects the reply and summarizer models.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`            // empty uses the provider default
	SummarizerModel string        `yaml:"summarizer_model"` // empty uses the provider default
	BaseURL         string        `yaml:"base_url"`         // empty uses the provider default; llama.cpp on :7777 for openai
	APIKey          string        `yaml:"api_key"`
	MaxTokens       int64         `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	Summarize       bool          `yaml:"summarize"` // false always uses the local fallback summary
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Persona: engine.DefaultPersona,
		Memory:  *memory.DefaultConfig,
		Store: StoreConfig{
			Backend: StoreChromem,
			Path:    "~/.nim-memory",
		},
		Embedder: EmbedderConfig{
			Provider:   EmbedderMock,
			CacheBytes: 16 << 20,
		},
		LLM: LLMConfig{
			Provider:  LLMOpenAI,
			MaxTokens: 1024,
			Timeout:   120 * time.Second,
			Summarize: true,
		},
		Server: server.DefaultConfig,
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result has paths expanded, API keys filled from the environment and
// has been validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	for _, p := range []*string{&c.Store.Path, &c.Embedder.ONNX.ModelPath, &c.Embedder.ONNX.TokenizerPath, &c.Embedder.ONNX.LibraryPath} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case LLMAnthropic:
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case LLMOpenAI:
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.Embedder.APIKey == "" && c.Embedder.Provider == EmbedderOpenAI {
		c.Embedder.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case StoreChromem:
	case StoreSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the sqlite backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalid, c.Store.Backend)
	}

	switch c.Embedder.Provider {
	case EmbedderMock, EmbedderOpenAI:
	case EmbedderONNX:
		if c.Embedder.ONNX.ModelPath == "" || c.Embedder.ONNX.TokenizerPath == "" {
			return fmt.Errorf("%w: embedder.onnx needs model_path and tokenizer_path", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown embedder.provider %q", ErrInvalid, c.Embedder.Provider)
	}
	if c.Embedder.Dimensions < 0 {
		return fmt.Errorf("%w: embedder.dimensions must not be negative", ErrInvalid)
	}

	switch c.LLM.Provider {
	case LLMOpenAI:
	case LLMAnthropic:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm.api_key or ANTHROPIC_API_KEY is required for anthropic", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalid, c.LLM.Provider)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "disable":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
