package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/becomeliminal/nim-memory/memory"
)

func TestConfig_DefaultIsValid(t *testing.T) {
	assert.NoError(t, memory.DefaultConfig.Validate())
	assert.False(t, memory.DefaultConfig.Enabled)
	assert.Equal(t, 50, memory.DefaultConfig.MaxWindowSize)
	assert.Equal(t, 4, memory.DefaultConfig.ChunkSize)
	assert.Equal(t, 5, memory.DefaultConfig.KeepTail)
	assert.Equal(t, 0.3, memory.DefaultConfig.ImportanceThreshold)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(c *memory.Config){
		"zero window":         func(c *memory.Config) { c.MaxWindowSize = 0 },
		"zero chunk":          func(c *memory.Config) { c.ChunkSize = 0 },
		"chunk beyond window": func(c *memory.Config) { c.MaxWindowSize = 3; c.ChunkSize = 4 },
		"negative tail":       func(c *memory.Config) { c.KeepTail = -1 },
		"threshold above one": func(c *memory.Config) { c.ImportanceThreshold = 1.5 },
		"zero top k":          func(c *memory.Config) { c.RecallTopK = 0 },
		"negative entries":    func(c *memory.Config) { c.MaxEntries = -1 },
		"negative retention":  func(c *memory.Config) { c.RetentionDays = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *memory.DefaultConfig
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), memory.ErrInvalidConfig)
		})
	}
}

func TestConfig_PrunePolicy(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	p := memory.DefaultConfig.PrunePolicy(now)
	assert.Equal(t, 1000, p.MaxEntries)
	assert.Equal(t, 30*24*time.Hour, p.MaxAge)
	assert.Equal(t, now, p.Now)
}
