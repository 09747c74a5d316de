//go:build onnx

package cli

import (
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

func newONNXEmbedder(cfg onnx.Config) (memory.Embedder, error) {
	return onnx.New(cfg)
}
