//go:build !onnx

package cli

import (
	"errors"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

func newONNXEmbedder(onnx.Config) (memory.Embedder, error) {
	return nil, errors.New("onnx embedder not compiled in; rebuild with -tags onnx")
}
