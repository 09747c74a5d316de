// Package onnx embeds text locally with a sentence-transformer exported to
// ONNX (all-MiniLM-L6-v2 by default). The embedder itself needs -tags onnx;
// the tokenizer and pooling build everywhere.
package onnx

import "os"

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// DefaultMaxSequenceLength is the token window MiniLM was trained with.
const DefaultMaxSequenceLength = 128

// Config configures the ONNX embedder.
type Config struct {
	ModelPath         string `yaml:"model_path"`
	TokenizerPath     string `yaml:"tokenizer_path"`
	LibraryPath       string `yaml:"library_path"` // onnxruntime shared library; falls back to $ONNXRUNTIME_LIB
	Dimensions        int    `yaml:"dimensions"`
	MaxSequenceLength int    `yaml:"max_sequence_length"`
}

func (c Config) withDefaults() Config {
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.MaxSequenceLength < 3 {
		c.MaxSequenceLength = DefaultMaxSequenceLength
	}
	if c.LibraryPath == "" {
		c.LibraryPath = os.Getenv("ONNXRUNTIME_LIB")
	}
	return c
}
