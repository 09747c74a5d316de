package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() map[string]int {
	return map[string]int{
		"[PAD]": 0, "[UNK]": 100, "[CLS]": 101, "[SEP]": 102,
		"hello": 7592, "world": 2088, "!": 999, "play": 2377, "##ing": 2075, "garden": 3871,
	}
}

func TestTokenizer_Tokenize(t *testing.T) {
	tok := NewTokenizer(testVocab())

	assert.Equal(t, []int64{7592, 2088, 999}, tok.Tokenize("Hello world!"))
	assert.Equal(t, []int64{2377, 2075}, tok.Tokenize("playing"))
	assert.Equal(t, []int64{100}, tok.Tokenize("xylophone"))
}

func TestTokenizer_Encode(t *testing.T) {
	tok := NewTokenizer(testVocab())

	ids, mask := tok.Encode("hello garden", 6)
	assert.Equal(t, []int64{101, 7592, 3871, 102, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0}, mask)

	ids, mask = tok.Encode("hello hello hello hello hello", 4)
	assert.Equal(t, []int64{101, 7592, 7592, 102}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1}, mask)
}

func TestLoadTokenizer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"model":{"vocab":{"[CLS]":1,"[SEP]":2,"[UNK]":3,"hi":4}}}`), 0o644))

	tok, err := LoadTokenizer(path)
	require.NoError(t, err)
	ids, _ := tok.Encode("hi there", 5)
	assert.Equal(t, []int64{1, 4, 3, 2, 0}, ids)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"model":{}}`), 0o644))
	_, err = LoadTokenizer(empty)
	assert.Error(t, err)
}
