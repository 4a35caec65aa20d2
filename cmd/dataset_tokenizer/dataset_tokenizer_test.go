package main

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/corpus"
	"github.com/wbrown/byte_bpe/types"
)

func writeTexts(t *testing.T, texts map[string]string) string {
	dir := t.TempDir()
	for name, text := range texts {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	}
	return dir
}

func contextsOf(contexts ...types.Tokens) ContextsIterator {
	idx := 0
	return func() (types.Tokens, error) {
		if idx >= len(contexts) {
			return nil, nil
		}
		idx++
		return contexts[idx-1], nil
	}
}

func readContexts(t *testing.T, path string, size int) []types.Tokens {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tokens := *types.TokensFromBin(&data)
	require.Zero(t, len(tokens)%size)
	contexts := make([]types.Tokens, 0)
	for idx := 0; idx < len(tokens); idx += size {
		contexts = append(contexts, tokens[idx:idx+size])
	}
	return contexts
}

func TestReadTexts(t *testing.T) {
	dir := writeTexts(t, map[string]string{
		"a.txt":      "first  text",
		"sub/b.txt":  "second\ttext",
		"ignored.md": "not a text",
	})
	nextText, err := ReadTexts(dir, true, corpus.OrderPathAscending, 0)
	require.NoError(t, err)

	path, text, err := nextText()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.txt"), path)
	assert.Equal(t, "first text", text)

	_, text, err = nextText()
	require.NoError(t, err)
	assert.Equal(t, "second text", text)

	_, _, err = nextText()
	assert.Equal(t, io.EOF, err)
}

func TestGetAndCheckToken(t *testing.T) {
	encoder, err := byte_bpe.NewBytePairEncoder()
	require.NoError(t, err)
	pad, err := encoder.PadToken()
	require.NoError(t, err)

	token, err := getAndCheckToken(encoder, "PAD", "test")
	require.NoError(t, err)
	assert.Equal(t, pad, token)

	token, err = getAndCheckToken(encoder, "\\n", "test")
	require.NoError(t, err)
	assert.Equal(t, types.Token('\n'), token)

	token, err = getAndCheckToken(encoder, "a", "test")
	require.NoError(t, err)
	assert.Equal(t, types.Token('a'), token)

	token, err = getAndCheckToken(encoder, "99", "test")
	require.NoError(t, err)
	assert.Equal(t, types.Token(99), token)

	_, err = getAndCheckToken(encoder, "300", "test")
	assert.Error(t, err)
}

func TestTokenizeTextsBoundaries(t *testing.T) {
	dir := writeTexts(t, map[string]string{
		"a.txt": "ab\ncd\n",
		"b.txt": "ef",
	})
	encoder, err := byte_bpe.NewBytePairEncoder()
	require.NoError(t, err)
	pad, err := encoder.PadToken()
	require.NoError(t, err)
	end, err := encoder.EndToken()
	require.NoError(t, err)

	nextText, err := ReadTexts(dir, false, corpus.OrderPathAscending, 0)
	require.NoError(t, err)
	tt := NewTextsTokenizer()
	tt.ContextSize = 4
	contexts, err := tt.TokenizeTexts(encoder, nextText)
	require.NoError(t, err)

	expected := []types.Tokens{
		{'a', 'b', '\n', pad},
		{'c', 'd', '\n', pad},
		{end, 'e', 'f', end},
	}
	for _, want := range expected {
		context, err := contexts()
		require.NoError(t, err)
		assert.Equal(t, want, context)
	}
	context, err := contexts()
	require.NoError(t, err)
	assert.Nil(t, context)
}

func TestTokenizeTextsNoBoundary(t *testing.T) {
	dir := writeTexts(t, map[string]string{"a.txt": "ab\ncde"})
	encoder, err := byte_bpe.NewBytePairEncoder()
	require.NoError(t, err)
	start, err := encoder.StartToken()
	require.NoError(t, err)
	pad, err := encoder.PadToken()
	require.NoError(t, err)

	nextText, err := ReadTexts(dir, false, corpus.OrderNone, 0)
	require.NoError(t, err)
	tt := TextsTokenizer{ContextSize: 4, StartToken: true}
	contexts, err := tt.TokenizeTexts(encoder, nextText)
	require.NoError(t, err)

	context, err := contexts()
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{start, 'a', 'b', '\n'}, context)
	context, err = contexts()
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{'c', 'd', 'e', pad}, context)
}

func TestTokenizeTextsInvalidConfig(t *testing.T) {
	encoder, err := byte_bpe.NewBytePairEncoder()
	require.NoError(t, err)
	noTexts := func() (string, string, error) { return "", "", io.EOF }

	_, err = TextsTokenizer{ContextSize: 0}.TokenizeTexts(encoder, noTexts)
	assert.Error(t, err)
	_, err = TextsTokenizer{ContextSize: 8, Boundary: "xyz"}.TokenizeTexts(
		encoder, noTexts)
	assert.Error(t, err)
}

func TestWriteContexts(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.chunk")
	total, err := WriteContexts(outPath, contextsOf(
		types.Tokens{1, 2}, types.Tokens{3, 4}, types.Tokens{5, 6}),
		100, false, false, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, []types.Tokens{{1, 2}, {3, 4}, {5, 6}},
		readContexts(t, outPath, 2))
}

func TestSampling60(t *testing.T) {
	contexts := make([]types.Tokens, 20)
	for idx := range contexts {
		contexts[idx] = types.Tokens{types.Token(idx)}
	}
	outPath := filepath.Join(t.TempDir(), "out.chunk")
	total, err := WriteContexts(outPath, contextsOf(contexts...), 60,
		false, false, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Equal(t, contexts[:12], readContexts(t, outPath, 1))
}

func TestShuffleKeepsContexts(t *testing.T) {
	contexts := make([]types.Tokens, 50)
	for idx := range contexts {
		contexts[idx] = types.Tokens{types.Token(idx), types.Token(idx)}
	}
	outPath := filepath.Join(t.TempDir(), "out.chunk")
	total, err := WriteContexts(outPath, contextsOf(contexts...), 100,
		true, false, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, 100, total)

	written := readContexts(t, outPath, 2)
	require.Len(t, written, 50)
	firsts := make([]int, 0, len(written))
	for _, context := range written {
		assert.Equal(t, context[0], context[1])
		firsts = append(firsts, int(context[0]))
	}
	assert.NotEqual(t, contexts, written)
	sort.Ints(firsts)
	for idx, first := range firsts {
		assert.Equal(t, idx, first)
	}
}
