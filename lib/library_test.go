package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/byte_bpe"
)

// saveTestTokenizer writes a tokenizer with a few merges to a temp dir and
// returns its path.
func saveTestTokenizer(tb testing.TB) string {
	code := byte_bpe.ByteCode()
	code[256] = []byte_bpe.Token{'t', 'h'}
	code[257] = []byte_bpe.Token{256, 'e'}
	code[258] = []byte_bpe.Token{' ', 257}
	encoder, err := byte_bpe.NewBytePairEncoder(byte_bpe.WithCode(code))
	require.NoError(tb, err)
	path := filepath.Join(tb.TempDir(), "tokenizer.json")
	require.NoError(tb, encoder.Save(path))
	return path
}

func TestInitTokenizer(t *testing.T) {
	assert.True(t, wrapInitTokenizer(saveTestTokenizer(t)))
	assert.False(t, wrapInitTokenizer(filepath.Join(t.TempDir(),
		"missing.json")))
}

func TestRoundTrip(t *testing.T) {
	vocab := saveTestTokenizer(t)
	numTokens, decoded := testRoundTrip(vocab, "the cat and the hat")
	assert.Equal(t, "the cat and the hat", decoded)
	// "the", " the" and 12 single bytes.
	assert.Equal(t, 14, numTokens)
}

func BenchmarkTokenize(b *testing.B) {
	vocab := saveTestTokenizer(b)
	require.True(b, wrapInitTokenizer(vocab))
	corpus := []byte(strings.Repeat(
		"It was on a dreary night of November that I beheld the "+
			"accomplishment of my toils.\n", 2000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		duration, numTokens := testBuffer(vocab, corpus)
		tokensPerSecond := float64(numTokens) / duration.Seconds()
		b.Logf("%d tokens generated at %0.2f per second over %vms",
			numTokens, tokensPerSecond, duration.Milliseconds())
	}
}
