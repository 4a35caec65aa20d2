package byte_bpe

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceSource replays a fixed list of draws, cycling when exhausted.
type sequenceSource struct {
	draws []float64
	idx   int
}

func (s *sequenceSource) Float64() float64 {
	v := s.draws[s.idx%len(s.draws)]
	s.idx++
	return v
}

func constantSource(v float64) *sequenceSource {
	return &sequenceSource{draws: []float64{v}}
}

func dropoutRate(p float64) *float64 {
	return &p
}

func makeTestTree(t *testing.T, tokens ...string) *ByteTree {
	t.Helper()
	tree := NewByteTree()
	for idx, token := range tokens {
		require.NoError(t, tree.Insert([]byte(token), Token(256+idx)))
	}
	return tree
}

func piecesToStrings(pieces [][]byte) []string {
	out := make([]string, len(pieces))
	for idx := range pieces {
		out[idx] = string(pieces[idx])
	}
	return out
}

func TestNewByteTree(t *testing.T) {
	tree := NewByteTree()
	assert.Equal(t, 256, tree.Len())
	assert.Equal(t, 1, tree.Depth())
	for b := 0; b < 256; b++ {
		token, ok := tree.Lookup([]byte{byte(b)})
		assert.True(t, ok)
		assert.Equal(t, Token(b), token)
	}
}

func TestByteTree_Insert(t *testing.T) {
	tree := makeTestTree(t, "ab", "abcde")
	assert.Equal(t, 258, tree.Len())
	assert.Equal(t, 5, tree.Depth())

	token, ok := tree.Lookup([]byte("abcde"))
	assert.True(t, ok)
	assert.Equal(t, Token(257), token)

	// Intermediate nodes are traversable but not tokens.
	_, ok = tree.Lookup([]byte("abc"))
	assert.False(t, ok)
	_, ok = tree.Lookup([]byte("zz"))
	assert.False(t, ok)
	_, ok = tree.Lookup(nil)
	assert.False(t, ok)

	// Same bytes, same id is a no-op.
	assert.NoError(t, tree.Insert([]byte("ab"), 256))
	assert.Equal(t, 258, tree.Len())

	err := tree.Insert([]byte("ab"), 300)
	assert.True(t, errors.Is(err, ErrCorruptVocabulary))

	assert.Error(t, tree.Insert([]byte{}, 301))
}

func TestByteTree_ManyChildren(t *testing.T) {
	// Growing past the child array threshold switches a node to map lookups.
	tree := NewByteTree()
	for idx := 0; idx < 20; idx++ {
		require.NoError(t, tree.Insert([]byte{'q', byte('a' + idx)},
			Token(256+idx)))
	}
	for idx := 0; idx < 20; idx++ {
		token, ok := tree.Lookup([]byte{'q', byte('a' + idx)})
		assert.True(t, ok)
		assert.Equal(t, Token(256+idx), token)
	}
	assert.Equal(t, []string{"qt", "qa"},
		piecesToStrings(tree.Split([]byte("qtqa"), nil, nil)))
}

type SplitTreeTest struct {
	Input    string
	Expected []string
}

var LongestMatchTests = []SplitTreeTest{
	{"", []string{}},
	{"a", []string{"a"}},
	{"abcd", []string{"abc", "d"}},
	{"abd", []string{"ab", "d"}},
	{"bcab", []string{"bc", "ab"}},
	// The walk passes the non-token prefix "abcd" and falls back to the
	// last complete token seen.
	{"abcdx", []string{"abc", "d", "x"}},
	{"abcdef", []string{"abcdef"}},
}

func TestByteTree_SplitLongestMatch(t *testing.T) {
	tree := makeTestTree(t, "ab", "abc", "bc", "abcdef")
	for _, test := range LongestMatchTests {
		pieces := tree.Split([]byte(test.Input), nil, nil)
		assert.Equal(t, test.Expected, piecesToStrings(pieces), test.Input)
	}
}

func TestByteTree_SplitDropout(t *testing.T) {
	tree := makeTestTree(t, "ab", "abc")
	input := []byte("abcabc")

	// A draw below the rate always abandons the longer match.
	pieces := tree.Split(input, dropoutRate(0.5), constantSource(0.0))
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"},
		piecesToStrings(pieces))

	// A draw above the rate never does.
	pieces = tree.Split(input, dropoutRate(0.5), constantSource(0.99))
	assert.Equal(t, []string{"abc", "abc"}, piecesToStrings(pieces))

	// Rate zero behaves like no dropout, rate one like raw bytes.
	pieces = tree.Split(input, dropoutRate(0), constantSource(0.0))
	assert.Equal(t, []string{"abc", "abc"}, piecesToStrings(pieces))
	pieces = tree.Split(input, dropoutRate(1), rand.New(rand.NewSource(1)))
	assert.Len(t, pieces, len(input))

	// Keep "ab", then drop the extension to "abc".
	pieces = tree.Split([]byte("abc"), dropoutRate(0.5),
		&sequenceSource{draws: []float64{0.9, 0.1}})
	assert.Equal(t, []string{"ab", "c"}, piecesToStrings(pieces))
}

func TestByteTree_SplitCoverage(t *testing.T) {
	tree := makeTestTree(t, "th", "the", "he", " t", "\x00\xff", "\xff\xfe\xfd")
	rng := rand.New(rand.NewSource(42))
	rates := []*float64{nil, dropoutRate(0), dropoutRate(0.3),
		dropoutRate(0.7), dropoutRate(1)}
	inputs := [][]byte{
		{},
		{0},
		{255},
		[]byte("the theme of the thesis"),
	}
	for idx := 0; idx < 50; idx++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)
		inputs = append(inputs, data)
	}
	for _, rate := range rates {
		for _, input := range inputs {
			pieces := tree.Split(input, rate, rng)
			assert.True(t, bytes.Equal(input, bytes.Join(pieces, nil)))
			if len(input) > 0 {
				assert.NotEmpty(t, pieces)
			}
			for _, piece := range pieces {
				_, ok := tree.Lookup(piece)
				assert.True(t, ok, "piece %q is not a token", piece)
			}
		}
	}
}

func TestByteTree_String(t *testing.T) {
	tree := makeTestTree(t, "ab", "ac")
	rendered := tree.String()
	assert.True(t, strings.Contains(rendered, "a[97]\n| ├─b[256]\n| └─c[257]\n"),
		rendered)
	assert.True(t, strings.Contains(rendered, "├─\\x00[0]\n"))
}
