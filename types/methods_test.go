package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_ToBinUint16(t *testing.T) {
	tokens := Tokens{0, 1, 256, 65535}
	bin, err := tokens.ToBin(false)
	require.NoError(t, err)
	assert.Equal(t, len(tokens)*TokenSize, len(*bin))
	assert.Equal(t, []byte{0, 0, 1, 0, 0, 1, 255, 255}, *bin)
	assert.Equal(t, tokens, *TokensFromBin(bin))
}

func TestTokens_ToBinUint16Overflow(t *testing.T) {
	tokens := Tokens{1, 65536}
	_, err := tokens.ToBin(false)
	assert.Error(t, err)
}

func TestTokens_ToBinUint32(t *testing.T) {
	tokens := Tokens{0, 70000, 4294967295}
	bin, err := tokens.ToBin(true)
	require.NoError(t, err)
	assert.Equal(t, len(tokens)*TokenSize32, len(*bin))
	assert.Equal(t, tokens, *TokensFromBin32(bin))
}

func TestTokensFromBin_OddLength(t *testing.T) {
	bin := []byte{1, 0, 2}
	assert.Equal(t, Tokens{1}, *TokensFromBin(&bin))
}

func TestTokens_Pairs(t *testing.T) {
	assert.Nil(t, Tokens{}.Pairs())
	assert.Nil(t, Tokens{7}.Pairs())
	assert.Equal(t,
		[]TokenPair{{1, 2}, {2, 2}, {2, 3}},
		Tokens{1, 2, 2, 3}.Pairs())
}
