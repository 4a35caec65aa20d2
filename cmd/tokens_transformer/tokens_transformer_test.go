package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
)

func TestRetokenize(t *testing.T) {
	input, err := byte_bpe.NewBytePairEncoder()
	require.NoError(t, err)
	code := byte_bpe.ByteCode()
	code[256] = []byte_bpe.Token{'a', 'b'}
	output, err := byte_bpe.NewBytePairEncoder(byte_bpe.WithCode(code))
	require.NoError(t, err)
	pad, err := output.PadToken()
	require.NoError(t, err)

	tokens := types.Tokens{'a', 'b', 'c'}
	retokenized, err := retokenize(input, output, tokens, 4)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{256, 'c', pad, pad}, retokenized)

	retokenized, err = retokenize(input, output, tokens, 1)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{256}, retokenized)
}
