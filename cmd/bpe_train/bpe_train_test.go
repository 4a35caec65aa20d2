package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/byte_bpe"
)

func TestEncoderOptionsKeepLoadedSettings(t *testing.T) {
	trained, err := byte_bpe.NewBytePairEncoder(byte_bpe.WithASCII(true),
		byte_bpe.WithLowercase(true))
	require.NoError(t, err)
	dump := trained.Dump()

	loaded, err := byte_bpe.FromDump(dump,
		encoderOptions(map[string]bool{}, false, false, -1, 1)...)
	require.NoError(t, err)
	assert.True(t, loaded.ASCII())
	assert.True(t, loaded.Lowercase())
	assert.Nil(t, loaded.Dropout())

	loaded, err = byte_bpe.FromDump(dump, encoderOptions(
		map[string]bool{"ascii": true, "lowercase": true}, false, false,
		0.25, 1)...)
	require.NoError(t, err)
	assert.False(t, loaded.ASCII())
	assert.False(t, loaded.Lowercase())
	require.NotNil(t, loaded.Dropout())
	assert.Equal(t, 0.25, *loaded.Dropout())
}

func TestEncoderOptionsNewEncoder(t *testing.T) {
	encoder, err := byte_bpe.NewBytePairEncoder(encoderOptions(
		map[string]bool{"lowercase": true}, false, true, -1, 1)...)
	require.NoError(t, err)
	assert.False(t, encoder.ASCII())
	assert.True(t, encoder.Lowercase())
}
