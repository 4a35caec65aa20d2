package main

import (
	"fmt"

	"github.com/extism/go-pdk"
	msgpack "github.com/vmihailenco/msgpack/v5"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
)

var encoder byte_bpe.Tokenizer

// getEncoder loads the tokenizer dump passed in the plugin's `tokenizer`
// config on first use, falling back to the plain byte tokenizer.
func getEncoder() (byte_bpe.Tokenizer, error) {
	if encoder != nil {
		return encoder, nil
	}
	if dump, ok := pdk.GetConfig("tokenizer"); ok && dump != "" {
		loaded, err := byte_bpe.LoadDump([]byte(dump))
		if err != nil {
			return nil, err
		}
		encoder = loaded
		return encoder, nil
	}
	byteEncoder, err := byte_bpe.NewBytePairEncoder()
	if err != nil {
		return nil, err
	}
	encoder = byteEncoder
	return encoder, nil
}

type TokenizeResult = types.Tokens

func encode(text string) (TokenizeResult, error) {
	tokenizer, err := getEncoder()
	if err != nil {
		return nil, err
	}
	return tokenizer.Encode(text, byte_bpe.WithoutDropout())
}

//go:wasmexport tokenize
func Tokenize() int32 {
	tokens, err := encode(pdk.InputString())
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	bytes, err := msgpack.Marshal(&tokens)
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	pdk.Output(bytes)
	return 0
}

//go:wasmexport tokenize_and_back
func TokenizeAndBack() int32 {
	tokens, err := encode(pdk.InputString())
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	pdk.OutputString(encoder.Decode(tokens))
	return 0
}

//go:wasmexport decode_array
func DecodeArray() int32 {
	bytes := pdk.Input()
	var tokens TokenizeResult
	if err := msgpack.Unmarshal(bytes, &tokens); err != nil {
		pdk.SetError(err)
		return 1
	}
	tokenizer, err := getEncoder()
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	pdk.OutputString(tokenizer.Decode(tokens))
	return 0
}

//go:wasmexport decode
func Decode() int32 {
	bytes := pdk.Input()
	tokens := types.TokensFromBin(&bytes)
	tokenizer, err := getEncoder()
	if err != nil {
		pdk.SetError(err)
		return 1
	}
	pdk.OutputString(tokenizer.Decode(*tokens))
	return 0
}

func TokenizeAndBackFull() error {
	// Mostly for debugging
	byteEncoder, err := byte_bpe.NewBytePairEncoder()
	if err != nil {
		return err
	}
	tokens, err := byteEncoder.Encode("Hello, world! This is a test.",
		byte_bpe.WithoutDropout())
	if err != nil {
		return err
	}
	bytes, err := msgpack.Marshal(&tokens)
	if err != nil {
		return err
	}

	var tokens2 TokenizeResult
	if err = msgpack.Unmarshal(bytes, &tokens2); err != nil {
		return err
	}

	fmt.Println(byteEncoder.Decode(tokens2))
	return nil
}

func main() {
	err := TokenizeAndBackFull()
	if err != nil {
		fmt.Println("Error:", err)
	}
}
