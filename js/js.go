package main

//go:generate gopherjs build --minify

import (
	"github.com/gopherjs/gopherjs/js"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
	"k8s.io/klog/v2"
)

var encoder byte_bpe.Tokenizer = newByteEncoder()

func newByteEncoder() *byte_bpe.BytePairEncoder {
	byteEncoder, err := byte_bpe.NewBytePairEncoder()
	if err != nil {
		panic(err)
	}
	return byteEncoder
}

// Load replaces the active tokenizer with the one in the given dump, and
// returns an error message, empty on success.
func Load(dump string) string {
	loaded, err := byte_bpe.LoadDump([]byte(dump))
	if err != nil {
		return err.Error()
	}
	encoder = loaded
	klog.Infof("Loaded %s", loaded)
	return ""
}

func Tokenize(text string) types.Tokens {
	tokens, err := encoder.Encode(text, byte_bpe.WithoutDropout())
	if err != nil {
		klog.Error(err)
		return nil
	}
	return tokens
}

func Decode(arr []byte) string {
	tokens := types.TokensFromBin(&arr)
	return encoder.Decode(*tokens)
}

func init() {
	js.Module.Get("exports").Set("load", Load)
	js.Module.Get("exports").Set("decode", Decode)
	js.Module.Get("exports").Set("tokenize", Tokenize)
	klog.Info("Byte BPE tokenizer loaded")
}

func main() {

}
