package main

/*
#include "library.h"
*/
import "C"
import (
	"time"
	"unsafe"

	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
	"k8s.io/klog/v2"
)

var tokenizers map[string]*byte_bpe.BytePairEncoder

func init() {
	tokenizers = make(map[string]*byte_bpe.BytePairEncoder)
}

//export initTokenizer
// initTokenizer accepts a tokenizer dump path or URL as a C string, and if it
// does not exist in the global tokenizers map, loads a tokenizer from it.
func initTokenizer(vocab_id *C.char) bool {
	vocab_id_str := C.GoString(vocab_id)
	if _, ok := tokenizers[vocab_id_str]; ok {
		return true
	}
	if encoder, err := byte_bpe.Load(vocab_id_str); err != nil {
		klog.Errorf("Error loading %s: %v", vocab_id_str, err)
		return false
	} else {
		tokenizers[vocab_id_str] = encoder
		return true
	}
}

func getTokenizer(vocabIdStr *C.char) *byte_bpe.BytePairEncoder {
	tokenizerId := C.GoString(vocabIdStr)
	encoder, ok := tokenizers[tokenizerId]
	if !ok && initTokenizer(vocabIdStr) {
		encoder = tokenizers[tokenizerId]
	}
	return encoder
}

// toCTokens copies tokens into a malloc'ed uint32_t array.
func toCTokens(encoded types.Tokens) C.Tokens {
	if len(encoded) == 0 {
		return C.Tokens{}
	}
	size := C.size_t(len(encoded)) * C.size_t(unsafe.Sizeof(C.uint32_t(0)))
	tokensArr := (*C.uint32_t)(C.malloc(size))
	copy(unsafe.Slice((*types.Token)(unsafe.Pointer(tokensArr)),
		len(encoded)), encoded)
	return C.Tokens{
		tokens: tokensArr,
		len:    C.size_t(len(encoded)),
	}
}

func encodeToC(vocabIdStr *C.char, text string) C.Tokens {
	encoder := getTokenizer(vocabIdStr)
	if encoder == nil {
		return C.Tokens{}
	}
	encoded, err := encoder.Encode(text, byte_bpe.WithoutDropout())
	if err != nil {
		klog.Error(err)
		return C.Tokens{}
	}
	return toCTokens(encoded)
}

//export tokenizeBuffer
func tokenizeBuffer(vocabIdStr *C.char, buf *C.char, sz C.size_t) C.Tokens {
	goBuf := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(sz))
	return encodeToC(vocabIdStr, string(goBuf))
}

//export tokenize
// tokenize accepts a tokenizer id and text as a C string, and returns a
// C.Tokens that contains a malloc'ed array of uint32_t tokens along with the
// number of tokens. An empty C.Tokens signals an error.
func tokenize(vocabIdStr *C.char, str *C.char) C.Tokens {
	return encodeToC(vocabIdStr, C.GoString(str))
}

//export decode
// decode accepts a tokenizer id and a C.Tokens struct, and returns a
// malloc'ed C.char* containing the decoded string.
func decode(vocabIdStr *C.char, tokens *C.Tokens) *C.char {
	encoder := getTokenizer(vocabIdStr)
	if encoder == nil {
		return nil
	}
	goTokens := make(types.Tokens, int(tokens.len))
	if tokens.len > 0 {
		copy(goTokens, unsafe.Slice((*types.Token)(unsafe.Pointer(
			tokens.tokens)), int(tokens.len)))
	}
	return C.CString(encoder.Decode(goTokens))
}

//export freeTokens
func freeTokens(tokens *C.Tokens) {
	C.free(unsafe.Pointer(tokens.tokens))
	tokens.tokens = nil
	tokens.len = 0
}

// testBuffer tests the C interface to the tokenizer, and is here rather than
// in the test package as the test package is incompatible with CGo.
func testBuffer(vocab string, buf []byte) (time.Duration, uint64) {
	vocabC := C.CString(vocab)
	defer C.free(unsafe.Pointer(vocabC))
	corpusBuff := (*C.char)(C.CBytes(buf))
	defer C.free(unsafe.Pointer(corpusBuff))
	start := time.Now()
	tokens := tokenizeBuffer(vocabC, corpusBuff, C.size_t(len(buf)))
	duration := time.Since(start)
	defer freeTokens(&tokens)
	return duration, uint64(tokens.len)
}

// testRoundTrip tokenizes and decodes text through the C interface.
func testRoundTrip(vocab string, text string) (int, string) {
	vocabC := C.CString(vocab)
	defer C.free(unsafe.Pointer(vocabC))
	textC := C.CString(text)
	defer C.free(unsafe.Pointer(textC))
	tokens := tokenize(vocabC, textC)
	defer freeTokens(&tokens)
	decoded := decode(vocabC, &tokens)
	if decoded == nil {
		return int(tokens.len), ""
	}
	defer C.free(unsafe.Pointer(decoded))
	return int(tokens.len), C.GoString(decoded)
}

// wrapInitTokenizer is a wrapper around initTokenizer that simulates a C call
// from golang.
func wrapInitTokenizer(vocab_id string) bool {
	vocab_id_str := C.CString(vocab_id)
	defer C.free(unsafe.Pointer(vocab_id_str))
	return initTokenizer(vocab_id_str)
}

func main() {}
