package main

import (
	"bufio"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	inputTokenizerId := flag.String("input_tokenizer", "tokenizer.json",
		"input tokenizer dump, as a path or URL")
	inputFile := flag.String("input", "",
		"input file to detokenize")
	outputFile := flag.String("output", "detokenized.txt",
		"output file to write detokenized data")
	in32 := flag.Bool("in32", false,
		"force input tokens to be read as 32-bit")
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		klog.Fatal("Must provide -input")
	}
	if *inputTokenizerId == "" {
		flag.Usage()
		klog.Fatal("Must provide -input_tokenizer")
	}
	if *outputFile == "" {
		flag.Usage()
		klog.Fatal("Must provide -output")
	}

	// check if input file exists
	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		klog.Fatal("Input file does not exist")
	}

	inputTokenizer, inputErr := byte_bpe.Load(*inputTokenizerId)
	if inputErr != nil {
		klog.Fatal(inputErr)
	}
	input32Bit := *in32 || inputTokenizer.NTokens() > 65536

	inputFileHandle, err := os.Open(*inputFile)
	if err != nil {
		klog.Fatal(err)
	}
	defer inputFileHandle.Close()

	outputFileHandle, err := os.Create(*outputFile)
	if err != nil {
		klog.Fatal(err)
	}
	defer outputFileHandle.Close()
	writer := bufio.NewWriter(outputFileHandle)

	tokenSize := types.TokenSize
	if input32Bit {
		tokenSize = types.TokenSize32
	}
	// Read 4096 tokens at a time; a multibyte character split across two
	// reads is carried over to the next one.
	buffer := make([]byte, 4096*tokenSize)
	carry := make([]byte, 0)
	for {
		bytesRead, readErr := io.ReadFull(inputFileHandle, buffer)
		if bytesRead > 0 {
			chunk := buffer[:bytesRead-bytesRead%tokenSize]
			var tokens *types.Tokens
			if input32Bit {
				tokens = types.TokensFromBin32(&chunk)
			} else {
				tokens = types.TokensFromBin(&chunk)
			}
			carry = appendDecoded(inputTokenizer, carry, *tokens)
			complete := completePrefix(carry)
			if _, err := writer.Write(carry[:complete]); err != nil {
				klog.Fatal(err)
			}
			carry = append(carry[:0], carry[complete:]...)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		} else if readErr != nil {
			klog.Fatal(readErr)
		}
	}
	if len(carry) > 0 {
		if _, err := writer.WriteString(strings.ToValidUTF8(string(carry),
			"\uFFFD")); err != nil {
			klog.Fatal(err)
		}
	}
	if err := writer.Flush(); err != nil {
		klog.Fatal(err)
	}
}

// appendDecoded appends the raw bytes of tokens to buf.
func appendDecoded(encoder *byte_bpe.BytePairEncoder, buf []byte,
	tokens types.Tokens) []byte {
	for _, token := range tokens {
		if piece, ok := encoder.TokenBytes(token); ok {
			buf = append(buf, piece...)
		}
	}
	return buf
}

// completePrefix is the length of buf without a trailing incomplete UTF-8
// sequence.
func completePrefix(buf []byte) int {
	for back := 1; back <= 3 && back <= len(buf); back++ {
		b := buf[len(buf)-back]
		if b&0xC0 != 0x80 {
			// Lead byte: complete when the sequence fits.
			need := 1
			switch {
			case b&0xE0 == 0xC0:
				need = 2
			case b&0xF0 == 0xE0:
				need = 3
			case b&0xF8 == 0xF0:
				need = 4
			}
			if need > back {
				return len(buf) - back
			}
			return len(buf)
		}
	}
	return len(buf)
}
