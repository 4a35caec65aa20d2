package main

import (
	"flag"
	"io"
	"os"

	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/types"
	"k8s.io/klog/v2"
)

// Retokenizes a binary stream of fixed size contexts from one vocabulary to
// another, padding or dropping tokens so every output context keeps the
// same size.

func retokenize(input, output *byte_bpe.BytePairEncoder,
	tokens types.Tokens, contextSize int) (types.Tokens, error) {
	decoded := input.Decode(tokens)
	encoded, err := output.Encode(decoded, byte_bpe.WithoutDropout())
	if err != nil {
		return nil, err
	}
	// trim encoded tokens to context size
	if len(encoded) > contextSize {
		encoded = encoded[:contextSize]
	}
	if len(encoded) < contextSize {
		pad, err := output.PadToken()
		if err != nil {
			return nil, err
		}
		for len(encoded) < contextSize {
			encoded = append(encoded, pad)
		}
	}
	return encoded, nil
}

func main() {
	klog.InitFlags(nil)
	inputTokenizerId := flag.String("input_tokenizer", "",
		"input tokenizer dump, as a path or URL")
	outputTokenizerId := flag.String("output_tokenizer", "",
		"output tokenizer dump, as a path or URL")
	contextSize := flag.Int("context_size", 2048,
		"number of tokens to use as context")
	showContexts := flag.Bool("show_contexts", false,
		"show contexts as they are retokenized")
	in32 := flag.Bool("in32", false,
		"force input tokens to be read as 32-bit")
	out32 := flag.Bool("out32", false,
		"force output tokens to be written as 32-bit")
	inputFile := flag.String("input", "",
		"input file to retokenize")
	outputFile := flag.String("output", "retokenized.tokens",
		"output file to write retokenized data")
	flag.Parse()
	if *inputFile == "" {
		flag.Usage()
		klog.Fatal("Must provide -input")
	}
	if *inputTokenizerId == "" {
		flag.Usage()
		klog.Fatal("Must provide -input_tokenizer")
	}
	if *outputTokenizerId == "" {
		flag.Usage()
		klog.Fatal("Must provide -output_tokenizer")
	}
	if *contextSize < 1 {
		flag.Usage()
		klog.Fatal("Context size must be greater than 0")
	}
	// check if input and output tokenizers are the same
	if *inputTokenizerId == *outputTokenizerId {
		klog.Fatal("Input and output tokenizers must be different")
	}
	// check if input and output files are the same
	if *inputFile == *outputFile {
		klog.Fatal("Input and output files must be different")
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

	outputTokenizer, outputErr := byte_bpe.Load(*outputTokenizerId)
	if outputErr != nil {
		klog.Fatal(outputErr)
	}
	output32Bit := *out32 || outputTokenizer.NTokens() > 65536
	if input32Bit {
		klog.Info("Reading as 32-bit")
	} else {
		klog.Info("Reading as 16-bit")
	}
	if output32Bit {
		klog.Info("Writing as 32-bit")
	} else {
		klog.Info("Writing as 16-bit")
	}

	// open input file
	inputFileHandle, inputOpenErr := os.Open(*inputFile)
	if inputOpenErr != nil {
		klog.Fatal(inputOpenErr)
	}
	defer inputFileHandle.Close()
	// open output file
	outputFileHandle, outputOpenErr := os.Create(*outputFile)
	if outputOpenErr != nil {
		klog.Fatal(outputOpenErr)
	}
	defer outputFileHandle.Close()
	// create context buffer
	tokenSize := types.TokenSize
	if input32Bit {
		tokenSize = types.TokenSize32
	}
	contextBuffer := make([]byte, *contextSize*tokenSize)

	// read input context by context
	for {
		bytesRead, readErr := io.ReadFull(inputFileHandle, contextBuffer)
		if bytesRead <= 0 {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			klog.Fatal(readErr)
		}
		context := contextBuffer[:bytesRead]
		var tokens *types.Tokens
		if input32Bit {
			tokens = types.TokensFromBin32(&context)
		} else {
			tokens = types.TokensFromBin(&context)
		}
		encoded, err := retokenize(inputTokenizer, outputTokenizer, *tokens,
			*contextSize)
		if err != nil {
			klog.Fatal(err)
		}
		bytesToWrite, err := encoded.ToBin(output32Bit)
		if err != nil {
			klog.Fatal(err)
		}
		bytesWritten, writeErr := outputFileHandle.Write(*bytesToWrite)
		if writeErr != nil {
			klog.Fatal(writeErr)
		}
		if bytesWritten != len(*bytesToWrite) {
			klog.Fatal("Could not write full context")
		}
		if *showContexts {
			klog.Infof("Input: %s", inputTokenizer.Decode(*tokens))
			klog.Infof("Output: %s", outputTokenizer.Decode(encoded))
		}
		if readErr == io.ErrUnexpectedEOF {
			break
		}
	}
}
