package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wbrown/byte_bpe"
	"k8s.io/klog/v2"
)

// A REPL for interacting with a `byte_bpe` tokenizer.

func main() {
	klog.InitFlags(nil)
	tokenizerOpt := flag.String("tokenizer", "tokenizer.json",
		"The tokenizer dump to use, as a path or URL.")
	dropout := flag.Bool("dropout", false,
		"Apply the tokenizer's BPE-dropout.")
	flag.Parse()

	tokenizer, err := byte_bpe.Load(*tokenizerOpt)
	if err != nil {
		klog.Fatal(err)
	}
	fmt.Println(tokenizer)
	encodeOpts := []byte_bpe.EncodeOption{}
	if !*dropout {
		encodeOpts = append(encodeOpts, byte_bpe.WithoutDropout())
	}
	specials := tokenizer.SpecialTokens()
	firstSpecial := tokenizer.NTokens() - len(specials)

	reader := bufio.NewReader(os.Stdin)
	// Provide a REPL
	for {
		fmt.Print(">>> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			klog.Fatal(err)
		}
		// Remove trailing newline and replace \n with newline.
		input = strings.Replace(strings.TrimSuffix(input, "\n"), "\\n",
			"\n", -1)

		tokens, err := tokenizer.Encode(input, encodeOpts...)
		if err != nil {
			klog.Error(err)
			continue
		}
		fmt.Printf("%v\n", tokens)
		for _, token := range tokens {
			if piece, ok := tokenizer.TokenBytes(token); ok {
				fmt.Printf("|%q", piece)
			} else if int(token) < tokenizer.NTokens() {
				fmt.Printf("|<%s>", specials[int(token)-firstSpecial])
			}
		}
		fmt.Printf("\n")
	}
}
