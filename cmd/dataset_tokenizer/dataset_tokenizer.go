package main

import (
	"flag"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/corpus"
	"github.com/wbrown/byte_bpe/resources"
	"github.com/wbrown/byte_bpe/types"
	"k8s.io/klog/v2"
)

// TextsIterator yields the path and contents of the next text, and io.EOF
// after the last one.
type TextsIterator func() (string, string, error)

// ReadTexts
// Consumes a directory path and recursively scans for `.txt` files, producing
// a TextsIterator function that yields the texts in the requested order.
func ReadTexts(dirPath string, sanitize bool, sortSpec string,
	seed int64) (TextsIterator, error) {
	matches, err := corpus.GlobTexts(dirPath)
	if err != nil {
		return nil, err
	}
	if err := corpus.SortPaths(matches, sortSpec,
		rand.New(rand.NewSource(seed))); err != nil {
		return nil, err
	}
	matchIdx := 0
	return func() (string, string, error) {
		for matchIdx < len(matches) {
			match := matches[matchIdx]
			matchIdx++
			if match.Dir {
				continue
			}
			var text string
			if err := resources.WithMapped(match.Path,
				func(mapped []byte) error {
					text = string(mapped)
					return nil
				}); err != nil {
				return match.Path, "", err
			}
			if sanitize {
				text = corpus.SanitizeText(text)
			}
			klog.V(1).Infof("Reading %s", match.Path)
			return match.Path, text, nil
		}
		return "", "", io.EOF
	}, nil
}

// TextsTokenizer
// A struct that encapsulates the configuration for a streaming tokenizer.
type TextsTokenizer struct {
	ContextSize int
	// Boundary, when set, is a token contexts are preferably cut after.
	Boundary   string
	StartToken bool
	EndToken   bool
	Dropout    bool
}

// NewTextsTokenizer
// Creates a new TextsTokenizer struct with the default configuration.
func NewTextsTokenizer() TextsTokenizer {
	return TextsTokenizer{
		ContextSize: 2048,
		Boundary:    "\n",
		EndToken:    true,
	}
}

// getAndCheckToken
// Check if s is a special token name or a valid token via tokenizer table
// lookup; if not, we try encoding and checking if it is a valid single
// token returned.
func getAndCheckToken(t *byte_bpe.BytePairEncoder, s string,
	id string) (types.Token, error) {
	if token, err := t.SpecialToken(s); err == nil {
		return token, nil
	}
	s = strings.ReplaceAll(s, "\\n", "\n")
	if token := t.Get(s); token != nil {
		return *token, nil
	}
	if tokenId, err := strconv.Atoi(s); err == nil && tokenId >= 0 &&
		tokenId < t.NTokens() {
		return types.Token(tokenId), nil
	}
	tokens, err := t.Encode(s, byte_bpe.WithoutDropout())
	if err != nil || len(tokens) != 1 {
		return 0, errors.Errorf("'%s' is not a valid token for %s", s, id)
	}
	return tokens[0], nil
}

// ContextsIterator returns the next context, or nil once all texts are
// consumed.
type ContextsIterator func() (types.Tokens, error)

// TokenizeTexts
// Consumes a TextsIterator and produces a ContextsIterator iterator function
// that returns tokenized contexts that are fixed and padded out to
// `ContextSize`.
func (tt TextsTokenizer) TokenizeTexts(encoder *byte_bpe.BytePairEncoder,
	nextText TextsIterator) (ContextsIterator, error) {
	if tt.ContextSize < 1 {
		return nil, errors.Errorf("context size must be positive, got %d",
			tt.ContextSize)
	}
	padToken, err := encoder.PadToken()
	if err != nil {
		return nil, err
	}
	var boundary *types.Token
	if tt.Boundary != "" {
		token, err := getAndCheckToken(encoder, tt.Boundary, "Boundary")
		if err != nil {
			return nil, err
		}
		boundary = &token
	}
	encodeOpts := make([]byte_bpe.EncodeOption, 0, 3)
	if !tt.Dropout {
		encodeOpts = append(encodeOpts, byte_bpe.WithoutDropout())
	}
	if tt.StartToken {
		encodeOpts = append(encodeOpts, byte_bpe.WithStartToken())
	}
	if tt.EndToken {
		encodeOpts = append(encodeOpts, byte_bpe.WithEndToken())
	}

	var tokens types.Tokens
	done := false
	// Keep at least two contexts worth of tokens buffered.
	moreTokens := func() error {
		for !done && len(tokens) < tt.ContextSize*2 {
			path, text, err := nextText()
			if err == io.EOF {
				done = true
				break
			} else if err != nil {
				return errors.Wrapf(err, "reading %s", path)
			}
			encoded, err := encoder.Encode(text, encodeOpts...)
			if err != nil {
				return errors.Wrapf(err, "tokenizing %s", path)
			}
			tokens = append(tokens, encoded...)
		}
		return nil
	}

	return func() (types.Tokens, error) {
		if err := moreTokens(); err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			return nil, nil
		}
		end := tt.ContextSize
		if end >= len(tokens) {
			end = len(tokens)
		} else if boundary != nil {
			// Cut after the last boundary token in the window, if any.
			for idx := end - 1; idx > 0; idx-- {
				if tokens[idx] == *boundary {
					end = idx + 1
					break
				}
			}
		}
		context := make(types.Tokens, end, tt.ContextSize)
		copy(context, tokens[:end])
		tokens = tokens[end:]
		for len(context) < tt.ContextSize {
			context = append(context, padToken)
		}
		return context, nil
	}, nil
}

// WriteContexts
// Consumes a ContextsIterator function and serializes the contexts to an
// aligned binary file. `sampling` is the percentage of contexts kept, and
// `shuffle` swaps each new context with a random earlier one.
func WriteContexts(outPath string, nextContext ContextsIterator,
	sampling int, shuffle bool, use32 bool, rng *rand.Rand) (int, error) {
	totalTokens := 0
	outFile, err := os.OpenFile(outPath, os.O_TRUNC|os.O_RDWR|os.O_CREATE,
		0644)
	if err != nil {
		return 0, err
	}
	defer outFile.Close()

	endpos := 0
	samplingIdx := 0
	var buf []byte
	for {
		context, err := nextContext()
		if err != nil {
			return totalTokens, err
		} else if context == nil {
			break
		}
		// Keep `sampling` percent of contexts, in steps of 5%.
		keep := sampling == 100 || (samplingIdx%20) < sampling/5
		samplingIdx++
		if !keep {
			continue
		}
		binContext, err := context.ToBin(use32)
		if err != nil {
			return totalTokens, err
		}
		contextSize := len(*binContext)
		if buf == nil {
			buf = make([]byte, contextSize)
		}

		if shuffle && endpos > 0 {
			// Move the context at a random earlier slot to the end, and
			// write the new context in its place.
			target := int64(rng.Intn(endpos/contextSize)) *
				int64(contextSize)
			if _, err := outFile.ReadAt(buf, target); err != nil {
				return totalTokens, err
			}
			if _, err := outFile.WriteAt(*binContext, target); err != nil {
				return totalTokens, err
			}
			if _, err := outFile.Write(buf); err != nil {
				return totalTokens, err
			}
		} else if _, err := outFile.Write(*binContext); err != nil {
			return totalTokens, err
		}

		totalTokens += len(context)
		endpos += contextSize
	}
	return totalTokens, nil
}

func main() {
	klog.InitFlags(nil)
	tokenizerId := flag.String("tokenizer", "tokenizer.json",
		"tokenizer dump to use, as a path or URL")
	contextSize := flag.Int("context", 2048, "context size")
	boundaryToken := flag.String("boundary", "\n",
		"boundary token to split contexts on, can be a string token, "+
			"a special token name or a token id, empty for none")
	startToken := flag.Bool("start", false,
		"prefix each text with the START token")
	noEndToken := flag.Bool("no_end", false,
		"do not end each text with the END token")
	dropout := flag.Bool("dropout", false,
		"apply the tokenizer's BPE-dropout")
	out32 := flag.Bool("out32", false,
		"force output tokens to be written as 32-bit")
	outputFile := flag.String("output", "tokenized.chunk",
		"tokenized output file")
	inputDir := flag.String("input", "",
		"input directory")
	forceRetokenization := flag.Bool("retokenize", false,
		"force retokenization even if tokenizer output is newer")
	sanitizeBool := flag.Bool("sanitize", false,
		"sanitize inputs of whitespace issues")
	reorderPaths := flag.String("reorder", "",
		"reorder input files to specification [size_ascending, "+
			"size_descending, path_ascending, path_descending, random, "+
			"shuffle]")
	sampling := flag.Int("sampling", 100, "a integer value from 0-100 "+
		"which tells the tokenizer how many chunks to keep in %, 60 "+
		"keeps 60% chunks")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	if *inputDir == "" {
		flag.Usage()
		klog.Fatal("Must provide -input for directory source")
	}
	if *sampling > 100 || *sampling < 0 {
		klog.Fatal("Sampling parameter out of the 0-100 bounds")
	}

	klog.Infof("Tokenizer definition: %s", *tokenizerId)
	klog.Infof("Tokenizer input source: %s", *inputDir)
	klog.Infof("Tokenizer output: %s", *outputFile)
	klog.Infof("Tokenizer reordering method: %s", *reorderPaths)
	klog.Infof("Sampling amount (in %% tokens kept): %d%%", *sampling)

	if !*forceRetokenization {
		if outStat, outErr := os.Stat(*outputFile); !errors.Is(outErr,
			os.ErrNotExist) && outErr != nil {
			klog.Fatal(outErr)
		} else if errors.Is(outErr, os.ErrNotExist) {
			klog.Infof("Creating %s", *outputFile)
		} else if newestPath, newestModTime, newestErr := corpus.FindNewestText(
			*inputDir); newestErr != nil {
			klog.Fatal(newestErr)
		} else if newestModTime.Before(outStat.ModTime()) {
			klog.Infof("Newest source `%s` is older than `%s`, "+
				"not retokenizing. "+
				"Use -retokenize to force retokenization.", newestPath,
				*outputFile)
			os.Exit(0)
		}
	}

	encoder, err := byte_bpe.Load(*tokenizerId, byte_bpe.WithSeed(*seed))
	if err != nil {
		klog.Fatal(err)
	}
	textsTokenizer := NewTextsTokenizer()
	textsTokenizer.ContextSize = *contextSize
	textsTokenizer.Boundary = *boundaryToken
	textsTokenizer.StartToken = *startToken
	textsTokenizer.EndToken = !*noEndToken
	textsTokenizer.Dropout = *dropout

	order := *reorderPaths
	if order == "shuffle" {
		order = corpus.OrderNone
	}
	nextText, err := ReadTexts(*inputDir, *sanitizeBool, order, *seed)
	if err != nil {
		klog.Fatal(err)
	}
	begin := time.Now()
	contexts, tokErr := textsTokenizer.TokenizeTexts(encoder, nextText)
	if tokErr != nil {
		klog.Fatal(tokErr)
	}
	use32 := *out32 || encoder.NTokens() > 65536
	total, writeErr := WriteContexts(*outputFile, contexts, *sampling,
		*reorderPaths == "shuffle", use32, rand.New(rand.NewSource(*seed)))
	if writeErr != nil {
		klog.Fatal(writeErr)
	}
	duration := time.Since(begin).Seconds()
	klog.Infof("%s tokens in %0.2fs, %0.2f tokens/s",
		humanize.Comma(int64(total)), duration, float64(total)/duration)
	klog.Flush()
}
