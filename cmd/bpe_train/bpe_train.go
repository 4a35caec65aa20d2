package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/corpus"
	"k8s.io/klog/v2"
)

// Trains a byte-level BPE vocabulary on a directory of `.txt` files. An
// interrupt stops training cleanly and the merges learned so far are saved.

// encoderOptions only overrides the normalization settings of a loaded
// tokenizer when their flags were given on the command line.
func encoderOptions(explicit map[string]bool, ascii, lowercase bool,
	dropout float64, seed int64) []byte_bpe.Option {
	opts := []byte_bpe.Option{byte_bpe.WithSeed(seed)}
	if explicit["ascii"] {
		opts = append(opts, byte_bpe.WithASCII(ascii))
	}
	if explicit["lowercase"] {
		opts = append(opts, byte_bpe.WithLowercase(lowercase))
	}
	if dropout >= 0 {
		opts = append(opts, byte_bpe.WithDropout(dropout))
	}
	return opts
}

func main() {
	klog.InitFlags(nil)
	inputDir := flag.String("input", "", "directory of .txt files")
	outputFile := flag.String("output", "tokenizer.json",
		"where to write the tokenizer dump")
	initial := flag.String("init", "",
		"tokenizer dump (path or URL) to continue training from")
	maxVocab := flag.Int("max_vocab", 5000,
		"maximum number of byte and merge tokens")
	minFrequency := flag.Float64("min_frequency", 1.0e-6,
		"minimum frequency of a new token")
	batchSize := flag.Int("batch_size", 1000,
		"number of lines or sentences per batch")
	dropout := flag.Float64("dropout", -1,
		"BPE-dropout rate, negative for none")
	ascii := flag.Bool("ascii", false, "fold texts to ASCII")
	lowercase := flag.Bool("lowercase", false, "lowercase texts")
	preTokenize := flag.Bool("pre_tokenize", false,
		"never merge across words, numbers and punctuation")
	countDuplicates := flag.Bool("count_duplicates", false,
		"split duplicated strings of a batch only once")
	sentences := flag.Bool("sentences", false,
		"train on sentences instead of lines")
	sanitize := flag.Bool("sanitize", false,
		"sanitize inputs of whitespace issues")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()
	if *inputDir == "" {
		flag.Usage()
		klog.Fatal("Must provide -input for directory source")
	}

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	opts := encoderOptions(explicit, *ascii, *lowercase, *dropout, *seed)
	var encoder *byte_bpe.BytePairEncoder
	var err error
	if *initial != "" {
		encoder, err = byte_bpe.Load(*initial, opts...)
	} else {
		encoder, err = byte_bpe.NewBytePairEncoder(opts...)
	}
	if err != nil {
		klog.Fatal(err)
	}

	items, err := corpus.ReadTexts(*inputDir, corpus.ReadOptions{
		Sentences: *sentences,
		Sanitize:  *sanitize,
	})
	if err != nil {
		klog.Fatal(err)
	}
	klog.Infof("Training on %s strings from %s", humanize.Comma(
		int64(len(items))), *inputDir)
	batches, err := corpus.Sample(items, *batchSize, *seed)
	if err != nil {
		klog.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cfg := byte_bpe.FitConfig{
		MaxVocabularySize: *maxVocab,
		MinFrequency:      *minFrequency,
		PreTokenize:       *preTokenize,
		CountDuplicates:   *countDuplicates,
	}
	begin := time.Now()
	result, err := encoder.Fit(ctx, batches, cfg)
	if err != nil {
		klog.Fatal(err)
	}
	klog.Infof("%s merges in %0.2fs (%s), %s", humanize.Comma(
		int64(result.Merges)), time.Since(begin).Seconds(), result.Reason,
		encoder)

	if err := encoder.Save(*outputFile); err != nil {
		klog.Fatal(err)
	}
	klog.Infof("Wrote %s", *outputFile)
	klog.Flush()
}
