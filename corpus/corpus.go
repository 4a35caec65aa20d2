// Package corpus produces training batches for byte_bpe.BytePairEncoder.Fit
// from in-memory strings and directories of `.txt` files.
package corpus

import (
	"io"
	"math/rand"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/pkg/errors"
	"github.com/wbrown/byte_bpe"
	"github.com/wbrown/byte_bpe/resources"
	"k8s.io/klog/v2"
)

// FromBatches yields each batch once, then io.EOF.
func FromBatches(batches [][]string) byte_bpe.BatchIterator {
	idx := 0
	return func() ([]string, error) {
		if idx >= len(batches) {
			return nil, io.EOF
		}
		idx++
		return batches[idx-1], nil
	}
}

// Batches cuts items into consecutive batches of batchSize, the last one
// possibly shorter.
func Batches(items []string, batchSize int) (byte_bpe.BatchIterator, error) {
	if batchSize <= 0 {
		return nil, errors.Wrapf(byte_bpe.ErrConfiguration,
			"batch size must be positive, got %d", batchSize)
	}
	batches := make([][]string, 0, len(items)/batchSize+1)
	for begin := 0; begin < len(items); begin += batchSize {
		end := begin + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[begin:end])
	}
	return FromBatches(batches), nil
}

// Sample yields random subsets of batchSize items forever, a fresh draw
// for every batch. Training on it stops on the vocabulary size or the
// frequency threshold, or when its context is cancelled.
func Sample(items []string, batchSize int,
	seed int64) (byte_bpe.BatchIterator, error) {
	if batchSize <= 0 {
		return nil, errors.Wrapf(byte_bpe.ErrConfiguration,
			"batch size must be positive, got %d", batchSize)
	}
	if batchSize > len(items) {
		batchSize = len(items)
	}
	rng := rand.New(rand.NewSource(seed))
	return func() ([]string, error) {
		if len(items) == 0 {
			return nil, io.EOF
		}
		batch := make([]string, batchSize)
		for idx, pick := range rng.Perm(len(items))[:batchSize] {
			batch[idx] = items[pick]
		}
		return batch, nil
	}, nil
}

// Sentences splits text into sentences.
func Sentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return nil, err
	}
	sentences := make([]string, 0, len(doc.Sentences()))
	for _, sentence := range doc.Sentences() {
		if trimmed := strings.TrimSpace(sentence.Text); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences, nil
}

// Lines returns the non-blank lines of text.
func Lines(text string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

type ReadOptions struct {
	// Sentences splits texts into sentences instead of lines.
	Sentences bool
	// Sanitize cleans up whitespace before splitting.
	Sanitize bool
	// Order is one of the SortPaths orderings.
	Order string
	Seed  int64
}

// ReadTexts recursively reads the `.txt` files under dirPath and returns
// their lines or sentences.
func ReadTexts(dirPath string, opts ReadOptions) ([]string, error) {
	matches, err := GlobTexts(dirPath)
	if err != nil {
		return nil, err
	}
	if err := SortPaths(matches, opts.Order,
		rand.New(rand.NewSource(opts.Seed))); err != nil {
		return nil, err
	}
	items := make([]string, 0)
	for _, match := range matches {
		if match.Dir {
			continue
		}
		klog.V(1).Infof("Reading %s", match.Path)
		var text string
		if err := resources.WithMapped(match.Path, func(mapped []byte) error {
			text = string(mapped)
			return nil
		}); err != nil {
			return nil, err
		}
		if opts.Sanitize {
			text = SanitizeText(text)
		}
		if opts.Sentences {
			sentences, err := Sentences(text)
			if err != nil {
				return nil, errors.Wrapf(err, "splitting %s", match.Path)
			}
			items = append(items, sentences...)
		} else {
			items = append(items, Lines(text)...)
		}
	}
	return items, nil
}
