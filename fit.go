package byte_bpe

import (
	"context"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BatchIterator yields the next batch of training strings. It returns
// io.EOF once the corpus is exhausted; any other error aborts training.
type BatchIterator func() ([]string, error)

type StopReason int

const (
	StopExhausted StopReason = iota
	StopMaxVocabulary
	StopNoPairs
	StopMinFrequency
	StopInterrupted
)

func (reason StopReason) String() string {
	switch reason {
	case StopExhausted:
		return "corpus exhausted"
	case StopMaxVocabulary:
		return "maximum number of tokens reached"
	case StopNoPairs:
		return "no more pairs to merge"
	case StopMinFrequency:
		return "minimum token frequency reached"
	case StopInterrupted:
		return "interrupted"
	}
	return "unknown"
}

type FitConfig struct {
	// MaxVocabularySize bounds the number of byte and merge tokens,
	// special tokens excluded.
	MaxVocabularySize int
	// MinFrequency is the smallest count/(total-count) ratio a merge
	// needs to be registered.
	MinFrequency float64
	// PreTokenize splits strings into words, numbers and punctuation
	// before counting, so merges never cross those boundaries.
	PreTokenize bool
	// CountDuplicates splits each distinct string of a batch once and
	// weighs its pairs by its multiplicity.
	CountDuplicates bool
}

func DefaultFitConfig() FitConfig {
	return FitConfig{
		MaxVocabularySize: 5000,
		MinFrequency:      1.0e-6,
	}
}

type FitResult struct {
	Merges        int
	Iterations    int
	Reason        StopReason
	LastFrequency float64
}

// pairCount is the outcome of counting one batch.
type pairCount struct {
	pair  TokenPair
	count int
	total int
}

// Fit learns at most one merge per batch, extending the current merge
// table. Training ends when the corpus runs out, the vocabulary is full,
// no pair is left, the best pair is too rare, or ctx is cancelled.
// Cancellation keeps the merges learned so far and returns a nil error.
func (encoder *BytePairEncoder) Fit(ctx context.Context,
	batches BatchIterator, cfg FitConfig) (FitResult, error) {
	result := FitResult{}
	if batches == nil {
		return result, errors.Wrap(ErrConfiguration, "nil batch iterator")
	}
	if cfg.MinFrequency < 0 || math.IsNaN(cfg.MinFrequency) {
		return result, errors.Wrapf(ErrConfiguration,
			"minimum frequency must be positive, got %v", cfg.MinFrequency)
	}
	initial := len(encoder.code)
	for {
		if len(encoder.code) >= cfg.MaxVocabularySize {
			result.Reason = StopMaxVocabulary
			break
		}
		if ctx.Err() != nil {
			result.Reason = StopInterrupted
			break
		}
		batch, err := batches()
		if errors.Is(err, io.EOF) {
			result.Reason = StopExhausted
			break
		} else if err != nil {
			return result, errors.Wrapf(err, "reading batch %d",
				result.Iterations)
		}
		result.Iterations++

		best, ok := encoder.countPairs(batch, cfg)
		if !ok {
			result.Reason = StopNoPairs
			break
		}
		frequency := math.Inf(1)
		if rest := best.total - best.count; rest > 0 {
			frequency = float64(best.count) / float64(rest)
		}
		result.LastFrequency = frequency
		if frequency < cfg.MinFrequency {
			result.Reason = StopMinFrequency
			break
		}
		if ctx.Err() != nil {
			result.Reason = StopInterrupted
			break
		}
		token, err := encoder.register(best.pair)
		if err != nil {
			return result, err
		}
		result.Merges++
		klog.V(1).Infof("Merge iteration %d: token %d = %d + %d (%q), "+
			"%d tokens, new token frequency=%.3g", result.Iterations,
			token, best.pair.Left, best.pair.Right,
			encoder.vocabulary[token], len(encoder.code), frequency)
	}
	klog.Infof("Fit stopped (%s) after %s batches: %s merges, %s tokens",
		result.Reason, humanize.Comma(int64(result.Iterations)),
		humanize.Comma(int64(len(encoder.code)-initial)),
		humanize.Comma(int64(encoder.NTokens())))
	return result, nil
}

// trainingSequences normalizes and optionally pre-tokenizes a batch, then
// optionally collapses duplicates into weights in first-occurrence order.
func (encoder *BytePairEncoder) trainingSequences(batch []string,
	cfg FitConfig) ([]string, []int) {
	sequences := make([]string, 0, len(batch))
	for _, text := range batch {
		sequences = append(sequences,
			encoder.segments(text, cfg.PreTokenize)...)
	}
	if !cfg.CountDuplicates {
		return sequences, nil
	}
	positions := make(map[string]int, len(sequences))
	unique := make([]string, 0, len(sequences))
	weights := make([]int, 0, len(sequences))
	for _, sequence := range sequences {
		if idx, ok := positions[sequence]; ok {
			weights[idx]++
			continue
		}
		positions[sequence] = len(unique)
		unique = append(unique, sequence)
		weights = append(weights, 1)
	}
	return unique, weights
}

// countPairs splits a batch with dropout and finds the most common
// adjacent pair, the earliest discovered one on ties. Pairs whose merge
// would duplicate an existing token are not counted. total is the
// weighted number of tokens in the batch.
func (encoder *BytePairEncoder) countPairs(batch []string,
	cfg FitConfig) (pairCount, bool) {
	sequences, weights := encoder.trainingSequences(batch, cfg)
	counts := make(map[TokenPair]int)
	order := make([]TokenPair, 0)
	total := 0
	for idx, sequence := range sequences {
		weight := 1
		if weights != nil {
			weight = weights[idx]
		}
		data := []byte(sequence)
		pieces := encoder.splitBytes(data, true)
		total += weight * len(pieces)
		start := 0
		for i := 1; i < len(pieces); i++ {
			left, right := pieces[i-1], pieces[i]
			end := start + len(left) + len(right)
			if _, exists := encoder.wordIndexes[string(data[start:end])]; !exists {
				pair := TokenPair{
					Left:  encoder.wordIndexes[string(left)],
					Right: encoder.wordIndexes[string(right)],
				}
				count, seen := counts[pair]
				if !seen {
					order = append(order, pair)
				}
				counts[pair] = count + weight
			}
			start += len(left)
		}
	}
	if len(order) == 0 {
		return pairCount{total: total}, false
	}
	best := pairCount{pair: order[0], count: counts[order[0]], total: total}
	for _, pair := range order[1:] {
		if counts[pair] > best.count {
			best.pair, best.count = pair, counts[pair]
		}
	}
	return best, true
}
