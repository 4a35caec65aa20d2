//go:build !wasip1 && !js

package byte_bpe

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

// sentencePieces splits text into consecutive pieces, one per sentence,
// each carrying the whitespace that follows it.
func sentencePieces(text string) ([]string, error) {
	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return nil, err
	}
	bounds := make([]int, 0)
	cursor := 0
	for _, sentence := range doc.Sentences() {
		sentenceIdx := strings.Index(text[cursor:], sentence.Text)
		if sentenceIdx < 0 {
			continue
		}
		sentenceIdx += cursor
		if len(bounds) == 0 {
			sentenceIdx = 0
		}
		bounds = append(bounds, sentenceIdx)
		cursor = sentenceIdx + len(sentence.Text)
	}
	if len(bounds) == 0 {
		return []string{text}, nil
	}
	pieces := make([]string, 0, len(bounds))
	for idx, begin := range bounds {
		end := len(text)
		if idx+1 < len(bounds) {
			end = bounds[idx+1]
		}
		pieces = append(pieces, text[begin:end])
	}
	return pieces, nil
}

// TrimSentences fits tokens into limit by dropping whole sentences, in the
// same way TrimNewlines drops lines.
func (encoder *BytePairEncoder) TrimSentences(tokens Tokens,
	direction TrimDirection, limit uint) (Tokens, error) {
	if uint(len(tokens)) <= limit {
		return tokens, nil
	} else if direction == TrimNone {
		return Tokens{}, nil
	}
	pieces, err := sentencePieces(encoder.Decode(tokens))
	if err != nil {
		return Tokens{}, err
	}
	return encoder.trimPieces(pieces, direction, limit)
}
