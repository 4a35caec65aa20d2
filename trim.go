package byte_bpe

import (
	"strings"
)

type TrimDirection uint

const (
	TrimTop    TrimDirection = iota
	TrimBottom TrimDirection = iota
	TrimNone   TrimDirection = iota
)

// trimPieces keeps as many whole pieces as fit in limit tokens, dropping
// pieces from the top or the bottom of the text. Pieces are encoded
// separately and without dropout.
func (encoder *BytePairEncoder) trimPieces(pieces []string,
	direction TrimDirection, limit uint) (Tokens, error) {
	var start, end, step int
	switch direction {
	case TrimTop:
		start = len(pieces) - 1
		end = -1
		step = -1
	case TrimBottom:
		start = 0
		end = len(pieces)
		step = 1
	default:
		return Tokens{}, nil
	}
	accTokens := make(Tokens, 0, limit)
	for idx := start; idx != end; idx += step {
		newTokens, err := encoder.Encode(pieces[idx], WithoutDropout())
		if err != nil {
			return accTokens, err
		}
		if len(newTokens)+len(accTokens) > int(limit) {
			break
		}
		switch direction {
		case TrimTop:
			accTokens = append(newTokens, accTokens...)
		case TrimBottom:
			accTokens = append(accTokens, newTokens...)
		}
	}
	return accTokens, nil
}

// TrimNewlines fits tokens into limit by dropping whole lines. TrimTop
// drops lines from the start of the text, TrimBottom from the end.
// Tokens already within limit are returned as is.
func (encoder *BytePairEncoder) TrimNewlines(tokens Tokens,
	direction TrimDirection, limit uint) (Tokens, error) {
	if uint(len(tokens)) <= limit {
		return tokens, nil
	} else if direction == TrimNone {
		return Tokens{}, nil
	}
	lines := strings.SplitAfter(encoder.Decode(tokens), "\n")
	return encoder.trimPieces(lines, direction, limit)
}
