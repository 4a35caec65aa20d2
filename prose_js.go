//go:build wasip1 || js

package byte_bpe

import "github.com/pkg/errors"

func (encoder *BytePairEncoder) TrimSentences(tokens Tokens,
	direction TrimDirection, limit uint) (Tokens, error) {
	return nil, errors.New("TrimSentences is not implemented")
}
