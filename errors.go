package byte_bpe

import "github.com/pkg/errors"

var (
	// ErrConfiguration reports an invalid encoder setup: an unknown codec
	// type, a bad dropout rate, malformed special tokens, or a request for a
	// special token that is not declared.
	ErrConfiguration = errors.New("byte_bpe: configuration error")

	// ErrEncodingLength is returned when the natural encoded length exceeds
	// the requested padded size. Sequences are never truncated.
	ErrEncodingLength = errors.New("byte_bpe: encoded sequence longer than padded size")

	// ErrCorruptVocabulary is returned when a merge table has forward,
	// cyclic or dangling references, or two ids expanding to the same bytes.
	ErrCorruptVocabulary = errors.New("byte_bpe: corrupt vocabulary")
)
