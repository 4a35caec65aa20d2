package byte_bpe

import (
	"github.com/dlclark/regexp2"
	"k8s.io/klog/v2"
)

// Leading whitespace, then runs of letters, of digits, or of anything
// else, each with the whitespace that follows it.
const PRE_TOKENIZE_REGEX = `^\s+|(?:[\p{L}\p{M}]+|\p{N}+|[^\s\p{L}\p{M}\p{N}]+)\s*`

var preTokenizePat = regexp2.MustCompile(PRE_TOKENIZE_REGEX, regexp2.None)

// PreTokenize cuts text into chunks of letters, digits or punctuation,
// each carrying its trailing whitespace. The chunks concatenate back to
// text.
func PreTokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	chunks := make([]string, 0, len(text)/4+1)
	covered := 0
	m, err := preTokenizePat.FindStringMatch(text)
	for m != nil && err == nil {
		chunks = append(chunks, m.String())
		covered += len(m.String())
		m, err = preTokenizePat.FindNextMatch(m)
	}
	if err != nil || covered != len(text) {
		// Only a regex engine failure gets here; fall back to one chunk
		// rather than losing text.
		klog.Warningf("Pre-tokenization failed on %d bytes, keeping them "+
			"as a single chunk: %v", len(text), err)
		return []string{text}
	}
	return chunks
}
