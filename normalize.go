package byte_bpe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose into an ASCII base and a combining mark.
var asciiReplacer = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "Æ", "AE", "œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "đ", "d", "Đ", "D", "ł", "l", "Ł", "L",
	"þ", "th", "Þ", "Th", "ð", "d", "Ð", "D", "ı", "i",
	"‘", "'", "’", "'", "‚", ",", "“", "\"", "”", "\"", "„", "\"",
	"«", "\"", "»", "\"", "–", "-", "—", "-", "…", "...",
	"\u00a0", " ",
)

// newASCIIFolder decomposes text, drops the combining marks and then
// anything still outside ASCII. Transformers carry state, so each call
// builds its own.
func newASCIIFolder() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return r > unicode.MaxASCII
		})),
	)
}

// FoldASCII transliterates text to ASCII: accents are stripped, a few
// letters are spelled out, and other non-ASCII characters are removed.
func FoldASCII(text string) string {
	folded, _, err := transform.String(newASCIIFolder(),
		asciiReplacer.Replace(text))
	if err != nil {
		return strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, text)
	}
	return folded
}

func (encoder *BytePairEncoder) normalize(text string) string {
	if encoder.ascii {
		text = FoldASCII(text)
	}
	if encoder.lowercase {
		text = strings.ToLower(text)
	}
	return text
}
