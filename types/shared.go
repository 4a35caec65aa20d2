package types

// Token is a vocabulary id. Ids 0-255 are raw bytes, followed by learned
// merges, followed by the special tokens.
type Token uint32
type Tokens []Token

const (
	TokenSize   = 2
	TokenSize32 = 4
)

// TokenPair is an ordered pair of adjacent tokens, the unit of a merge.
type TokenPair struct {
	Left  Token
	Right Token
}
