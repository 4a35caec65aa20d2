package byte_bpe

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/wbrown/byte_bpe/types"
	textunicode "golang.org/x/text/encoding/unicode"
	"k8s.io/klog/v2"
)

type Token = types.Token
type Tokens = types.Tokens
type TokenPair = types.TokenPair

const BPE_LRU_SZ = 65536

// Splits of longer inputs are not cached; the cache is meant for words and
// pre-tokenized chunks.
const SPLIT_CACHE_MAX_LEN = 256

// NumBytes is the number of raw byte tokens, ids 0-255.
const NumBytes = 256

const (
	SpecialStart = "START"
	SpecialPad   = "PAD"
	SpecialEnd   = "END"
)

// DefaultSpecialTokens is the default special token order. The order fixes
// the ids of the special tokens.
var DefaultSpecialTokens = []string{SpecialStart, SpecialPad, SpecialEnd}

// Tokenizer is what model code needs from a tokenizer: sizing the
// embedding table, converting text both ways, and resolving special tokens.
type Tokenizer interface {
	Encode(text string, opts ...EncodeOption) (Tokens, error)
	Decode(tokens Tokens) string
	Split(text string, withDropout bool) [][]byte
	NTokens() int
	SpecialToken(name string) (Token, error)
}

// Compile time assert that BytePairEncoder implements Tokenizer.
var _ Tokenizer = &BytePairEncoder{}

// BytePairEncoder is a byte-level BPE tokenizer. It owns its merge table
// and everything derived from it; an instance must not be used from several
// goroutines at once, but separate instances are independent.
//
// Invariants:
//   - code[i] == [i] for every byte id i < 256, and every merge id
//     256 <= i < len(code) maps to two ids smaller than i.
//   - vocabulary[i] is the byte expansion of id i, and no two ids share one.
//   - tree and wordIndexes hold exactly the entries of vocabulary.
//   - special token k has id len(code)+k.
type BytePairEncoder struct {
	code           map[Token][]Token
	vocabulary     [][]byte
	wordIndexes    map[string]Token
	tree           *ByteTree
	specials       []string
	specialIndexes map[string]Token
	dropout        *float64
	ascii          bool
	lowercase      bool
	rng            RandomSource
	Cache          *lru.ARCCache
	LruHits        int
	LruMisses      int
}

// Option configures a BytePairEncoder at construction.
type Option func(*encoderSetup) error

type encoderSetup struct {
	code     map[Token][]Token
	dropout  *float64
	ascii    bool
	lower    bool
	specials []string
	rng      RandomSource
}

// WithCode starts the encoder from an existing merge table instead of the
// bare 256 byte tokens.
func WithCode(code map[Token][]Token) Option {
	return func(setup *encoderSetup) error {
		setup.code = code
		return nil
	}
}

// WithDropout sets the probability of skipping a merge while splitting.
func WithDropout(p float64) Option {
	return func(setup *encoderSetup) error {
		if err := validateDropout(&p); err != nil {
			return err
		}
		setup.dropout = &p
		return nil
	}
}

// WithASCII folds text to ASCII before tokenizing. Decoding then does not
// reproduce the input.
func WithASCII(ascii bool) Option {
	return func(setup *encoderSetup) error {
		setup.ascii = ascii
		return nil
	}
}

// WithLowercase lowercases text before tokenizing.
func WithLowercase(lowercase bool) Option {
	return func(setup *encoderSetup) error {
		setup.lower = lowercase
		return nil
	}
}

func WithSpecialTokens(names ...string) Option {
	return func(setup *encoderSetup) error {
		setup.specials = append([]string{}, names...)
		return nil
	}
}

// WithRandomSource injects the source used for dropout decisions.
func WithRandomSource(rng RandomSource) Option {
	return func(setup *encoderSetup) error {
		if rng == nil {
			return errors.Wrap(ErrConfiguration, "nil random source")
		}
		setup.rng = rng
		return nil
	}
}

func WithSeed(seed int64) Option {
	return WithRandomSource(rand.New(rand.NewSource(seed)))
}

func validateDropout(p *float64) error {
	if p != nil && (*p < 0 || *p > 1 || *p != *p) {
		return errors.Wrapf(ErrConfiguration,
			"dropout must be in [0, 1], got %v", *p)
	}
	return nil
}

// ByteCode returns the merge table of an untrained encoder: each byte maps
// to itself.
func ByteCode() map[Token][]Token {
	code := make(map[Token][]Token, NumBytes)
	for i := Token(0); i < NumBytes; i++ {
		code[i] = []Token{i}
	}
	return code
}

// NewBytePairEncoder builds an encoder. Without options it knows only the
// 256 raw bytes and the START, PAD and END special tokens.
func NewBytePairEncoder(opts ...Option) (*BytePairEncoder, error) {
	setup := &encoderSetup{
		code:     ByteCode(),
		specials: DefaultSpecialTokens,
	}
	for _, opt := range opts {
		if err := opt(setup); err != nil {
			return nil, err
		}
	}
	if setup.rng == nil {
		setup.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	cache, err := lru.NewARC(BPE_LRU_SZ)
	if err != nil {
		return nil, err
	}
	encoder := &BytePairEncoder{
		dropout:   setup.dropout,
		ascii:     setup.ascii,
		lowercase: setup.lower,
		rng:       setup.rng,
		Cache:     cache,
	}
	if err := encoder.SetSpecialTokens(setup.specials...); err != nil {
		return nil, err
	}
	if err := encoder.Rebuild(setup.code); err != nil {
		return nil, err
	}
	return encoder, nil
}

// vocabularyState is everything derived from a merge table.
type vocabularyState struct {
	code        map[Token][]Token
	vocabulary  [][]byte
	wordIndexes map[string]Token
	tree        *ByteTree
}

// buildVocabulary validates code and derives the byte cache, the word
// index and the tree from it.
func buildVocabulary(code map[Token][]Token) (*vocabularyState, error) {
	n := len(code)
	if n < NumBytes {
		return nil, errors.Wrapf(ErrCorruptVocabulary,
			"merge table has %d entries, the %d byte tokens are missing",
			n, NumBytes)
	}
	owned := make(map[Token][]Token, n)
	resolved := make([][]byte, n)
	pending := make([]Token, 0, n-NumBytes)
	for id, parts := range code {
		if int(id) >= n {
			return nil, errors.Wrapf(ErrCorruptVocabulary,
				"token %d is out of range for %d entries", id, n)
		}
		if id < NumBytes {
			if len(parts) != 1 || parts[0] != id {
				return nil, errors.Wrapf(ErrCorruptVocabulary,
					"byte token %d must map to itself, got %v", id, parts)
			}
			resolved[id] = []byte{byte(id)}
		} else {
			if len(parts) != 2 {
				return nil, errors.Wrapf(ErrCorruptVocabulary,
					"merge token %d must have 2 constituents, got %v",
					id, parts)
			}
			for _, part := range parts {
				if part >= id {
					return nil, errors.Wrapf(ErrCorruptVocabulary,
						"merge token %d references token %d", id, part)
				}
			}
			pending = append(pending, id)
		}
		owned[id] = append([]Token{}, parts...)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i] < pending[j]
	})

	// Resolve bottom-up until nothing is left. A pass that makes no
	// progress means a reference can never be resolved.
	for len(pending) > 0 {
		remaining := make([]Token, 0, len(pending))
		for _, id := range pending {
			left, right := resolved[owned[id][0]], resolved[owned[id][1]]
			if left == nil || right == nil {
				remaining = append(remaining, id)
				continue
			}
			expansion := make([]byte, 0, len(left)+len(right))
			expansion = append(expansion, left...)
			resolved[id] = append(expansion, right...)
		}
		if len(remaining) == len(pending) {
			return nil, errors.Wrapf(ErrCorruptVocabulary,
				"%d merge tokens cannot be resolved, first is %d",
				len(remaining), remaining[0])
		}
		pending = remaining
	}

	wordIndexes := make(map[string]Token, n)
	tree := NewByteTree()
	for id := 0; id < n; id++ {
		word := string(resolved[id])
		if prior, ok := wordIndexes[word]; ok {
			return nil, errors.Wrapf(ErrCorruptVocabulary,
				"tokens %d and %d both expand to %q", prior, id, word)
		}
		wordIndexes[word] = Token(id)
		if id >= NumBytes {
			if err := tree.Insert(resolved[id], Token(id)); err != nil {
				return nil, err
			}
		}
	}
	return &vocabularyState{owned, resolved, wordIndexes, tree}, nil
}

// Rebuild replaces the merge table wholesale and recomputes the byte
// cache, the word index and the tree. On error the encoder is unchanged.
func (encoder *BytePairEncoder) Rebuild(code map[Token][]Token) error {
	state, err := buildVocabulary(code)
	if err != nil {
		return err
	}
	encoder.code = state.code
	encoder.vocabulary = state.vocabulary
	encoder.wordIndexes = state.wordIndexes
	encoder.tree = state.tree
	encoder.indexSpecials()
	encoder.Cache.Purge()
	return nil
}

// register adds a merge of pair as the next token id. Every derived
// structure is updated before it returns, so a registration is never seen
// half done. The caller guarantees the merged bytes are not yet a token.
func (encoder *BytePairEncoder) register(pair TokenPair) (Token, error) {
	token := Token(len(encoder.code))
	left, right := encoder.vocabulary[pair.Left], encoder.vocabulary[pair.Right]
	expansion := make([]byte, 0, len(left)+len(right))
	expansion = append(expansion, left...)
	expansion = append(expansion, right...)
	if err := encoder.tree.Insert(expansion, token); err != nil {
		return 0, err
	}
	encoder.code[token] = []Token{pair.Left, pair.Right}
	encoder.vocabulary = append(encoder.vocabulary, expansion)
	encoder.wordIndexes[string(expansion)] = token
	encoder.indexSpecials()
	encoder.Cache.Purge()
	return token, nil
}

// SetSpecialTokens declares the special tokens in order. Reordering them
// shifts their ids, which silently changes the meaning of anything encoded
// before, so it is logged loudly.
func (encoder *BytePairEncoder) SetSpecialTokens(names ...string) error {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return errors.Wrap(ErrConfiguration, "empty special token name")
		}
		if seen[name] {
			return errors.Wrapf(ErrConfiguration,
				"duplicate special token %q", name)
		}
		seen[name] = true
	}
	for idx := 0; idx < len(names) && idx < len(encoder.specials); idx++ {
		if names[idx] != encoder.specials[idx] {
			klog.Warningf("Order of special tokens has changed: %v -> %v; "+
				"previously encoded special token ids now mean something "+
				"else", encoder.specials, names)
			break
		}
	}
	encoder.specials = append([]string{}, names...)
	encoder.indexSpecials()
	return nil
}

func (encoder *BytePairEncoder) indexSpecials() {
	encoder.specialIndexes = make(map[string]Token, len(encoder.specials))
	for idx, name := range encoder.specials {
		encoder.specialIndexes[name] = Token(len(encoder.code) + idx)
	}
}

// SpecialToken returns the id of the named special token.
func (encoder *BytePairEncoder) SpecialToken(name string) (Token, error) {
	if token, ok := encoder.specialIndexes[name]; ok {
		return token, nil
	}
	return 0, errors.Wrapf(ErrConfiguration,
		"special token %q is not declared", name)
}

func (encoder *BytePairEncoder) StartToken() (Token, error) {
	return encoder.SpecialToken(SpecialStart)
}

func (encoder *BytePairEncoder) EndToken() (Token, error) {
	return encoder.SpecialToken(SpecialEnd)
}

func (encoder *BytePairEncoder) PadToken() (Token, error) {
	return encoder.SpecialToken(SpecialPad)
}

// Split normalizes text and returns its pieces token by token. The pieces
// belong to the caller.
func (encoder *BytePairEncoder) Split(text string, withDropout bool) [][]byte {
	pieces := encoder.splitBytes([]byte(encoder.normalize(text)), withDropout)
	owned := make([][]byte, len(pieces))
	for idx, piece := range pieces {
		owned[idx] = append([]byte{}, piece...)
	}
	return owned
}

func (encoder *BytePairEncoder) splitBytes(data []byte,
	withDropout bool) [][]byte {
	if withDropout && encoder.dropout != nil {
		return encoder.tree.Split(data, encoder.dropout, encoder.rng)
	}
	if len(data) > SPLIT_CACHE_MAX_LEN {
		return encoder.tree.Split(data, nil, nil)
	}
	key := string(data)
	if lookup, ok := encoder.Cache.Get(key); ok {
		encoder.LruHits++
		return lookup.([][]byte)
	}
	encoder.LruMisses++
	pieces := encoder.tree.Split(data, nil, nil)
	encoder.Cache.Add(key, pieces)
	return pieces
}

// segments normalizes text and optionally cuts it into pre-tokenized
// chunks. Merges never cross chunk boundaries.
func (encoder *BytePairEncoder) segments(text string, preTokenize bool) []string {
	text = encoder.normalize(text)
	if preTokenize {
		return PreTokenize(text)
	}
	return []string{text}
}

type encodeConfig struct {
	dropout     bool
	start       bool
	end         bool
	padded      bool
	paddedSize  int
	preTokenize bool
}

type EncodeOption func(*encodeConfig)

// WithoutDropout encodes deterministically even when a dropout rate is set.
func WithoutDropout() EncodeOption {
	return func(cfg *encodeConfig) { cfg.dropout = false }
}

func WithStartToken() EncodeOption {
	return func(cfg *encodeConfig) { cfg.start = true }
}

func WithEndToken() EncodeOption {
	return func(cfg *encodeConfig) { cfg.end = true }
}

// WithPaddedSize right-pads the result with PAD to exactly size tokens.
func WithPaddedSize(size int) EncodeOption {
	return func(cfg *encodeConfig) {
		cfg.padded = true
		cfg.paddedSize = size
	}
}

// WithPreTokenize encodes each pre-tokenized chunk on its own, matching an
// encoder trained with pre-tokenization.
func WithPreTokenize() EncodeOption {
	return func(cfg *encodeConfig) { cfg.preTokenize = true }
}

// Encode converts text to token ids. By default the configured dropout
// applies, so repeated calls may differ.
func (encoder *BytePairEncoder) Encode(text string,
	opts ...EncodeOption) (Tokens, error) {
	cfg := encodeConfig{dropout: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	encoded := make(Tokens, 0, len(text)/2+2)
	if cfg.start {
		start, err := encoder.StartToken()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, start)
	}
	for _, segment := range encoder.segments(text, cfg.preTokenize) {
		for _, piece := range encoder.splitBytes([]byte(segment), cfg.dropout) {
			encoded = append(encoded, encoder.wordIndexes[string(piece)])
		}
	}
	if cfg.end {
		end, err := encoder.EndToken()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, end)
	}
	if cfg.padded {
		if len(encoded) > cfg.paddedSize {
			return nil, errors.Wrapf(ErrEncodingLength,
				"cannot pad sequence of size %d to size %d",
				len(encoded), cfg.paddedSize)
		}
		if len(encoded) < cfg.paddedSize {
			pad, err := encoder.PadToken()
			if err != nil {
				return nil, err
			}
			for len(encoded) < cfg.paddedSize {
				encoded = append(encoded, pad)
			}
		}
	}
	return encoded, nil
}

// Decode converts tokens back to text. Special tokens decode to nothing,
// unknown ids are skipped, and invalid UTF-8 becomes U+FFFD.
func (encoder *BytePairEncoder) Decode(tokens Tokens) string {
	text, _ := encoder.DecodeLossy(tokens)
	return text
}

// DecodeLossy is Decode, also reporting whether invalid UTF-8 had to be
// replaced.
func (encoder *BytePairEncoder) DecodeLossy(tokens Tokens) (string, bool) {
	bs := make([]byte, 0, len(tokens)*4)
	for _, token := range tokens {
		if int(token) < len(encoder.vocabulary) {
			bs = append(bs, encoder.vocabulary[token]...)
		} else if int(token) >= encoder.NTokens() {
			klog.V(2).Infof("Skipping unknown token %d while decoding",
				token)
		}
	}
	if utf8.Valid(bs) {
		return string(bs), false
	}
	replaced, err := textunicode.UTF8.NewDecoder().Bytes(bs)
	if err != nil {
		replaced = []byte(strings.ToValidUTF8(string(bs), "\uFFFD"))
	}
	if klog.V(1).Enabled() {
		klog.Warningf("Decoded %d tokens with invalid UTF-8, replaced "+
			"with U+FFFD", len(tokens))
	}
	return string(replaced), true
}

// NTokens is the vocabulary size: bytes, merges and special tokens.
func (encoder *BytePairEncoder) NTokens() int {
	return len(encoder.vocabulary) + len(encoder.specials)
}

// Code returns a copy of the merge table.
func (encoder *BytePairEncoder) Code() map[Token][]Token {
	code := make(map[Token][]Token, len(encoder.code))
	for id, parts := range encoder.code {
		code[id] = append([]Token{}, parts...)
	}
	return code
}

// TokenBytes returns the byte expansion of a non-special token. The slice
// must not be modified.
func (encoder *BytePairEncoder) TokenBytes(token Token) ([]byte, bool) {
	if int(token) >= len(encoder.vocabulary) {
		return nil, false
	}
	return encoder.vocabulary[token], true
}

// Get looks up the token whose expansion is exactly text.
func (encoder *BytePairEncoder) Get(text string) *Token {
	token, ok := encoder.wordIndexes[text]
	if !ok {
		return nil
	}
	return &token
}

// Vocabulary lists every token's bytes by id; special tokens are nil.
func (encoder *BytePairEncoder) Vocabulary() [][]byte {
	vocabulary := make([][]byte, encoder.NTokens())
	copy(vocabulary, encoder.vocabulary)
	return vocabulary
}

func (encoder *BytePairEncoder) SpecialTokens() []string {
	return append([]string{}, encoder.specials...)
}

func (encoder *BytePairEncoder) Dropout() *float64 {
	if encoder.dropout == nil {
		return nil
	}
	p := *encoder.dropout
	return &p
}

// SetDropout changes the dropout rate; nil disables dropout.
func (encoder *BytePairEncoder) SetDropout(p *float64) error {
	if err := validateDropout(p); err != nil {
		return err
	}
	if p == nil {
		encoder.dropout = nil
		return nil
	}
	rate := *p
	encoder.dropout = &rate
	return nil
}

func (encoder *BytePairEncoder) ASCII() bool {
	return encoder.ascii
}

func (encoder *BytePairEncoder) Lowercase() bool {
	return encoder.lowercase
}

// Stochastic reports whether encoding is randomized, in which case data
// should be tokenized again for every epoch.
func (encoder *BytePairEncoder) Stochastic() bool {
	return encoder.dropout != nil && *encoder.dropout > 0
}

func (encoder *BytePairEncoder) String() string {
	dropout := "none"
	if encoder.dropout != nil {
		dropout = fmt.Sprintf("%g", *encoder.dropout)
	}
	return fmt.Sprintf("%s(%d words, dropout=%s)", CodecType,
		encoder.NTokens(), dropout)
}
