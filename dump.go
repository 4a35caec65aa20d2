package byte_bpe

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/wbrown/byte_bpe/resources"
)

// CodecType is the "type" written to dumps of a BytePairEncoder.
const CodecType = "BytePairEncoder"

// Dump is the JSON document an encoder is saved as. Code keys are token
// ids in decimal.
type Dump struct {
	Type          string             `json:"type"`
	Code          map[string][]Token `json:"code"`
	Dropout       *float64           `json:"dropout"`
	ASCII         bool               `json:"ascii"`
	Lowercase     bool               `json:"lowercase"`
	SpecialTokens []string           `json:"special_tokens"`
}

// Dump captures everything needed to rebuild the encoder. Derived state
// and the random source are not part of it.
func (encoder *BytePairEncoder) Dump() Dump {
	code := make(map[string][]Token, len(encoder.code))
	for id, parts := range encoder.code {
		code[strconv.FormatUint(uint64(id), 10)] = append([]Token{}, parts...)
	}
	return Dump{
		Type:          CodecType,
		Code:          code,
		Dropout:       encoder.Dropout(),
		ASCII:         encoder.ascii,
		Lowercase:     encoder.lowercase,
		SpecialTokens: encoder.SpecialTokens(),
	}
}

func (dump Dump) parseCode() (map[Token][]Token, error) {
	code := make(map[Token][]Token, len(dump.Code))
	for key, parts := range dump.Code {
		id, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptVocabulary,
				"code key %q is not a token id", key)
		}
		code[Token(id)] = parts
	}
	return code, nil
}

func (dump Dump) checkType() error {
	if dump.Type != CodecType {
		return errors.Wrapf(ErrConfiguration,
			"dump is of type %q, not %q", dump.Type, CodecType)
	}
	return nil
}

// FromDump builds a new encoder from a dump.
func FromDump(dump Dump, opts ...Option) (*BytePairEncoder, error) {
	if err := dump.checkType(); err != nil {
		return nil, err
	}
	code, err := dump.parseCode()
	if err != nil {
		return nil, err
	}
	specials := dump.SpecialTokens
	if specials == nil {
		specials = []string{}
	}
	options := []Option{
		WithCode(code),
		WithASCII(dump.ASCII),
		WithLowercase(dump.Lowercase),
		WithSpecialTokens(specials...),
	}
	if dump.Dropout != nil {
		options = append(options, WithDropout(*dump.Dropout))
	}
	return NewBytePairEncoder(append(options, opts...)...)
}

// Restore reloads a dump into an existing encoder, keeping its random
// source. Nothing changes if the dump is invalid.
func (encoder *BytePairEncoder) Restore(dump Dump) error {
	if err := dump.checkType(); err != nil {
		return err
	}
	if err := validateDropout(dump.Dropout); err != nil {
		return err
	}
	code, err := dump.parseCode()
	if err != nil {
		return err
	}
	state, err := buildVocabulary(code)
	if err != nil {
		return err
	}
	if err := encoder.SetSpecialTokens(dump.SpecialTokens...); err != nil {
		return err
	}
	encoder.code = state.code
	encoder.vocabulary = state.vocabulary
	encoder.wordIndexes = state.wordIndexes
	encoder.tree = state.tree
	encoder.indexSpecials()
	encoder.Cache.Purge()
	encoder.ascii = dump.ASCII
	encoder.lowercase = dump.Lowercase
	return encoder.SetDropout(dump.Dropout)
}

type codecLoader func(data []byte) (Tokenizer, error)

var codecs = map[string]codecLoader{
	CodecType: func(data []byte) (Tokenizer, error) {
		var dump Dump
		if err := json.Unmarshal(data, &dump); err != nil {
			return nil, errors.Wrap(ErrCorruptVocabulary, err.Error())
		}
		encoder, err := FromDump(dump)
		if err != nil {
			return nil, err
		}
		return encoder, nil
	},
}

// CodecTypes lists the dump types LoadDump understands.
func CodecTypes() []string {
	types := make([]string, 0, len(codecs))
	for name := range codecs {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// LoadDump restores a tokenizer from a JSON dump, picking the codec by the
// dump's "type".
func LoadDump(data []byte) (Tokenizer, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.Wrap(ErrCorruptVocabulary, err.Error())
	}
	loader, ok := codecs[header.Type]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration,
			"unknown tokenizer type %q, known types are %v", header.Type,
			CodecTypes())
	}
	return loader(data)
}

func (encoder *BytePairEncoder) MarshalDump() ([]byte, error) {
	return json.Marshal(encoder.Dump())
}

// Save writes the encoder's dump to path, replacing any previous file.
func (encoder *BytePairEncoder) Save(path string) error {
	data, err := encoder.MarshalDump()
	if err != nil {
		return err
	}
	return resources.WriteLocked(path, data)
}

// Load reads a BytePairEncoder dump from a local path or an http(s) URL.
func Load(uri string, opts ...Option) (*BytePairEncoder, error) {
	data, err := resources.ReadResource(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "reading tokenizer %s", uri)
	}
	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, errors.Wrapf(ErrCorruptVocabulary, "parsing %s: %v",
			uri, err)
	}
	return FromDump(dump, opts...)
}
