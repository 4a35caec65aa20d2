package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func (tokens *Tokens) ToBin(useUint32 bool) (*[]byte, error) {
	if useUint32 {
		return tokens.ToBinUint32()
	} else {
		return tokens.ToBinUint16()
	}
}

// ToBinUint16 writes the tokens as little endian uint16s, failing if any
// token id does not fit.
func (tokens *Tokens) ToBinUint16() (*[]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(*tokens)*TokenSize))
	for idx := range *tokens {
		bs := (*tokens)[idx]
		if bs > 65535 {
			return nil, fmt.Errorf("integer overflow: tried to write token ID %d as unsigned 16-bit", bs)
		}
		err := binary.Write(buf, binary.LittleEndian, uint16(bs))
		if err != nil {
			return nil, err
		}
	}
	byt := buf.Bytes()
	return &byt, nil
}

func (tokens *Tokens) ToBinUint32() (*[]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(*tokens)*TokenSize32))
	for idx := range *tokens {
		err := binary.Write(buf, binary.LittleEndian, uint32((*tokens)[idx]))
		if err != nil {
			return nil, err
		}
	}
	byt := buf.Bytes()
	return &byt, nil
}

// TokensFromBin reads little endian uint16 tokens. A trailing odd byte is
// ignored.
func TokensFromBin(bin *[]byte) *Tokens {
	tokens := make(Tokens, 0, len(*bin)/TokenSize)
	buf := bytes.NewReader(*bin)
	for {
		var token uint16
		if err := binary.Read(buf, binary.LittleEndian, &token); err != nil {
			break
		}
		tokens = append(tokens, Token(token))
	}
	return &tokens
}

func TokensFromBin32(bin *[]byte) *Tokens {
	tokens := make(Tokens, 0, len(*bin)/TokenSize32)
	buf := bytes.NewReader(*bin)
	for {
		var token uint32
		if err := binary.Read(buf, binary.LittleEndian, &token); err != nil {
			break
		}
		tokens = append(tokens, Token(token))
	}
	return &tokens
}

// Pairs returns the adjacent pairs of the sequence in order.
func (tokens Tokens) Pairs() []TokenPair {
	if len(tokens) < 2 {
		return nil
	}
	pairs := make([]TokenPair, 0, len(tokens)-1)
	for idx := 1; idx < len(tokens); idx++ {
		pairs = append(pairs, TokenPair{tokens[idx-1], tokens[idx]})
	}
	return pairs
}
