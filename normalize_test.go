package byte_bpe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldASCII(t *testing.T) {
	tests := []struct {
		Input    string
		Expected string
	}{
		{"plain ascii", "plain ascii"},
		{"Café Ñandú", "Cafe Nandu"},
		{"straße", "strasse"},
		{"Œuvre æther", "OEuvre aether"},
		{"ﬁnance", "finance"},
		{"“quoted” — dash…", "\"quoted\" - dash..."},
		{"日本語 text", " text"},
		{"emoji 😀!", "emoji !"},
		{"", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.Expected, FoldASCII(test.Input), test.Input)
	}
}

type PreTokenizeTest struct {
	Input    string
	Expected []string
}

var PreTokenizeTests = []PreTokenizeTest{
	{"", []string{}},
	{"hello", []string{"hello"}},
	{"  Hello, world! 42abc", []string{"  ", "Hello", ", ", "world", "! ",
		"42", "abc"}},
	{"a1a1", []string{"a", "1", "a", "1"}},
	{"x the\n\tend ", []string{"x ", "the\n\t", "end "}},
	{"déjà-vu", []string{"déjà", "-", "vu"}},
	{"   ", []string{"   "}},
}

func TestPreTokenize(t *testing.T) {
	for _, test := range PreTokenizeTests {
		chunks := PreTokenize(test.Input)
		assert.Equal(t, test.Expected, chunks, "%q", test.Input)
		assert.Equal(t, test.Input, strings.Join(chunks, ""))
	}
}
