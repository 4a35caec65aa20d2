package byte_bpe

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Nodes with at most this many children keep them in a slice as well as the
// map, which is faster to scan than a map lookup.
const maxChildsArr = 10

// RandomSource decides merge-skipping under BPE-dropout. *rand.Rand
// satisfies it.
type RandomSource interface {
	Float64() float64
}

type ByteNode struct {
	byte      byte               // The byte this node represents.
	bytes     []byte             // The prior bytes that led to this node.
	token     Token              // The token id, valid when terminal.
	terminal  bool               // If the bytes up to this node are a token.
	childs    map[byte]*ByteNode // The child nodes.
	childsArr *[]*ByteNode       // The child nodes in an array, for speed
}

// ByteTree is a prefix tree over the byte expansions of every known token.
// All 256 single bytes are always present, so any input can be split.
type ByteTree struct {
	root  *ByteNode
	depth int
	size  int
}

func newByteNode(b byte, prefix []byte) *ByteNode {
	children := make([]*ByteNode, 0)
	return &ByteNode{
		byte:      b,
		bytes:     prefix,
		childs:    make(map[byte]*ByteNode, 0),
		childsArr: &children,
	}
}

// NewByteTree returns a tree holding the 256 single-byte tokens, each with
// its byte value as id.
func NewByteTree() *ByteTree {
	tree := &ByteTree{root: newByteNode(0, []byte{})}
	for b := 0; b < 256; b++ {
		// Cannot fail: the sequence is non-empty and each byte is new.
		_ = tree.Insert([]byte{byte(b)}, Token(b))
	}
	return tree
}

func (node *ByteNode) evaluate(b byte) (*ByteNode, bool) {
	if node.childsArr != nil {
		children := *node.childsArr
		for _, child := range children {
			if child.byte == b {
				return child, child.terminal
			}
		}
	} else {
		child, ok := node.childs[b]
		if ok {
			return child, child.terminal
		}
	}
	return nil, false
}

// Insert adds the path for seq and marks its last node with token. Inserting
// the same bytes again under a different id is refused.
func (tree *ByteTree) Insert(seq []byte, token Token) error {
	if len(seq) == 0 {
		return errors.New("byte_bpe: cannot insert an empty byte sequence")
	}
	node := tree.root
	for i := 0; i < len(seq); i++ {
		b := seq[i]
		child, ok := node.childs[b]
		if !ok {
			prefix := make([]byte, i+1)
			copy(prefix, seq[:i+1])
			child = newByteNode(b, prefix)
			node.childs[b] = child
			if len(node.childs) > maxChildsArr {
				// Past this point the map is faster than a linear scan.
				node.childsArr = nil
			} else if node.childsArr != nil {
				*node.childsArr = append(*node.childsArr, child)
			}
		}
		node = child
	}
	if node.terminal {
		if node.token == token {
			return nil
		}
		return errors.Wrapf(ErrCorruptVocabulary,
			"bytes %q already registered as token %d, not %d",
			seq, node.token, token)
	}
	node.terminal = true
	node.token = token
	tree.size++
	if len(seq) > tree.depth {
		tree.depth = len(seq)
	}
	return nil
}

// Lookup returns the token whose expansion is exactly seq.
func (tree *ByteTree) Lookup(seq []byte) (Token, bool) {
	if len(seq) == 0 {
		return 0, false
	}
	node := tree.root
	for _, b := range seq {
		if node, _ = node.evaluate(b); node == nil {
			return 0, false
		}
	}
	return node.token, node.terminal
}

// Depth is the byte length of the longest token.
func (tree *ByteTree) Depth() int {
	return tree.depth
}

// Len is the number of tokens in the tree.
func (tree *ByteTree) Len() int {
	return tree.size
}

// Split cuts data into known tokens, scanning left to right and taking the
// longest token at each position. When pDropout is not nil, every time a
// longer token would extend past an already valid shorter one, the
// extension is abandoned with probability *pDropout and the cut happens at
// the shorter token. The pieces alias data and concatenate back to it.
func (tree *ByteTree) Split(data []byte, pDropout *float64,
	rng RandomSource) [][]byte {
	pieces := make([][]byte, 0, len(data)/2+1)
	if pDropout != nil && rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	for pos := 0; pos < len(data); {
		node := tree.root
		cut := 0
		for i := pos; i < len(data); i++ {
			next, terminal := node.evaluate(data[i])
			if next == nil {
				break
			}
			node = next
			if !terminal {
				continue
			}
			if cut > 0 && pDropout != nil && rng.Float64() < *pDropout {
				break
			}
			cut = i - pos + 1
		}
		if cut == 0 {
			// Only reachable on a tree missing its single-byte tokens.
			cut = 1
		}
		pieces = append(pieces, data[pos:pos+cut])
		pos += cut
	}
	return pieces
}

func (node *ByteNode) sortedChilds() []*ByteNode {
	children := make([]*ByteNode, 0, len(node.childs))
	for _, child := range node.childs {
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].byte < children[j].byte
	})
	return children
}

func byteLabel(b byte) string {
	if b >= '!' && b <= '~' {
		return string(rune(b))
	}
	return fmt.Sprintf("\\x%02x", b)
}

// Represent the tree as a string by traversing the tree, and using tree
// characters to represent the tree structure.
func (node *ByteNode) string(level int) string {
	if node == nil {
		return ""
	}
	s := ""
	if len(node.bytes) > 0 {
		s = byteLabel(node.byte)
	}
	if node.terminal {
		s += fmt.Sprintf("[%d]", node.token)
	}
	children := node.sortedChilds()
	if len(children) == 1 {
		// Follow single-child chains on the same line.
		return s + children[0].string(level)
	}
	level += 1
	s += "\n"

	for idx, child := range children {
		childPrefix := strings.Repeat("| ", level-1)
		// If we're the last child, then we prepend with a tree terminator.
		if idx == len(children)-1 {
			childPrefix += "└─"
		} else {
			childPrefix += "├─"
		}
		s += childPrefix + child.string(level)
	}
	return s
}

// Wrapper
func (tree *ByteTree) String() string {
	return tree.root.string(0)
}
