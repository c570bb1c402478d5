package hypertext

import (
	"fmt"
	"regexp"

	"github.com/hchlab/hch/internal/address"
)

// ParseError reports a malformed hypertext-grammar string.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hypertext parse error at offset %d in %q: %s", e.Offset, e.Input, e.Reason)
}

// UnknownPointerError reports a $<id> token that does not name a pointer
// visible in the supplied pointer map.
type UnknownPointerError struct {
	Token string
}

func (e *UnknownPointerError) Error() string {
	return fmt.Sprintf("unknown pointer %q", e.Token)
}

var pointerToken = regexp.MustCompile(`^\$([awqp]?[1-9][0-9]*|question|scratchpad|predecessor|[ps]\b)`)

// piece is one element of a parsed-but-not-yet-interned hypertext tree: a
// literal fragment, a pointer token, or a nested bracketed group.
type piece struct {
	text    string
	pointer string
	group   []piece
	kind    pieceKind
}

type pieceKind int

const (
	pieceText pieceKind = iota
	piecePointer
	pieceGroup
)

// parseHypertext parses a repeated sequence of link | subnode | otherstuff
// pieces (spec §3's hypertext grammar), hand-rolled as recursive descent
// over the standard library rather than a parser-combinator dependency.
func parseHypertext(input string) ([]piece, error) {
	p := &parser{input: input}
	pieces, err := p.parsePieces(false)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, &ParseError{Input: input, Offset: p.pos, Reason: "unexpected ']'"}
	}
	return pieces, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parsePieces(inGroup bool) ([]piece, error) {
	var pieces []piece
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case ']':
			if inGroup {
				return pieces, nil
			}
			return nil, &ParseError{Input: p.input, Offset: p.pos, Reason: "unmatched ']'"}
		case '[':
			p.pos++
			inner, err := p.parsePieces(true)
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.input) || p.input[p.pos] != ']' {
				return nil, &ParseError{Input: p.input, Offset: p.pos, Reason: "unterminated '['"}
			}
			p.pos++
			pieces = append(pieces, piece{kind: pieceGroup, group: inner})
		case '$':
			if m := pointerToken.FindString(p.input[p.pos:]); m != "" {
				p.pos += len(m)
				pieces = append(pieces, piece{kind: piecePointer, pointer: m})
				continue
			}
			pieces = append(pieces, p.consumeText())
		default:
			pieces = append(pieces, p.consumeText())
		}
	}
	if inGroup {
		return nil, &ParseError{Input: p.input, Offset: p.pos, Reason: "unterminated '['"}
	}
	return pieces, nil
}

func (p *parser) consumeText() piece {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '[' && p.input[p.pos] != ']' {
		if p.input[p.pos] == '$' && pointerToken.MatchString(p.input[p.pos:]) {
			break
		}
		p.pos++
	}
	return piece{kind: pieceText, text: p.input[start:p.pos]}
}

// Inserter is the subset of datastore behaviour needed to intern parsed
// hypertext: allocating a fresh Filled address for freshly-built content.
type Inserter interface {
	Insert(h Hypertext) address.Address
}

// InsertText parses content against the hypertext text grammar (bracketed
// groups for inline content, "$<id>" tokens for references to pointers
// visible in pointerMap) and interns the result, returning its address.
// Unknown pointer tokens produce UnknownPointerError; malformed grammar
// produces ParseError.
func InsertText(content string, db Inserter, pointerMap map[string]address.Address) (address.Address, error) {
	h, err := BuildText(content, db, pointerMap)
	if err != nil {
		return address.Address{}, err
	}
	return db.Insert(h), nil
}

// BuildText parses content the same way InsertText does but returns the
// constructed (and, for nested groups, already-interned) hypertext without
// inserting the top-level result — used by Reply, whose caller fulfils a
// promise with the built value rather than inserting it fresh.
func BuildText(content string, db Inserter, pointerMap map[string]address.Address) (Hypertext, error) {
	pieces, err := parseHypertext(content)
	if err != nil {
		return nil, err
	}
	return piecesToHypertext(pieces, db, pointerMap)
}

func piecesToHypertext(pieces []piece, db Inserter, pointerMap map[string]address.Address) (Hypertext, error) {
	var chunks []Chunk
	for _, pc := range pieces {
		switch pc.kind {
		case pieceText:
			if pc.text != "" {
				chunks = append(chunks, Text(normalize(pc.text)))
			}
		case piecePointer:
			addr, ok := pointerMap[pc.pointer]
			if !ok {
				return nil, &UnknownPointerError{Token: pc.pointer}
			}
			chunks = append(chunks, Ref(addr))
		case pieceGroup:
			inner, err := piecesToHypertext(pc.group, db, pointerMap)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, Ref(db.Insert(inner)))
		}
	}
	return NewRaw(chunks...), nil
}

// normalize applies NFC normalization before interning, so that
// visually-identical strings with differing Unicode decompositions
// canonicalize identically.
func normalize(s string) string {
	return nfc(s)
}
