package hypertext

import (
	"strings"

	"github.com/hchlab/hch/internal/address"
)

// Chunk is one piece of a RawHypertext's content: either a literal string
// fragment or a reference to a child address.
type Chunk struct {
	Text   string
	Addr   address.Address
	IsAddr bool
}

// Text builds a literal-fragment chunk.
func Text(s string) Chunk { return Chunk{Text: s} }

// Ref builds a child-address chunk.
func Ref(a address.Address) Chunk { return Chunk{Addr: a, IsAddr: true} }

// RawHypertext is a mixed sequence of string fragments and child
// addresses, the "raw" hypertext node kind.
type RawHypertext struct {
	Chunks []Chunk
}

// NewRaw builds a RawHypertext from chunks.
func NewRaw(chunks ...Chunk) *RawHypertext {
	return &RawHypertext{Chunks: append([]Chunk(nil), chunks...)}
}

func (h *RawHypertext) Links() []address.Address {
	var links []address.Address
	seen := make(map[address.Address]bool)
	for _, c := range h.Chunks {
		if !c.IsAddr || seen[c.Addr] {
			continue
		}
		seen[c.Addr] = true
		links = append(links, c.Addr)
	}
	return links
}

func (h *RawHypertext) Canonical(r Resolver) string {
	var b strings.Builder
	for _, c := range h.Chunks {
		if !c.IsAddr {
			b.WriteString(c.Text)
			continue
		}
		resolved := r.Resolve(c.Addr)
		if content, ok := r.Lookup(resolved); ok {
			b.WriteString("[")
			b.WriteString(resolved.Token())
			b.WriteString(":")
			b.WriteString(content.ShallowToken(r))
			b.WriteString("]")
		} else {
			b.WriteString(resolved.Token())
		}
	}
	return b.String()
}

func (h *RawHypertext) ShallowToken(r Resolver) string {
	var b strings.Builder
	for _, c := range h.Chunks {
		if !c.IsAddr {
			b.WriteString(c.Text)
			continue
		}
		b.WriteString(r.Resolve(c.Addr).Token())
	}
	return b.String()
}

func (h *RawHypertext) RenderWithMap(m map[address.Address]string) string {
	var b strings.Builder
	for _, c := range h.Chunks {
		if !c.IsAddr {
			b.WriteString(c.Text)
			continue
		}
		if s, ok := m[c.Addr]; ok {
			b.WriteString(s)
		} else {
			b.WriteString(c.Addr.Token())
		}
	}
	return b.String()
}
