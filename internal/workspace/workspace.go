// Package workspace implements the structured hypertext node kind: a
// record of predecessor, question, scratchpad, and sub-question triples
// that forms one node of the HCH decomposition tree.
package workspace

import (
	"fmt"
	"strings"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hypertext"
)

// SubEntry is one sub-question triple: the addresses of the subquestion
// text, its (promise) answer, and its (promise) final child workspace.
type SubEntry struct {
	Question  address.Address
	Answer    address.Address
	Workspace address.Address
}

// Workspace is the structured hypertext record described in spec §3: an
// optional predecessor, a question address, a scratchpad address, and an
// ordered list of sub-entries. It is immutable: every update to a
// workspace produces a new Workspace value with the previous one recorded
// as Predecessor.
type Workspace struct {
	Predecessor address.Address // Zero() if none
	Question    address.Address
	Scratchpad  address.Address
	Subentries  []SubEntry
}

// New builds a workspace value. It does not intern it; callers insert the
// result through the datastore to obtain an address.
func New(predecessor, question, scratchpad address.Address, subentries []SubEntry) *Workspace {
	return &Workspace{
		Predecessor: predecessor,
		Question:    question,
		Scratchpad:  scratchpad,
		Subentries:  append([]SubEntry(nil), subentries...),
	}
}

// WithScratchpad returns a new workspace identical to w but with a
// different scratchpad address and its predecessor set to self, w's own
// address, matching §4.C: every update produces a new
// workspace address with the previous one as predecessor.
func (w *Workspace) WithScratchpad(self, scratchpad address.Address) *Workspace {
	return New(self, w.Question, scratchpad, w.Subentries)
}

// WithSubentry returns a new workspace identical to w but with entry
// appended to its sub-entries and its predecessor set to self.
func (w *Workspace) WithSubentry(self address.Address, entry SubEntry) *Workspace {
	return New(self, w.Question, w.Scratchpad, append(append([]SubEntry(nil), w.Subentries...), entry))
}

func (w *Workspace) Links() []address.Address {
	var links []address.Address
	if !w.Predecessor.Zero() {
		links = append(links, w.Predecessor)
	}
	links = append(links, w.Question, w.Scratchpad)
	for _, e := range w.Subentries {
		links = append(links, e.Question, e.Answer, e.Workspace)
	}
	return links
}

// structural renders w's own field structure with each address replaced
// by tok(address); shared by Canonical, ShallowToken, and (indirectly)
// content equality.
func (w *Workspace) structural(tok func(address.Address) string) string {
	var b strings.Builder
	b.WriteString("W(")
	if !w.Predecessor.Zero() {
		b.WriteString("p=")
		b.WriteString(tok(w.Predecessor))
		b.WriteString(",")
	}
	fmt.Fprintf(&b, "q=%s,s=%s,subs=[", tok(w.Question), tok(w.Scratchpad))
	for i, e := range w.Subentries {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "(%s,%s,%s)", tok(e.Question), tok(e.Answer), tok(e.Workspace))
	}
	b.WriteString("])")
	return b.String()
}

func (w *Workspace) Canonical(r hypertext.Resolver) string {
	return w.structural(func(a address.Address) string {
		resolved := r.Resolve(a)
		if content, ok := r.Lookup(resolved); ok {
			return "[" + resolved.Token() + ":" + content.ShallowToken(r) + "]"
		}
		return resolved.Token()
	})
}

func (w *Workspace) ShallowToken(r hypertext.Resolver) string {
	return w.structural(func(a address.Address) string { return r.Resolve(a).Token() })
}

func (w *Workspace) RenderWithMap(m map[address.Address]string) string {
	return w.structural(func(a address.Address) string {
		if s, ok := m[a]; ok {
			return s
		}
		return a.Token()
	})
}
