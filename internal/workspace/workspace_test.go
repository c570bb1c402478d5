package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hypertext"
)

type fakeStore struct {
	alloc   address.Allocator
	content map[address.Address]hypertext.Hypertext
}

func newFakeStore() *fakeStore {
	return &fakeStore{content: make(map[address.Address]hypertext.Hypertext)}
}

func (f *fakeStore) insert(h hypertext.Hypertext) address.Address {
	a := f.alloc.Next()
	f.content[a] = h
	return a
}

func (f *fakeStore) Resolve(a address.Address) address.Address { return a }
func (f *fakeStore) Lookup(a address.Address) (hypertext.Hypertext, bool) {
	h, ok := f.content[a]
	return h, ok
}

func TestWithScratchpadChainsPredecessor(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s1 := store.insert(hypertext.NewRaw(hypertext.Text("s1")))
	w1 := New(address.Address{}, q, s1, nil)
	self := store.insert(w1)

	s2 := store.insert(hypertext.NewRaw(hypertext.Text("s2")))
	w2 := w1.WithScratchpad(self, s2)

	assert.Equal(t, self, w2.Predecessor)
	assert.Equal(t, q, w2.Question)
	assert.Equal(t, s2, w2.Scratchpad)
}

func TestWithSubentryAppendsAndChains(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s := store.insert(hypertext.NewRaw(hypertext.Text("s")))
	w1 := New(address.Address{}, q, s, nil)
	self := store.insert(w1)

	entry := SubEntry{Question: store.insert(hypertext.NewRaw(hypertext.Text("subq")))}
	w2 := w1.WithSubentry(self, entry)

	require.Len(t, w2.Subentries, 1)
	assert.Equal(t, entry, w2.Subentries[0])
	assert.Equal(t, self, w2.Predecessor)
	assert.Empty(t, w1.Subentries, "original workspace value must not be mutated")
}

func TestLinksOmitsZeroPredecessor(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s := store.insert(hypertext.NewRaw(hypertext.Text("s")))
	w := New(address.Address{}, q, s, nil)
	assert.Equal(t, []address.Address{q, s}, w.Links())
}

func TestLinksIncludesPredecessorWhenPresent(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s := store.insert(hypertext.NewRaw(hypertext.Text("s")))
	pred := store.insert(New(address.Address{}, q, s, nil))
	w := New(pred, q, s, nil)
	assert.Equal(t, []address.Address{pred, q, s}, w.Links())
}

func TestCanonicalIsDeterministicForEqualStructure(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s := store.insert(hypertext.NewRaw(hypertext.Text("s")))
	w1 := New(address.Address{}, q, s, nil)
	w2 := New(address.Address{}, q, s, nil)
	assert.Equal(t, w1.Canonical(store), w2.Canonical(store))
}

func TestRenderWithMapUsesProvidedNames(t *testing.T) {
	store := newFakeStore()
	q := store.insert(hypertext.NewRaw(hypertext.Text("q")))
	s := store.insert(hypertext.NewRaw(hypertext.Text("s")))
	w := New(address.Address{}, q, s, nil)
	rendered := w.RenderWithMap(map[address.Address]string{q: "$question", s: "$scratchpad"})
	assert.Contains(t, rendered, "q=$question")
	assert.Contains(t, rendered, "s=$scratchpad")
}
