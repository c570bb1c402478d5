package hypertext

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hchlab/hch/internal/address"
)

// fakeStore is a minimal in-memory Resolver used to unit-test raw and
// parsed hypertext without pulling in the datastore package.
type fakeStore struct {
	alloc   address.Allocator
	content map[address.Address]Hypertext
	alias   map[address.Address]address.Address
}

func newFakeStore() *fakeStore {
	return &fakeStore{content: make(map[address.Address]Hypertext), alias: make(map[address.Address]address.Address)}
}

func (f *fakeStore) Insert(h Hypertext) address.Address {
	a := f.alloc.Next()
	f.content[a] = h
	return a
}

func (f *fakeStore) Resolve(a address.Address) address.Address {
	for {
		next, ok := f.alias[a]
		if !ok {
			return a
		}
		a = next
	}
}

func (f *fakeStore) Lookup(a address.Address) (Hypertext, bool) {
	h, ok := f.content[f.Resolve(a)]
	return h, ok
}

func TestRawLinksDedupInFirstAppearanceOrder(t *testing.T) {
	store := newFakeStore()
	x := store.Insert(NewRaw(Text("x")))
	y := store.Insert(NewRaw(Text("y")))
	raw := NewRaw(Ref(x), Text("mid"), Ref(y), Ref(x))
	assert.Equal(t, []address.Address{x, y}, raw.Links())
}

func TestShallowTokenNeverRecurses(t *testing.T) {
	store := newFakeStore()
	inner := store.Insert(NewRaw(Text("inner")))
	outer := NewRaw(Text("outer "), Ref(inner))
	tok := outer.ShallowToken(store)
	assert.NotContains(t, tok, "inner")
	assert.Contains(t, tok, inner.Token())
}

func TestCanonicalInlinesOneLevelOfFilledContent(t *testing.T) {
	store := newFakeStore()
	inner := store.Insert(NewRaw(Text("inner")))
	outer := NewRaw(Text("outer "), Ref(inner))
	canon := outer.Canonical(store)
	assert.Contains(t, canon, "inner")
}

func TestCanonicalOfPendingAddressShowsBareToken(t *testing.T) {
	store := newFakeStore()
	pending := store.alloc.Next() // never filled
	outer := NewRaw(Ref(pending))
	canon := outer.Canonical(store)
	assert.Equal(t, pending.Token(), canon)
}

func TestCanonicalEqualForStructurallyEqualContent(t *testing.T) {
	store := newFakeStore()
	a := NewRaw(Text("hello "), Text("world"))
	b := NewRaw(Text("hello world"))
	// distinct chunk boundaries but identical resolved text content should
	// not be asserted equal here since RawHypertext preserves chunk
	// structure; instead check that identical construction is idempotent.
	assert.Equal(t, a.Canonical(store), NewRaw(Text("hello "), Text("world")).Canonical(store))
	_ = b
}

func TestRenderWithMapSubstitutesProvidedText(t *testing.T) {
	store := newFakeStore()
	target := store.Insert(NewRaw(Text("target")))
	outer := NewRaw(Text("see "), Ref(target))
	rendered := outer.RenderWithMap(map[address.Address]string{target: "[custom]"})
	assert.Equal(t, "see [custom]", rendered)
}

func TestRenderWithMapFallsBackToBareToken(t *testing.T) {
	store := newFakeStore()
	target := store.Insert(NewRaw(Text("target")))
	outer := NewRaw(Text("see "), Ref(target))
	rendered := outer.RenderWithMap(nil)
	assert.Equal(t, "see "+target.Token(), rendered)
}
