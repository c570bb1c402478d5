// Package datastore implements Component A: a content-addressed,
// promise-capable store with transitive alias resolution. It is the sole
// authority over address allocation, interning, promise fulfilment, and
// waiter/wake-up bookkeeping.
package datastore

import (
	"fmt"
	"sync"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hypertext"
)

// Token is an opaque wake-up token registered against a promise address.
// The datastore never interprets a token; it only ever hands back exactly
// the tokens it was given, at most once each, when their awaited address
// resolves to a Filled slot. The scheduler binds tokens to parked
// contexts.
type Token interface{}

type slotKind int

const (
	kindFilled slotKind = iota
	kindPending
	kindAlias
)

type slot struct {
	kind        slotKind
	content     hypertext.Hypertext // valid when kind == kindFilled
	aliasTarget address.Address     // valid when kind == kindAlias
	waiters     []Token             // valid when kind == kindPending
}

// DoubleFulfilError indicates Fulfil was called on a non-Pending slot — a
// scheduler bug, since every promise address is fulfilled by exactly one
// Reply.
type DoubleFulfilError struct {
	Addr address.Address
}

func (e *DoubleFulfilError) Error() string {
	return fmt.Sprintf("datastore: double fulfil of %s", e.Addr)
}

// AliasCycleError indicates an alias chain failed to terminate. The
// invariants in §4.A guarantee this cannot occur; it exists purely as a
// defensive backstop.
type AliasCycleError struct {
	Addr address.Address
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("datastore: alias cycle detected resolving %s", e.Addr)
}

// Datastore is the shared, single-writer content-addressed store described
// in spec §4.A.
type Datastore struct {
	mu    sync.Mutex
	alloc address.Allocator

	slots     map[address.Address]*slot
	canonical map[string]address.Address // canonical form -> filled address
}

// New returns an empty datastore.
func New() *Datastore {
	return &Datastore{
		slots:     make(map[address.Address]*slot),
		canonical: make(map[string]address.Address),
	}
}

// Insert satisfies hypertext.Inserter; it is an alias for AllocateFilled.
func (d *Datastore) Insert(h hypertext.Hypertext) address.Address {
	return d.AllocateFilled(h)
}

// AllocateFilled interns h by its canonical form: if an equal canonical
// form is already filled at address a, a is returned; otherwise a fresh
// address is allocated, Filled(h) is stored, and it is indexed by its
// canonical form.
func (d *Datastore) AllocateFilled(h hypertext.Hypertext) address.Address {
	d.mu.Lock()
	defer d.mu.Unlock()

	form := h.Canonical(lockedView{d})
	if existing, ok := d.canonical[form]; ok {
		return existing
	}
	addr := d.alloc.Next()
	d.slots[addr] = &slot{kind: kindFilled, content: h}
	d.canonical[form] = addr
	return addr
}

// AllocatePromise allocates a fresh address in state Pending(∅). Promise
// addresses are never canonical-form indexed: they are not yet
// content-equal to anything.
func (d *Datastore) AllocatePromise() address.Address {
	d.mu.Lock()
	defer d.mu.Unlock()

	addr := d.alloc.Next()
	d.slots[addr] = &slot{kind: kindPending}
	return addr
}

// Fulfil resolves the promise at addr with content h. addr must currently
// be Pending; any other state is a DoubleFulfilError. If h's canonical
// form already has a distinct filled address a', addr becomes Alias(a')
// and addr's waiters are returned for delivery (they are, semantically,
// already delivered — a' being Filled). Otherwise addr becomes Filled(h),
// adopts the canonical form, and its own waiters are returned.
//
// The caller is responsible for actually waking the returned tokens; the
// datastore only guarantees each waiter is returned exactly once, from
// exactly one Fulfil call.
func (d *Datastore) Fulfil(addr address.Address, h hypertext.Hypertext) ([]Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[addr]
	if !ok || s.kind != kindPending {
		return nil, &DoubleFulfilError{Addr: addr}
	}

	form := h.Canonical(lockedView{d})
	waiters := s.waiters

	if existing, ok := d.canonical[form]; ok && existing != addr {
		d.slots[addr] = &slot{kind: kindAlias, aliasTarget: existing}
		return waiters, nil
	}

	d.slots[addr] = &slot{kind: kindFilled, content: h}
	d.canonical[form] = addr
	return waiters, nil
}

// Resolve follows Alias slots to a Filled or Pending slot's address, with
// path compression. It never fails under the stated invariants; a chain
// that fails to terminate within the number of allocated slots indicates
// a broken invariant and panics with an *AliasCycleError rather than
// looping forever.
func (d *Datastore) Resolve(addr address.Address) address.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolveLocked(addr)
}

func (d *Datastore) resolveLocked(addr address.Address) address.Address {
	var chain []address.Address
	cur := addr
	for i := 0; i <= len(d.slots)+1; i++ {
		s, ok := d.slots[cur]
		if !ok || s.kind != kindAlias {
			for _, c := range chain {
				d.slots[c] = &slot{kind: kindAlias, aliasTarget: cur}
			}
			return cur
		}
		chain = append(chain, cur)
		cur = s.aliasTarget
	}
	panic(&AliasCycleError{Addr: addr})
}

// Await registers token against addr. If addr's resolved slot is already
// Filled, Await returns true and does not register the token — the caller
// must deliver it immediately itself. If Pending, the token is added to
// the waiter set and Await returns false.
func (d *Datastore) Await(addr address.Address, token Token) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	resolved := d.resolveLocked(addr)
	s := d.slots[resolved]
	if s.kind == kindFilled {
		return true
	}
	s.waiters = append(s.waiters, token)
	return false
}

// Lookup satisfies hypertext.Resolver: it resolves addr and returns its
// content if Filled.
func (d *Datastore) Lookup(addr address.Address) (hypertext.Hypertext, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookupLocked(addr)
}

func (d *Datastore) lookupLocked(addr address.Address) (hypertext.Hypertext, bool) {
	resolved := d.resolveLocked(addr)
	s, ok := d.slots[resolved]
	if !ok || s.kind != kindFilled {
		return nil, false
	}
	return s.content, true
}

// lockedView adapts a Datastore already held under its own mutex to the
// hypertext.Resolver interface, calling the non-locking internal
// resolve/lookup paths. Used only from methods that already hold d.mu, to
// avoid deadlocking on Go's non-reentrant sync.Mutex when hypertext
// canonicalisation calls back into the resolver.
type lockedView struct{ d *Datastore }

func (v lockedView) Resolve(a address.Address) address.Address { return v.d.resolveLocked(a) }
func (v lockedView) Lookup(a address.Address) (hypertext.Hypertext, bool) {
	return v.d.lookupLocked(a)
}

// IsFulfilled reports whether addr's resolved slot is Filled.
func (d *Datastore) IsFulfilled(addr address.Address) bool {
	_, ok := d.Lookup(addr)
	return ok
}

// SlotSnapshot is one address's persisted state, for the store package to
// write out and later restore.
type SlotSnapshot struct {
	Addr        address.Address
	Kind        string // "filled", "pending", or "alias"
	Content     hypertext.Hypertext
	AliasTarget address.Address
	Waiters     []Token
}

// Export returns every allocated slot's state, in ascending address
// order, along with the allocator's current high-water mark. Ascending
// order guarantees that when a persistence layer replays these snapshots
// through Import, each Filled slot's content only ever references
// addresses lower than itself — the same monotonic-allocation invariant
// the live datastore already relies on.
func (d *Datastore) Export() ([]SlotSnapshot, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	addrs := make([]address.Address, 0, len(d.slots))
	for a := range d.slots {
		addrs = append(addrs, a)
	}
	sortAddresses(addrs)

	out := make([]SlotSnapshot, 0, len(addrs))
	for _, a := range addrs {
		s := d.slots[a]
		snap := SlotSnapshot{Addr: a}
		switch s.kind {
		case kindFilled:
			snap.Kind = "filled"
			snap.Content = s.content
		case kindPending:
			snap.Kind = "pending"
			snap.Waiters = append([]Token(nil), s.waiters...)
		case kindAlias:
			snap.Kind = "alias"
			snap.AliasTarget = s.aliasTarget
		}
		out = append(out, snap)
	}
	return out, d.alloc.Peek()
}

func sortAddresses(addrs []address.Address) {
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && addrs[j-1].Uint64() > addrs[j].Uint64(); j-- {
			addrs[j-1], addrs[j] = addrs[j], addrs[j-1]
		}
	}
}

// Import restores a single previously exported slot. Callers must import
// snapshots in the same ascending-address order Export produced them in,
// and must call RestoreAllocator afterward with the exported high-water
// mark.
func (d *Datastore) Import(snap SlotSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch snap.Kind {
	case "filled":
		form := snap.Content.Canonical(lockedView{d})
		d.slots[snap.Addr] = &slot{kind: kindFilled, content: snap.Content}
		d.canonical[form] = snap.Addr
	case "pending":
		d.slots[snap.Addr] = &slot{kind: kindPending, waiters: append([]Token(nil), snap.Waiters...)}
	case "alias":
		d.slots[snap.Addr] = &slot{kind: kindAlias, aliasTarget: snap.AliasTarget}
	default:
		return fmt.Errorf("datastore: unknown slot kind %q", snap.Kind)
	}
	return nil
}

// RestoreAllocator sets the address allocator's counter, for use after
// Import has replayed every slot.
func (d *Datastore) RestoreAllocator(next uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alloc.Restore(next)
}
