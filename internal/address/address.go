// Package address defines the opaque, comparable identifiers that back
// every datastore slot in the HCH engine.
package address

import "fmt"

// Address is an opaque, comparable, hashable identifier for a datastore
// slot. Two addresses are equal iff they refer to the same storage slot.
// The zero value is never a valid allocated address; it is reserved as a
// sentinel for "no address".
type Address struct {
	n uint64
}

// Zero reports whether a is the unallocated sentinel value.
func (a Address) Zero() bool {
	return a.n == 0
}

// Token returns a stable, internal textual identity for a, suitable for
// use inside canonical hypertext forms and persistence keys. It carries no
// meaning to a human operator; the human-facing pointer-ID is computed
// separately, per context, by the hchcontext package.
func (a Address) Token() string {
	return fmt.Sprintf("#%d", a.n)
}

func (a Address) String() string {
	return a.Token()
}

// FromUint64 reconstructs the address holding raw identifier n. It exists
// for persistence layers that must round-trip an address through storage;
// ordinary allocation always goes through an Allocator.
func FromUint64(n uint64) Address { return Address{n: n} }

// Uint64 returns a's raw identifier, for persistence layers that need a
// storable numeric form.
func (a Address) Uint64() uint64 { return a.n }

// Allocator hands out fresh, monotonically increasing addresses. It holds
// no locking of its own: callers (the datastore) are responsible for
// serializing allocation, matching the single-threaded cooperative model.
type Allocator struct {
	next uint64
}

// Next allocates and returns a fresh address, never previously returned by
// this allocator and never equal to the zero sentinel.
func (a *Allocator) Next() Address {
	a.next++
	return Address{n: a.next}
}

// Restore sets the allocator's internal counter directly, for resuming
// from a persisted high-water mark. It must not be called once any Next
// call has already been made against live state that depends on the
// counter's prior value.
func (a *Allocator) Restore(n uint64) { a.next = n }

// Peek returns the allocator's current counter value without advancing
// it, for persistence snapshots.
func (a *Allocator) Peek() uint64 { return a.next }
