// Package hypertext implements the raw hypertext node kind and the
// canonicalisation/rendering machinery shared by every hypertext value
// (raw fragments and, via the workspace package, structured workspaces).
package hypertext

import "github.com/hchlab/hch/internal/address"

// Resolver is the subset of datastore behaviour canonicalisation needs. It
// exists so this package never imports the datastore package back —
// canonicalisation and printing are, per the design, mutually recursive
// with interning, and Go resolves that mutual recursion through this
// interface rather than a package cycle.
type Resolver interface {
	// Resolve follows Alias slots to a Filled or Pending slot's address.
	Resolve(a address.Address) address.Address
	// Lookup returns the content stored at a's resolved slot, and false if
	// the slot is Pending (or unknown).
	Lookup(a address.Address) (Hypertext, bool)
}

// Hypertext is any node in the hypertext tree: a mixed sequence of string
// fragments and child addresses (RawHypertext), or a structured record
// (workspace.Workspace).
type Hypertext interface {
	// Links returns the child addresses reachable one level down from
	// this node, exactly as stored (no alias resolution), in
	// first-appearance order, deduplicated.
	Links() []address.Address

	// Canonical renders this node's canonicalised printed form: each
	// embedded address is resolved to its current canonical address, and
	// if that address is Filled, its content is inlined one further
	// level (with that content's own children shown only as address
	// tokens). This string is what interning keys and equality are
	// defined on.
	Canonical(r Resolver) string

	// ShallowToken renders this node as it appears when embedded one
	// level inside a parent's Canonical call: children are shown as bare
	// address tokens, never recursed into.
	ShallowToken(r Resolver) string

	// RenderWithMap renders this node for display, substituting the
	// given display text for each embedded address (falling back to the
	// address's bare token if absent from the map). Used by
	// internal/hchcontext to compose a whole-context rendering
	// bottom-up.
	RenderWithMap(m map[address.Address]string) string
}
