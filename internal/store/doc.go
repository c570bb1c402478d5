// Package store provides SQLite-backed durable storage for the HCH engine:
// the datastore's slot table, waiter registrations, the automation cache,
// and per-session ready queues, so a process can be killed and resumed
// without losing engine state.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single connection: the datastore already serializes writers with
//     its own mutex, so a second SQLite writer connection would only add
//     contention, never concurrency
//
// Slot and workspace content is serialized as RFC 8785 canonical JSON via
// internal/ir, giving persisted hypertext content a single,
// order-independent encoding. This encoding is for storage only; it is not
// the in-memory canonical form (Hypertext.Canonical) that the datastore
// uses for content addressing.
package store
