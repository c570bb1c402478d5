// Package ir provides the primitive value types (IRString, IRInt, IRBool,
// IRArray, IRObject) and RFC 8785 canonical JSON marshalling used to encode
// hypertext and workspace content for durable storage (the datastore's
// content addressing does not use it). It is the foundational layer: every other internal package may
// import ir, and ir imports nothing internal.
package ir
