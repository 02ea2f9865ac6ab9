// Package tree holds the generic value representation used for store state
// and the structural helpers the store builds on.
//
// A tree is made of three kinds of nodes:
//
//   - objects: map[string]any
//   - sequences: []any
//   - scalars: every other value, treated as an opaque leaf
//
// Object and sequence nodes have an identity (see ID) that survives being
// passed around by value, which lets callers keep side tables about nodes
// (for example the loading overlay tracked by Marks) without storing anything
// inside the data itself. Clone and Normalize always give every sequence its
// own backing array so that identities never collide inside one tree.
package tree
