// Package infer builds a schema tree from a source's branch metadata.
//
// Leaf branches become primitives wrapped in lists for every fixed inner
// dimension and, when jagged, one more list over the branch's own offsets.
// Records whose fields are all lists counted by the same physical count
// branch are rewritten into a single list of records.
package infer
