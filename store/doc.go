// Package store provides a named-array store backed by a billy filesystem.
// This package implements:
// - One Arrow IPC stream file per array inside a partition directory
// - Exact round-trip of dtype, nested fixed shape and contents
// - Partition directory naming per namespace
package store
