// Package arrowipc provides Arrow IPC stream helpers for the array bridge.
// This package implements:
// - Single-column stream files used by the array store
// - Multi-batch record streams used by partition files
// - Column concatenation across record batches
package arrowipc
