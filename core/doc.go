// Package core provides concurrency primitives for the array bridge.
// This package implements:
// - Generic worker pool with panic recovery and statistics
// - Ordered parallel map over a slice of inputs
package core
