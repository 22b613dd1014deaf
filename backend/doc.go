// Package backend provides per-partition handles that resolve roles to
// arrays.
// This package implements:
// - Backend: a set of partition paths plus the source opener
// - Arrays: one open partition with a branch cache in front of it
package backend
