// Package dataset opens a set of partition files as one dataset.
// This package implements:
// - Partition discovery by glob pattern
// - Global entry offsets across partitions
// - Schema inference from the first partition
// - The backend registry used to instantiate partition handles
package dataset
