// Package cache provides the per-partition branch cache.
// This package implements:
// - LRU cache of physical branch arrays keyed by branch name
// - Hit/miss accounting for metrics
// - A source.Tree front end that only reads branches it has not cached
package cache
