// Package source defines the narrow capability the bridge needs from a
// branch-oriented physical source: list branches with their interpretation,
// open one partition, and fetch arrays by branch name.
//
// Implementations:
//   - memtree: in-memory trees built from Arrow arrays (tests, fixtures)
//   - ipcsource: Arrow IPC stream files, one file per partition
package source
