// Package resolve turns abstract roles (start offsets, stop offsets, data)
// into concrete Arrow arrays read from one open partition.
//
// Three physical encodings are handled: dense fixed-shape arrays (offsets
// are synthesized from the shape), length-counted arrays (offsets are the
// prefix sum of the counts) and offset-based jagged arrays (offsets are
// used as stored). Starts and stops of one locator always come from the
// same derivation.
package resolve
