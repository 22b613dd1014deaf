// Package schema provides the portable tree schema inferred from a branch source.
// This package implements:
// - Primitive, List and Record nodes (a closed set behind the Node interface)
// - Storage locators addressing a physical branch or one fixed dimension of it
// - Bottom-up rewriting, Arrow type export and JSON rendering of schema trees
package schema
