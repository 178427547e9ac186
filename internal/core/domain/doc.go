// Package domain defines the core entities for strata.
//
// This package is the innermost layer of the hexagon. It has NO external
// dependencies and defines the fundamental types:
//
//   - Document: a titled, versioned tree of sections
//   - Section: a block of content with citations and a confidence score
//   - Citation: a (source, reliability) pair evidencing a section
//   - Run: a persisted record of one research/enhancement loop
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
