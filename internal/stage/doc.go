// Package stage runs one pipeline stage over a worklist with a ceiling on
// how many items are in flight. Every item gets a Result, whatever happens to
// its siblings.
package stage
