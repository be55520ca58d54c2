// Package progress tracks the percentage and status line of a running
// operation and maps per-phase engine progress onto the overall range.
package progress
