// Package intake validates user-selected files against a tool's size limit
// and accept list, and derives download names for results.
package intake
