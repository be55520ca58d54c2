// Package session manages the lifecycle of a transcoding engine for one tool
// page.
//
// A Session moves through three states:
//
//	unloaded -> loading -> ready
//	loading  -> unloaded   (load failed, retry allowed)
//
// EnsureLoaded is safe to call from any number of goroutines; concurrent
// callers share one in-flight load. Write, Exec and Read return ErrNotLoaded
// until the session is ready. Remove never fails, which makes it safe to
// call from deferred cleanup.
//
// Exec accepts a progress callback that receives the engine's fractional
// progress for that call only. Callers rescale it into their own phase of
// the overall pipeline, see package progress.
package session
