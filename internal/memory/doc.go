// Package memory keeps the toolbox inside its memory budget.
//
// Uploads and results live in memory for the whole life of an operation, so a
// few large files can push the process past a container limit. The package
// does two things about it.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from the container limit so the garbage
// collector works harder before the kernel steps in:
//
//   - GOMEMLIMIT: used as is when set; nothing else is consulted
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes
//     Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, 0.0-1.0
//     (default 0.75). The rest is left to ffmpeg processes and libvips.
//
// A [Guard] samples heap usage in the background and refuses new uploads
// with [ErrLowMemory] while usage plus the incoming request would cross the
// high water mark. Running operations are never interrupted.
//
//	guard := memory.NewGuard(memory.DefaultConfig())
//	guard.Start()
//	defer guard.Stop()
//
//	if err := guard.Admit(r.ContentLength); err != nil {
//	    // 503
//	}
//
// Without any limit the guard admits everything.
package memory
