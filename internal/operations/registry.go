package operations

import (
	"context"

	"media-toolbox/internal/catalog"
)

// Registry holds one runner per tool.
type Registry struct {
	runners map[catalog.ID]*Runner
	order   []catalog.ID
}

// NewRegistry creates a runner for every tool in c.
func NewRegistry(base context.Context, c *catalog.Catalog) *Registry {
	reg := &Registry{runners: make(map[catalog.ID]*Runner)}
	for _, t := range c.All() {
		reg.runners[t.ID] = NewRunner(base, t)
		reg.order = append(reg.order, t.ID)
	}
	return reg
}

// Runner returns the runner for tool.
func (reg *Registry) Runner(tool catalog.ID) (*Runner, bool) {
	r, ok := reg.runners[tool]
	return r, ok
}

// Find returns the job with the given id. Superseded operations are no longer
// found.
func (reg *Registry) Find(id string) (*Job, bool) {
	for _, tool := range reg.order {
		if job, ok := reg.runners[tool].Current(); ok && job.ID() == id {
			return job, true
		}
	}
	return nil, false
}

// RetainedBytes returns the size of all results held for download.
func (reg *Registry) RetainedBytes() int64 {
	var n int64
	for _, r := range reg.runners {
		if job, ok := r.Current(); ok {
			n += job.retainedBytes()
		}
	}
	return n
}

// Close stops every runner from accepting new operations.
func (reg *Registry) Close() {
	for _, r := range reg.runners {
		r.Close()
	}
}

// Wait blocks until every runner is idle.
func (reg *Registry) Wait() {
	for _, r := range reg.runners {
		r.Wait()
	}
}

// Running returns how many operations are in progress.
func (reg *Registry) Running() int {
	n := 0
	for _, r := range reg.runners {
		if job, ok := r.Current(); ok && job.Snapshot().Status == StatusRunning {
			n++
		}
	}
	return n
}
