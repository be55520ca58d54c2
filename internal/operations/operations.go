package operations

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/convert"
	"media-toolbox/internal/intake"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/metrics"
	"media-toolbox/internal/progress"
)

var (
	// ErrBusy is returned by Start while the previous operation is still running.
	ErrBusy = errors.New("an operation is already running for this tool")
	// ErrClosed is returned by Start once the runner has been closed for
	// shutdown.
	ErrClosed = errors.New("the server is shutting down")
)

// Status is the lifecycle of one operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Output is one entry of an operation's result list. Skipped entries carry a
// Note and no Result.
type Output struct {
	Result  *convert.Result `json:"result,omitempty"`
	Skipped bool            `json:"skipped,omitempty"`
	Note    string          `json:"note,omitempty"`
}

// Func performs the work of one operation and reports through t.
type Func func(ctx context.Context, t *progress.Tracker) ([]Output, error)

// Operation is a point-in-time view of a job.
type Operation struct {
	ID         string             `json:"id"`
	Tool       catalog.ID         `json:"tool"`
	Status     Status             `json:"status"`
	Progress   progress.Snapshot  `json:"progress"`
	Error      string             `json:"error,omitempty"`
	Outputs    []OutputInfo       `json:"outputs,omitempty"`
	Rejected   []intake.Rejection `json:"rejected,omitempty"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
}

// OutputInfo describes an output without its bytes.
type OutputInfo struct {
	Index       int    `json:"index"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	Reduction   int    `json:"reduction"`
	Skipped     bool   `json:"skipped,omitempty"`
	Note        string `json:"note,omitempty"`
}

// Job is one running or finished operation.
type Job struct {
	id       string
	tool     catalog.Tool
	tracker  *progress.Tracker
	rejected []intake.Rejection
	started  time.Time
	done     chan struct{}

	mu       sync.RWMutex
	status   Status
	errMsg   string
	outputs  []Output
	finished time.Time
}

// ID returns the operation id.
func (j *Job) ID() string { return j.id }

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Subscribe streams progress until the job finishes.
func (j *Job) Subscribe() (<-chan progress.Snapshot, func()) {
	return j.tracker.Subscribe()
}

// Snapshot returns the job's current view.
func (j *Job) Snapshot() Operation {
	j.mu.RLock()
	defer j.mu.RUnlock()

	op := Operation{
		ID:        j.id,
		Tool:      j.tool.ID,
		Status:    j.status,
		Progress:  j.tracker.Snapshot(),
		Error:     j.errMsg,
		Rejected:  j.rejected,
		StartedAt: j.started,
	}
	if !j.finished.IsZero() {
		t := j.finished
		op.FinishedAt = &t
	}
	for i, o := range j.outputs {
		info := OutputInfo{Index: i, Skipped: o.Skipped, Note: o.Note}
		if o.Result != nil {
			info.Filename = o.Result.Filename
			info.ContentType = o.Result.ContentType
			info.Size = o.Result.Size()
			info.Reduction = o.Result.Reduction()
		}
		op.Outputs = append(op.Outputs, info)
	}
	return op
}

// Output returns the i-th produced file, or false when it does not exist, was
// skipped, or has been released.
func (j *Job) Output(i int) (*convert.Result, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if i < 0 || i >= len(j.outputs) || j.outputs[i].Result == nil {
		return nil, false
	}
	return j.outputs[i].Result, true
}

func (j *Job) retainedBytes() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var n int64
	for _, o := range j.outputs {
		if o.Result != nil {
			n += o.Result.Size()
		}
	}
	return n
}

// release drops the job's result bytes.
func (j *Job) release() {
	j.mu.Lock()
	j.outputs = nil
	j.mu.Unlock()
}

func (j *Job) finish(outputs []Output, err error) {
	j.mu.Lock()
	j.finished = time.Now()
	if err != nil {
		j.status = StatusFailed
		j.errMsg = failureMessage(err, j.tool.Failure)
	} else {
		j.status = StatusSucceeded
		j.outputs = outputs
	}
	j.mu.Unlock()

	j.tracker.Close()
	close(j.done)
}

func failureMessage(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// Runner executes the operations of one tool page, one at a time.
type Runner struct {
	tool catalog.Tool
	base context.Context

	mu      sync.Mutex
	current *Job
	closed  bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner whose operations run under base. Canceling base
// aborts running work.
func NewRunner(base context.Context, tool catalog.Tool) *Runner {
	return &Runner{tool: tool, base: base}
}

// Tool returns the tool the runner serves.
func (r *Runner) Tool() catalog.Tool { return r.tool }

// Start launches fn in the background. It returns ErrBusy while the previous
// operation is running and ErrClosed after Close; otherwise the previous
// operation is superseded and its results are released.
func (r *Runner) Start(inputBytes int64, rejected []intake.Rejection, fn Func) (*Job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if r.current != nil && r.current.Snapshot().Status == StatusRunning {
		r.mu.Unlock()
		metrics.OperationsTotal.WithLabelValues(string(r.tool.ID), "busy").Inc()
		return nil, ErrBusy
	}

	prev := r.current
	job := &Job{
		id:       uuid.New().String(),
		tool:     r.tool,
		tracker:  progress.NewTracker(),
		rejected: rejected,
		started:  time.Now(),
		done:     make(chan struct{}),
		status:   StatusRunning,
	}
	r.current = job
	r.wg.Add(1)
	r.mu.Unlock()

	if prev != nil {
		prev.release()
	}

	tool := string(r.tool.ID)
	metrics.OperationsInProgress.WithLabelValues(tool).Inc()
	metrics.OperationInputBytes.WithLabelValues(tool).Add(float64(inputBytes))
	logging.Info("%s: operation %s started (%d bytes)", tool, job.id, inputBytes)

	go func() {
		defer r.wg.Done()
		defer metrics.OperationsInProgress.WithLabelValues(tool).Dec()

		outputs, err := fn(r.base, job.tracker)
		elapsed := time.Since(job.started)
		metrics.OperationDuration.WithLabelValues(tool).Observe(elapsed.Seconds())

		if err != nil {
			metrics.OperationsTotal.WithLabelValues(tool, "failed").Inc()
			logging.Error("%s: operation %s failed after %v: %v", tool, job.id, elapsed.Round(time.Millisecond), err)
		} else {
			metrics.OperationsTotal.WithLabelValues(tool, "succeeded").Inc()
			var out int64
			for _, o := range outputs {
				if o.Result != nil {
					out += o.Result.Size()
				}
			}
			metrics.OperationOutputBytes.WithLabelValues(tool).Add(float64(out))
			logging.Info("%s: operation %s finished in %v (%d bytes out)", tool, job.id, elapsed.Round(time.Millisecond), out)
		}
		job.finish(outputs, err)
	}()

	return job, nil
}

// Current returns the latest operation, if any.
func (r *Runner) Current() (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// Close stops the runner from accepting new operations. Running operations
// are left alone; Wait blocks until they finish.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Wait blocks until no operation is running. Call Close first so no new
// operation starts while waiting.
func (r *Runner) Wait() {
	r.wg.Wait()
}
