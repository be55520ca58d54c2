// Package operations runs tool work in the background and keeps its outcome
// until the next operation on the same tool replaces it.
//
// A [Runner] admits one operation at a time; [Runner.Start] returns [ErrBusy]
// while one is running. Each operation gets a UUID, a progress tracker whose
// updates can be streamed with [Job.Subscribe], and a single error slot that
// holds the failure message shown to the user.
package operations
