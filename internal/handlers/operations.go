package handlers

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-toolbox/internal/logging"
	"media-toolbox/internal/operations"
	"media-toolbox/internal/streaming"
)

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*operations.Job, bool) {
	job, ok := h.registry.Find(mux.Vars(r)["id"])
	if !ok {
		writeJSONError(w, "Operation not found", http.StatusNotFound)
		return nil, false
	}
	return job, true
}

// GetOperation returns the current state of an operation.
func (h *Handlers) GetOperation(w http.ResponseWriter, r *http.Request) {
	job, ok := h.findJob(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, job.Snapshot(), http.StatusOK)
}

// OperationEvents streams progress as Server-Sent Events: "progress" events
// carry a progress snapshot and a final "done" event carries the operation.
func (h *Handlers) OperationEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := h.findJob(w, r)
	if !ok {
		return
	}

	stream, err := streaming.NewEventStream(r.Context(), w, streaming.DefaultEventStreamConfig())
	if err != nil {
		logging.Error("event stream for %s: %v", job.ID(), err)
		writeJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logging.Warn("Failed to close event stream: %v", err)
		}
	}()

	updates, unsubscribe := job.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snap, open := <-updates:
			if !open {
				if err := stream.Send("done", job.Snapshot()); err != nil {
					logStreamError(job.ID(), err)
				}
				return
			}
			if err := stream.Send("progress", snap); err != nil {
				logStreamError(job.ID(), err)
				return
			}
		case <-stream.Done():
			return
		}
	}
}

// DownloadOutput serves one produced file as an attachment.
func (h *Handlers) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := h.findJob(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSONError(w, "Invalid output index", http.StatusBadRequest)
		return
	}
	res, ok := job.Output(index)
	if !ok {
		writeJSONError(w, "Output not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, res.Filename, job.Snapshot().StartedAt, bytes.NewReader(res.Data))
}

// logStreamError logs a failed event write. A client that went away is
// routine.
func logStreamError(id string, err error) {
	if errors.Is(err, streaming.ErrClientGone) || errors.Is(err, streaming.ErrStreamCanceled) {
		logging.Debug("event stream for %s ended: %v", id, err)
		return
	}
	logging.Warn("event stream for %s failed: %v", id, err)
}
