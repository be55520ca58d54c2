/*
Package streaming writes Server-Sent Events to HTTP responses.

# Overview

Operation progress is pushed to the browser as an event stream. A slow or
vanished client must not hold the handler forever, so every write carries a
deadline and a failed write ends the stream.

# Usage

	func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
		stream, err := streaming.NewEventStream(r.Context(), w, streaming.DefaultEventStreamConfig())
		if err != nil {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		defer stream.Close()

		for update := range updates {
			if err := stream.Send("progress", update); err != nil {
				return
			}
		}
	}

# Keep-alive

When KeepAlive is set, a comment line is written whenever the stream has been
silent that long. Browsers ignore comments; proxies see traffic.

# Error Handling

	var (
		ErrWriteTimeout     // a write exceeded WriteTimeout
		ErrClientGone       // the client disconnected
		ErrStreamCanceled   // Close was called
		ErrFlushUnsupported // the ResponseWriter cannot flush
	)

Check them with errors.Is.

# Middleware

Write deadlines reach the connection through http.ResponseController, so
wrapping ResponseWriters should implement Unwrap. Writers that do not still
work; their writes simply have no deadline.
*/
package streaming
