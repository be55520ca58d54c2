package metrics

// Operation status labels.
var operationStatuses = []string{"succeeded", "failed", "rejected", "busy"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup with the tool IDs and engine session names.
func InitializeMetrics(tools, sessions []string) {
	for _, tool := range tools {
		for _, status := range operationStatuses {
			OperationsTotal.WithLabelValues(tool, status)
		}
		OperationDuration.WithLabelValues(tool)
		OperationsInProgress.WithLabelValues(tool)
		OperationInputBytes.WithLabelValues(tool)
		OperationOutputBytes.WithLabelValues(tool)
		for _, reason := range []string{"size", "type"} {
			UploadRejectionsTotal.WithLabelValues(tool, reason)
		}
	}

	for _, s := range sessions {
		for _, status := range []string{"success", "error"} {
			EngineLoadsTotal.WithLabelValues(s, status)
			EngineExecTotal.WithLabelValues(s, status)
		}
		EngineLoadDuration.WithLabelValues(s)
		EngineExecDuration.WithLabelValues(s)
		EngineWorkspaceBytes.WithLabelValues(s)
	}
}
