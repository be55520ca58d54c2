package metrics

import "media-toolbox/internal/session"

var sessionStates = []session.State{session.StateUnloaded, session.StateLoading, session.StateReady}

// sessionObserver implements session.Observer using the Prometheus
// metrics declared in this package.
type sessionObserver struct{}

// NewSessionObserver creates an observer that records engine session metrics
// into the Prometheus counters and histograms declared in metrics.go.
func NewSessionObserver() session.Observer {
	return &sessionObserver{}
}

func (o *sessionObserver) ObserveState(name string, state session.State) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		EngineState.WithLabelValues(name, string(s)).Set(v)
	}
}

func (o *sessionObserver) ObserveLoad(name string, durationSeconds float64, err error) {
	EngineLoadsTotal.WithLabelValues(name, StatusLabel(err)).Inc()
	EngineLoadDuration.WithLabelValues(name).Observe(durationSeconds)
}

func (o *sessionObserver) ObserveExec(name string, durationSeconds float64, err error) {
	EngineExecTotal.WithLabelValues(name, StatusLabel(err)).Inc()
	EngineExecDuration.WithLabelValues(name).Observe(durationSeconds)
}
