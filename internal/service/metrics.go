package service

// Metrics receives service-level measurements. The metrics package provides
// the Prometheus implementation; a nil Metrics is replaced by a no-op.
type Metrics interface {
	ObserveAction(action string, err error)
	SetOpenSessions(n int)
	ObserveSave(err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAction(string, error) {}
func (noopMetrics) SetOpenSessions(int)         {}
func (noopMetrics) ObserveSave(error)           {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
