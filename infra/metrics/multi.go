package metrics

import coremetrics "schedcal/core/metrics"

// MultiSink fans out run results to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolveResult forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordSolveResult(res coremetrics.SolveResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolveResult(res); err != nil {
			return err
		}
	}
	return nil
}
