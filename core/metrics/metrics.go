package metrics

import "time"

// SolveResult summarizes one completed scheduling run for observability.
type SolveResult struct {
	RunID       string
	Status      string
	Objective   int64
	Scheduled   int
	Unscheduled int
	Nodes       int64
	Duration    time.Duration
	Timestamp   time.Time
}

// Sink records scheduling run results for observability purposes.
type Sink interface {
	RecordSolveResult(res SolveResult) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolveResult(SolveResult) error { return nil }
