// Package solver searches a cpmodel for the priority-weighted best
// assignment of start times. The exported surface is a narrow interface so
// a CP or ILP backend can be substituted without touching the model
// builder or the schedule assembler.
package solver

import (
	"context"
	"errors"
	"time"

	"schedcal/core/cpmodel"
)

// Status reports the quality of a returned solution.
type Status int

const (
	// StatusOptimal means the search proved no better assignment exists.
	StatusOptimal Status = iota
	// StatusFeasible means the budget elapsed before the optimality gap
	// closed; the incumbent is still constraint-satisfying.
	StatusFeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	}
	return "unknown"
}

// Placement assigns one model request a concrete start time.
type Placement struct {
	Request int
	Start   time.Time
}

// Solution is the best assignment found by a solver. Requests absent from
// Placements are left unscheduled.
type Solution struct {
	Placements []Placement
	Objective  int64
	Status     Status
	Nodes      int64
	Elapsed    time.Duration
}

// ErrNoSolution signals that the search produced no assignment at all.
// Since the empty schedule is always feasible this indicates a logic
// error, not an input problem.
var ErrNoSolution = errors.New("solver: no solution produced")

// Solver finds an assignment for a model within a bounded search effort.
type Solver interface {
	Solve(ctx context.Context, m *cpmodel.Model) (Solution, error)
}
