// Package cpmodel encodes a scheduling run as a combinatorial decision
// model: one scheduled boolean and one start-time decision per feasible
// request, pairwise disjunctive gap constraints, daily streets rules and a
// priority-weighted objective. The model is pure data; solving it is the
// solver package's job.
package cpmodel

import (
	"time"

	"schedcal/core/model"
)

// Request is one decision unit of the model. The scheduled boolean and the
// start decision are implicit: a solver either picks one of Candidates as
// the start time or leaves the request unscheduled. An unscheduled request
// exerts no timeline constraints.
type Request struct {
	Source model.AppointmentRequest
	// Windows are the candidate windows the start decision ranges over.
	Windows []model.CandidateWindow
	// Candidates is the flattened, ascending union of the windows' start
	// times.
	Candidates []time.Time
	// Weight is the objective contribution when the request is scheduled.
	Weight int64
}

// PairGap is a disjunctive ordering constraint between two requests,
// active only when both are scheduled: either A ends at least Gap before B
// starts, or B ends at least Gap before A starts.
type PairGap struct {
	A, B int
	Gap  time.Duration
}

// Model is the full combinatorial model for one scheduling run. Client
// exclusivity is carried by the requests' ClientID: at most one request
// per client may be scheduled on any calendar day.
type Model struct {
	Requests []Request
	Pairs    []PairGap
	Rules    model.SchedulingRules
}

// MaxObjective is the objective value of the (generally infeasible)
// relaxation that schedules every request.
func (m *Model) MaxObjective() int64 {
	var sum int64
	for _, r := range m.Requests {
		sum += r.Weight
	}
	return sum
}
