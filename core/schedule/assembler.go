// Package schedule converts solved decisions back into concrete scheduled
// appointments and re-checks every scheduling invariant as a defensive
// post-condition.
package schedule

import (
	"errors"
	"fmt"

	"schedcal/core/cpmodel"
	"schedcal/core/model"
	"schedcal/core/solver"
)

// ErrInternalInconsistency signals that the assembled schedule violates an
// invariant the model was supposed to enforce. This is an encoding defect
// and aborts the run; it is never a normal input-rejection error.
var ErrInternalInconsistency = errors.New("assembled schedule violates invariants")

// Assemble builds the final Schedule from the solver's decisions plus the
// requests routed around the solver (no availability, excluded priority).
func Assemble(m *cpmodel.Model, sol solver.Solution, routed []model.UnscheduledRequest) (model.Schedule, error) {
	selected := make(map[int]bool, len(sol.Placements))
	scheduled := make([]model.ScheduledAppointment, 0, len(sol.Placements))
	for _, p := range sol.Placements {
		req := m.Requests[p.Request]
		selected[p.Request] = true
		scheduled = append(scheduled, model.ScheduledAppointment{
			RequestID: req.Source.ID,
			ClientID:  req.Source.ClientID,
			Type:      req.Source.Type,
			Start:     p.Start,
			Duration:  req.Source.Duration,
		})
	}

	unscheduled := make([]model.UnscheduledRequest, 0, len(m.Requests)-len(sol.Placements)+len(routed))
	for i, req := range m.Requests {
		if selected[i] {
			continue
		}
		unscheduled = append(unscheduled, model.UnscheduledRequest{
			RequestID: req.Source.ID,
			ClientID:  req.Source.ClientID,
			Type:      req.Source.Type,
			Reason:    model.ReasonDroppedByOptimizer,
		})
	}
	unscheduled = append(unscheduled, routed...)

	status := model.StatusOptimal
	if sol.Status != solver.StatusOptimal {
		status = model.StatusSuboptimalTimeout
	}
	s := model.Schedule{
		Scheduled:   scheduled,
		Unscheduled: unscheduled,
		Objective:   sol.Objective,
		Status:      status,
	}
	if err := CheckInvariants(s, m); err != nil {
		return model.Schedule{}, fmt.Errorf("%w: %v", ErrInternalInconsistency, err)
	}
	return s, nil
}
