package model

import "time"

// CandidateWindow is a discretized feasible placement window for one
// request: every instant from Start to End inclusive, stepping by Step, is
// a legal start time. Slot boundaries are aligned to midnight so they are
// comparable across requests.
type CandidateWindow struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

// Starts expands the window into its candidate start times. A window with
// a non-positive Step has no starts.
func (w CandidateWindow) Starts() []time.Time {
	if w.Step <= 0 {
		return nil
	}
	var out []time.Time
	for t := w.Start; !t.After(w.End); t = t.Add(w.Step) {
		out = append(out, t)
	}
	return out
}

// Contains reports whether t is one of the window's start times.
func (w CandidateWindow) Contains(t time.Time) bool {
	if w.Step <= 0 {
		return false
	}
	if t.Before(w.Start) || t.After(w.End) {
		return false
	}
	return t.Sub(w.Start)%w.Step == 0
}

// ScheduledAppointment is an assigned placement. Produced only by the
// schedule assembler and never mutated afterwards.
type ScheduledAppointment struct {
	RequestID string
	ClientID  string
	Type      AppointmentType
	Start     time.Time
	Duration  time.Duration
}

// End returns the exclusive end of the appointment interval.
func (a ScheduledAppointment) End() time.Time { return a.Start.Add(a.Duration) }

// Day returns the calendar day of the appointment start.
func (a ScheduledAppointment) Day() time.Time {
	y, m, d := a.Start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.Start.Location())
}

// UnscheduledReason codes why a request did not make it into the schedule.
type UnscheduledReason string

const (
	// ReasonNoAvailability marks requests with no feasible candidate window
	// after intersecting with working hours.
	ReasonNoAvailability UnscheduledReason = "NoAvailability"
	// ReasonDroppedByOptimizer marks feasible requests not selected under
	// contention or structural constraints.
	ReasonDroppedByOptimizer UnscheduledReason = "DroppedByOptimizer"
	// ReasonExcluded marks requests filtered by their Exclude priority.
	ReasonExcluded UnscheduledReason = "Excluded"
)

// UnscheduledRequest records one request left out of the schedule.
type UnscheduledRequest struct {
	RequestID string
	ClientID  string
	Type      AppointmentType
	Reason    UnscheduledReason
}

// RunStatus qualifies the quality of a completed scheduling run.
type RunStatus string

const (
	// StatusOptimal means the search closed the optimality gap.
	StatusOptimal RunStatus = "optimal"
	// StatusSuboptimalTimeout means the best incumbent found within the
	// search budget was returned without proof of optimality.
	StatusSuboptimalTimeout RunStatus = "suboptimal_timeout"
)

// Schedule is the result of one scheduling run. All scheduling invariants
// are re-checked before a Schedule leaves the assembler.
type Schedule struct {
	Scheduled   []ScheduledAppointment
	Unscheduled []UnscheduledRequest
	Objective   int64
	Status      RunStatus
}
