// Package scheduler orchestrates one scheduling run: resolve candidate
// windows, build the constraint model, solve it and assemble the final
// schedule. The engine is stateless across runs; concurrent runs need no
// coordination since each owns its own model instance.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schedcal/core/availability"
	"schedcal/core/cpmodel"
	"schedcal/core/logger"
	"schedcal/core/metrics"
	"schedcal/core/model"
	"schedcal/core/schedule"
	"schedcal/core/solver"
	"schedcal/internal/eventbus"
)

// DefaultSlot is the discretization granularity of candidate windows.
const DefaultSlot = 5 * time.Minute

// DefaultHorizonDays bounds a run to one week when the input does not say
// otherwise.
const DefaultHorizonDays = 7

// BusySource supplies already-occupied intervals on the practitioner's
// calendar, subtracted from candidate windows before modeling.
type BusySource interface {
	Busy(ctx context.Context, from, to time.Time) ([]model.TimeRange, error)
}

// RunInput is the immutable input of one scheduling run.
type RunInput struct {
	HorizonStart time.Time
	HorizonDays  int
	Requests     []model.AppointmentRequest
}

// Result carries the produced schedule along with run identity and solver
// statistics.
type Result struct {
	RunID    string
	Schedule model.Schedule
	Solution solver.Solution
}

// RunCompleted is published on the event bus after every successful run.
type RunCompleted struct {
	RunID    string
	Schedule model.Schedule
}

// Engine performs scheduling runs. Zero-value fields fall back to
// defaults, except Calendar and Rules which must be set.
type Engine struct {
	Calendar model.WorkingCalendar
	Rules    model.SchedulingRules
	Slot     time.Duration
	Solver   solver.Solver
	Log      logger.Logger
	Metrics  metrics.Sink
	Bus      *eventbus.TypedBus[RunCompleted]
	Busy     BusySource
}

// Run executes one scheduling run. It returns an error for invalid input
// or an internal inconsistency; per-request infeasibility is reported
// inside the Schedule instead.
func (e *Engine) Run(ctx context.Context, in RunInput) (Result, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := e.Log
	if log == nil {
		log = nopLogger{}
	}

	if err := e.Rules.Validate(); err != nil {
		return Result{}, err
	}
	if in.HorizonStart.IsZero() {
		return Result{}, &model.ValidationError{Field: "start_date", Reason: "missing horizon start"}
	}
	days := in.HorizonDays
	if days <= 0 {
		days = DefaultHorizonDays
	}
	seen := make(map[string]struct{}, len(in.Requests))
	for _, r := range in.Requests {
		if _, dup := seen[r.ID]; dup {
			return Result{}, &model.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate request id %q", r.ID)}
		}
		seen[r.ID] = struct{}{}
	}
	slot := e.Slot
	if slot <= 0 {
		slot = DefaultSlot
	}

	busy := e.fetchBusy(ctx, in.HorizonStart, days, log)
	resolver := availability.Resolver{
		Calendar: e.Calendar,
		Horizon:  availability.Horizon{Start: in.HorizonStart, Days: days},
		Slot:     slot,
	}
	windows := make(map[string][]model.CandidateWindow, len(in.Requests))
	for _, r := range in.Requests {
		windows[r.ID] = resolver.ResolveWithBusy(r, busy)
	}

	m, routed := cpmodel.Builder{Rules: e.Rules}.Build(in.Requests, windows)
	log.Infof("run %s: %d feasible requests, %d routed around the solver", runID, len(m.Requests), len(routed))

	slv := e.Solver
	if slv == nil {
		slv = &solver.BranchAndBound{Log: log}
	}
	sol, err := slv.Solve(ctx, m)
	if err != nil {
		return Result{}, fmt.Errorf("solve: %w", err)
	}
	sched, err := schedule.Assemble(m, sol, routed)
	if err != nil {
		return Result{}, err
	}
	if sched.Status == model.StatusSuboptimalTimeout {
		log.Warnf("run %s: search budget elapsed, returning best incumbent (objective=%d)", runID, sol.Objective)
	}

	if e.Metrics != nil {
		res := metrics.SolveResult{
			RunID:       runID,
			Status:      string(sched.Status),
			Objective:   sched.Objective,
			Scheduled:   len(sched.Scheduled),
			Unscheduled: len(sched.Unscheduled),
			Nodes:       sol.Nodes,
			Duration:    time.Since(started),
			Timestamp:   started,
		}
		if err := e.Metrics.RecordSolveResult(res); err != nil {
			log.Errorf("record metrics: %v", err)
		}
	}
	if e.Bus != nil {
		e.Bus.Publish(RunCompleted{RunID: runID, Schedule: sched})
	}
	return Result{RunID: runID, Schedule: sched, Solution: sol}, nil
}

func (e *Engine) fetchBusy(ctx context.Context, start time.Time, days int, log logger.Logger) []model.TimeRange {
	if e.Busy == nil {
		return nil
	}
	busy, err := e.Busy.Busy(ctx, start, start.AddDate(0, 0, days))
	if err != nil {
		// The busy source is advisory; a failure must not fail the run.
		log.Warnf("busy source unavailable: %v", err)
		return nil
	}
	return busy
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
