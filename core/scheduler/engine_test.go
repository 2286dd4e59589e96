package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedcal/core/metrics"
	"schedcal/core/model"
	"schedcal/core/solver"
	"schedcal/internal/eventbus"
)

var horizonStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) // a Sunday

func at(dayOffset, hour, min int) time.Time {
	return horizonStart.AddDate(0, 0, dayOffset).
		Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func frame(dayOffset, fromH, toH int) model.DayAvailability {
	day := horizonStart.AddDate(0, 0, dayOffset)
	return model.DayAvailability{
		Weekday: day.Weekday(),
		Frames:  []model.TimeRange{{Start: at(dayOffset, fromH, 0), End: at(dayOffset, toH, 0)}},
	}
}

func mustRequest(t *testing.T, id string, typ model.AppointmentType, prio model.Priority, dur time.Duration, days ...model.DayAvailability) model.AppointmentRequest {
	t.Helper()
	req, err := model.NewAppointmentRequest(id, "", typ, prio, dur, days)
	require.NoError(t, err)
	return req
}

type recordingSink struct {
	results []metrics.SolveResult
}

func (s *recordingSink) RecordSolveResult(res metrics.SolveResult) error {
	s.results = append(s.results, res)
	return nil
}

type fakeBusy struct {
	busy []model.TimeRange
	err  error
}

func (f fakeBusy) Busy(context.Context, time.Time, time.Time) ([]model.TimeRange, error) {
	return f.busy, f.err
}

func newEngine() *Engine {
	return &Engine{Calendar: model.DefaultWorkingCalendar(), Rules: model.DefaultRules()}
}

func TestRunSchedulesZoomRequest(t *testing.T) {
	e := newEngine()
	sink := &recordingSink{}
	e.Metrics = sink
	bus := eventbus.NewTyped[RunCompleted]()
	e.Bus = bus
	sub := bus.Subscribe()

	res, err := e.Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "12-1", model.Zoom, model.PriorityHigh, time.Hour, frame(0, 10, 14)),
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Schedule.Scheduled, 1)
	assert.Equal(t, model.StatusOptimal, res.Schedule.Status)
	assert.Equal(t, int64(300), res.Schedule.Objective)
	assert.True(t, res.Schedule.Scheduled[0].Start.Equal(at(0, 10, 0)))

	require.Len(t, sink.results, 1)
	assert.Equal(t, res.RunID, sink.results[0].RunID)
	assert.Equal(t, 1, sink.results[0].Scheduled)

	select {
	case e := <-sub:
		assert.Equal(t, res.RunID, e.RunID)
	default:
		t.Error("expected a RunCompleted event on the bus")
	}
}

func TestRunExcludedNeverScheduled(t *testing.T) {
	res, err := newEngine().Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "7-1", model.Zoom, model.PriorityExcluded, time.Hour, frame(0, 10, 14)),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Schedule.Scheduled)
	require.Len(t, res.Schedule.Unscheduled, 1)
	assert.Equal(t, model.ReasonExcluded, res.Schedule.Unscheduled[0].Reason)
}

func TestRunNoAvailability(t *testing.T) {
	// Saturday is closed, so the only frame dissolves.
	res, err := newEngine().Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "3-1", model.Zoom, model.PriorityHigh, time.Hour, frame(6, 10, 14)),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Schedule.Scheduled)
	require.Len(t, res.Schedule.Unscheduled, 1)
	assert.Equal(t, model.ReasonNoAvailability, res.Schedule.Unscheduled[0].Reason)
}

func TestRunRejectsDuplicateIDs(t *testing.T) {
	_, err := newEngine().Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "1-1", model.Zoom, model.PriorityHigh, time.Hour, frame(0, 10, 14)),
			mustRequest(t, "1-1", model.Zoom, model.PriorityLow, time.Hour, frame(0, 10, 14)),
		},
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRunRejectsMissingHorizon(t *testing.T) {
	_, err := newEngine().Run(context.Background(), RunInput{})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRunSubtractsBusyIntervals(t *testing.T) {
	e := newEngine()
	// The whole Sunday frame is busy; the Monday frame stays free.
	e.Busy = fakeBusy{busy: []model.TimeRange{{Start: at(0, 9, 0), End: at(0, 15, 0)}}}

	res, err := e.Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "4-1", model.Zoom, model.PriorityHigh, time.Hour, frame(0, 10, 14), frame(1, 10, 14)),
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Schedule.Scheduled, 1)
	assert.Equal(t, at(1, 0, 0).Day(), res.Schedule.Scheduled[0].Start.Day())
}

func TestRunBusySourceFailureIsAdvisory(t *testing.T) {
	e := newEngine()
	e.Busy = fakeBusy{err: errors.New("calendar unreachable")}
	res, err := e.Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "4-1", model.Zoom, model.PriorityHigh, time.Hour, frame(0, 10, 14)),
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Schedule.Scheduled, 1)
}

func TestRunDeterministic(t *testing.T) {
	in := RunInput{
		HorizonStart: horizonStart,
		Requests: []model.AppointmentRequest{
			mustRequest(t, "1-1", model.Streets, model.PriorityHigh, time.Hour, frame(0, 10, 16)),
			mustRequest(t, "2-1", model.Streets, model.PriorityMedium, time.Hour, frame(0, 10, 16)),
			mustRequest(t, "3-1", model.Zoom, model.PriorityLow, time.Hour, frame(0, 10, 16), frame(1, 10, 16)),
		},
	}
	first, err := newEngine().Run(context.Background(), in)
	require.NoError(t, err)
	second, err := newEngine().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Schedule.Scheduled, second.Schedule.Scheduled)
	assert.Equal(t, first.Schedule.Objective, second.Schedule.Objective)
}

// TestRunMonotonicRelaxation checks that dropping a request the optimizer
// could not place anyway never lowers the achievable objective of the rest.
func TestRunMonotonicRelaxation(t *testing.T) {
	lone := mustRequest(t, "9-1", model.Streets, model.PriorityMedium, time.Hour, frame(2, 10, 14))
	rest := []model.AppointmentRequest{
		mustRequest(t, "1-1", model.Zoom, model.PriorityHigh, time.Hour, frame(0, 10, 16)),
		mustRequest(t, "2-1", model.Zoom, model.PriorityLow, time.Hour, frame(0, 10, 16), frame(1, 10, 16)),
	}

	full, err := newEngine().Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests:     append(rest, lone),
	})
	require.NoError(t, err)

	var loneDropped bool
	for _, u := range full.Schedule.Unscheduled {
		if u.RequestID == lone.ID {
			loneDropped = u.Reason == model.ReasonDroppedByOptimizer
		}
	}
	require.True(t, loneDropped, "a single streets request cannot form a block")

	relaxed, err := newEngine().Run(context.Background(), RunInput{
		HorizonStart: horizonStart,
		Requests:     rest,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, relaxed.Schedule.Objective, full.Schedule.Objective)
}

// TestRunRandomizedInvariants replays the engine on generated inputs and
// re-verifies the scheduling rules on every produced schedule.
func TestRunRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(20260301))
	types := []model.AppointmentType{model.Streets, model.TrialStreets, model.Zoom, model.TrialZoom}
	prios := []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow, model.PriorityExcluded}
	durations := []time.Duration{60 * time.Minute, 90 * time.Minute, 120 * time.Minute}

	for round := 0; round < 20; round++ {
		var reqs []model.AppointmentRequest
		n := 3 + rng.Intn(5)
		for i := 0; i < n; i++ {
			var days []model.DayAvailability
			for d := 0; d < 7; d++ {
				if rng.Intn(2) == 0 {
					continue
				}
				from := 10 + rng.Intn(4)
				days = append(days, frame(d, from, from+3+rng.Intn(4)))
			}
			req := mustRequest(t, fmt.Sprintf("%d-%d", i, round),
				types[rng.Intn(len(types))], prios[rng.Intn(len(prios))],
				durations[rng.Intn(len(durations))], days...)
			reqs = append(reqs, req)
		}

		e := newEngine()
		e.Solver = &solver.BranchAndBound{Budget: 500 * time.Millisecond, NodeLimit: 200_000}
		res, err := e.Run(context.Background(), RunInput{HorizonStart: horizonStart, Requests: reqs})
		require.NoError(t, err, "round %d", round)
		verifySchedule(t, res.Schedule, reqs, model.DefaultRules())
	}
}

// verifySchedule re-checks the scheduling rules on a finished schedule,
// independent of the assembler's own invariant pass.
func verifySchedule(t *testing.T, s model.Schedule, reqs []model.AppointmentRequest, rules model.SchedulingRules) {
	t.Helper()

	// Every request appears exactly once, scheduled or unscheduled.
	seen := make(map[string]int)
	for _, a := range s.Scheduled {
		seen[a.RequestID]++
	}
	for _, u := range s.Unscheduled {
		seen[u.RequestID]++
	}
	for _, r := range reqs {
		assert.Equal(t, 1, seen[r.ID], "request %s must appear exactly once", r.ID)
		if r.Priority == model.PriorityExcluded {
			for _, a := range s.Scheduled {
				assert.NotEqual(t, r.ID, a.RequestID, "excluded request scheduled")
			}
		}
	}

	// Pairwise gaps.
	for i, a := range s.Scheduled {
		for _, b := range s.Scheduled[i+1:] {
			gap := rules.GapFor(a.Type, b.Type)
			ok := !a.Start.Before(b.End().Add(gap)) || !b.Start.Before(a.End().Add(gap))
			assert.True(t, ok, "%s and %s closer than %v", a.RequestID, b.RequestID, gap)
		}
	}

	// Per-day rules.
	byDay := make(map[time.Time][]model.ScheduledAppointment)
	clientDay := make(map[string]int)
	for _, a := range s.Scheduled {
		byDay[a.Day()] = append(byDay[a.Day()], a)
		key := a.ClientID + a.Day().Format("2006-01-02")
		clientDay[key]++
		assert.LessOrEqual(t, clientDay[key], 1, "client %s booked twice on %s", a.ClientID, a.Day())
	}
	for day, appts := range byDay {
		var streets []model.ScheduledAppointment
		var total time.Duration
		for _, a := range appts {
			if a.Type.IsStreets() {
				streets = append(streets, a)
				total += a.Duration
			}
		}
		assert.LessOrEqual(t, total, rules.MaxStreetsPerDay, "streets cap exceeded on %s", day)
		if len(streets) == 0 {
			continue
		}
		sort.Slice(streets, func(i, j int) bool { return streets[i].Start.Before(streets[j].Start) })
		runStart := 0
		for i := 1; i <= len(streets); i++ {
			if i == len(streets) || streets[i].Start.Sub(streets[i-1].End()) > rules.MaxStreetGap {
				assert.GreaterOrEqual(t, i-runStart, rules.MinBlockSize, "undersized streets block on %s", day)
				runStart = i
			}
		}
	}
}
