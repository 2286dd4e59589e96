package solver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedcal/core/cpmodel"
	"schedcal/core/model"
)

var sunday = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return sunday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

type testRequest struct {
	id       string
	client   string
	typ      model.AppointmentType
	prio     model.Priority
	duration time.Duration
	windows  []model.CandidateWindow
}

func buildModel(t *testing.T, reqs []testRequest) *cpmodel.Model {
	t.Helper()
	var sources []model.AppointmentRequest
	windows := make(map[string][]model.CandidateWindow)
	for _, r := range reqs {
		src, err := model.NewAppointmentRequest(r.id, r.client, r.typ, r.prio, r.duration, nil)
		require.NoError(t, err)
		sources = append(sources, src)
		windows[r.id] = r.windows
	}
	m, routed := cpmodel.Builder{Rules: model.DefaultRules()}.Build(sources, windows)
	require.Empty(t, routed)
	return m
}

func window(startH, startM, endH, endM int) model.CandidateWindow {
	return model.CandidateWindow{Start: at(startH, startM), End: at(endH, endM), Step: 5 * time.Minute}
}

func solve(t *testing.T, m *cpmodel.Model) Solution {
	t.Helper()
	sol, err := (&BranchAndBound{Budget: 10 * time.Second}).Solve(context.Background(), m)
	require.NoError(t, err)
	return sol
}

func startOf(sol Solution, req int) (time.Time, bool) {
	for _, p := range sol.Placements {
		if p.Request == req {
			return p.Start, true
		}
	}
	return time.Time{}, false
}

func TestSolveEmptyModel(t *testing.T) {
	sol := solve(t, &cpmodel.Model{Rules: model.DefaultRules()})
	assert.Empty(t, sol.Placements)
	assert.Equal(t, int64(0), sol.Objective)
	assert.Equal(t, StatusOptimal, sol.Status)
}

func TestSolveSchedulesStreetsBlock(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Streets, prio: model.PriorityHigh, duration: 90 * time.Minute,
			windows: []model.CandidateWindow{window(10, 0, 13, 0)}},
		{id: "b-1", typ: model.Streets, prio: model.PriorityHigh, duration: 90 * time.Minute,
			windows: []model.CandidateWindow{window(10, 0, 13, 0)}},
	})
	sol := solve(t, m)

	require.Len(t, sol.Placements, 2)
	assert.Equal(t, int64(600), sol.Objective)
	assert.Equal(t, StatusOptimal, sol.Status)

	// The two sessions must form a block: separated by at least the
	// minimum gap but never more than the block gap.
	first, second := sol.Placements[0], sol.Placements[1]
	gap := second.Start.Sub(first.Start.Add(90 * time.Minute))
	assert.GreaterOrEqual(t, gap, 15*time.Minute)
	assert.LessOrEqual(t, gap, 30*time.Minute)
}

func TestSolveDropsLoneStreetsRequest(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Streets, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 14, 0)}},
	})
	sol := solve(t, m)
	assert.Empty(t, sol.Placements)
	assert.Equal(t, int64(0), sol.Objective)
}

func TestSolveZoomUnaffectedByBlockRule(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Zoom, prio: model.PriorityLow, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 14, 0)}},
	})
	sol := solve(t, m)
	require.Len(t, sol.Placements, 1)
	assert.Equal(t, int64(100), sol.Objective)
}

func TestSolveKeepsCrossTypeGap(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "z-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
		{id: "s-1", typ: model.Streets, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
		{id: "s-2", typ: model.Streets, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
	})
	sol := solve(t, m)
	require.Len(t, sol.Placements, 3)

	zoomStart, ok := startOf(sol, 0)
	require.True(t, ok)
	for _, idx := range []int{1, 2} {
		s, ok := startOf(sol, idx)
		require.True(t, ok)
		// Disjunctive 75-minute separation in one direction or the other.
		apart := zoomStart.Sub(s.Add(time.Hour)) >= 75*time.Minute ||
			s.Sub(zoomStart.Add(time.Hour)) >= 75*time.Minute
		assert.True(t, apart, "zoom at %v too close to streets at %v", zoomStart, s)
	}
}

func TestSolveClientExclusivity(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "c1-1", client: "c1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
		{id: "c1-2", client: "c1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
	})
	sol := solve(t, m)
	// Both requests share one client and one day; only one may run.
	assert.Len(t, sol.Placements, 1)
	assert.Equal(t, int64(300), sol.Objective)
}

func TestSolveDailyStreetsCap(t *testing.T) {
	// Three 135-minute streets sessions: any two total 270 minutes, the
	// third would break the cap.
	var reqs []testRequest
	for _, id := range []string{"a-1", "b-1", "c-1"} {
		reqs = append(reqs, testRequest{
			id: id, typ: model.Streets, prio: model.PriorityHigh, duration: 135 * time.Minute,
			windows: []model.CandidateWindow{window(10, 0, 21, 0)},
		})
	}
	sol := solve(t, buildModel(t, reqs))
	assert.Len(t, sol.Placements, 2)
	assert.Equal(t, int64(600), sol.Objective)
}

func TestSolvePrefersHigherPriority(t *testing.T) {
	// One slot area where only one of the two clients fits on the day.
	m := buildModel(t, []testRequest{
		{id: "low-1", typ: model.Zoom, prio: model.PriorityLow, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 10, 0)}},
		{id: "high-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 10, 0)}},
	})
	sol := solve(t, m)
	require.Len(t, sol.Placements, 1)
	start, ok := startOf(sol, 1)
	require.True(t, ok, "the high-priority request must win the slot")
	assert.Equal(t, at(10, 0), start)
}

func TestSolveNodeLimitReturnsFeasible(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
		{id: "b-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
	})
	sol, err := (&BranchAndBound{Budget: 10 * time.Second, NodeLimit: 1}).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StatusFeasible, sol.Status)
}

func TestSolveDeterministic(t *testing.T) {
	build := func() *cpmodel.Model {
		return buildModel(t, []testRequest{
			{id: "a-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
				windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
			{id: "b-1", typ: model.Streets, prio: model.PriorityMedium, duration: time.Hour,
				windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
			{id: "c-1", typ: model.Streets, prio: model.PriorityMedium, duration: time.Hour,
				windows: []model.CandidateWindow{window(10, 0, 20, 0)}},
		})
	}
	first := solve(t, build())
	second := solve(t, build())
	assert.Equal(t, first.Objective, second.Objective)
	assert.Equal(t, first.Placements, second.Placements)
}

func TestRelaxationBoundFallsBackWhenLPFails(t *testing.T) {
	orig := lpSolve
	lpSolve = func(*cpmodel.Model) (float64, error) { return 0, errors.New("lp unavailable") }
	defer func() { lpSolve = orig }()

	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 12, 0)}},
	})
	assert.Equal(t, m.MaxObjective(), relaxationBound(m))

	// The search still closes with the fallback bound.
	sol := solve(t, m)
	assert.Equal(t, StatusOptimal, sol.Status)
	assert.Equal(t, int64(300), sol.Objective)
}

func TestRelaxationBoundNeverExceedsMaxObjective(t *testing.T) {
	m := buildModel(t, []testRequest{
		{id: "a-1", typ: model.Zoom, prio: model.PriorityHigh, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 12, 0)}},
		{id: "b-1", typ: model.Streets, prio: model.PriorityLow, duration: time.Hour,
			windows: []model.CandidateWindow{window(10, 0, 12, 0)}},
	})
	bound := relaxationBound(m)
	assert.GreaterOrEqual(t, bound, int64(0))
	assert.LessOrEqual(t, bound, m.MaxObjective())
}
