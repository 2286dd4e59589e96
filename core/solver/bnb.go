package solver

import (
	"context"
	"sort"
	"time"

	"schedcal/core/cpmodel"
	"schedcal/core/logger"
)

const (
	defaultBudget    = 30 * time.Second
	defaultNodeLimit = 5_000_000
	// deadlineCheckMask throttles wall-clock checks to one per 1024 nodes.
	deadlineCheckMask = 0x3FF
)

// BranchAndBound is the default Solver. It runs a depth-first search over
// the requests in priority order, placing each request at one of its
// candidate start times or skipping it, and prunes subtrees whose best
// possible objective cannot beat the incumbent. An LP relaxation solved at
// the root supplies a global upper bound that can prove optimality early.
type BranchAndBound struct {
	// Budget is the wall-clock search budget. Exceeding it does not fail
	// the run; the best incumbent found so far is returned.
	Budget    time.Duration
	NodeLimit int64
	Log       logger.Logger
}

type entry struct {
	req     int
	start   time.Time
	end     time.Time
	streets bool
}

type clientDayKey struct {
	client string
	day    time.Time
}

type searchState struct {
	m      *cpmodel.Model
	gaps   [][]time.Duration
	order  []int
	suffix []int64

	perDay     map[time.Time][]entry
	streetsDur map[time.Time]time.Duration
	clientDays map[clientDayKey]struct{}
	curWeight  int64

	best      Solution
	hasBest   bool
	bound     int64
	proved    bool
	timedOut  bool
	nodes     int64
	nodeLimit int64
	deadline  time.Time
	ctx       context.Context
}

// Solve implements the Solver interface.
func (s *BranchAndBound) Solve(ctx context.Context, m *cpmodel.Model) (Solution, error) {
	started := time.Now()
	budget := s.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	nodeLimit := s.NodeLimit
	if nodeLimit <= 0 {
		nodeLimit = defaultNodeLimit
	}

	st := &searchState{
		m:          m,
		gaps:       gapMatrix(m),
		order:      decisionOrder(m),
		suffix:     make([]int64, len(m.Requests)+1),
		perDay:     make(map[time.Time][]entry),
		streetsDur: make(map[time.Time]time.Duration),
		clientDays: make(map[clientDayKey]struct{}),
		nodeLimit:  nodeLimit,
		deadline:   started.Add(budget),
		ctx:        ctx,
	}
	for i := len(st.order) - 1; i >= 0; i-- {
		st.suffix[i] = st.suffix[i+1] + m.Requests[st.order[i]].Weight
	}
	st.bound = relaxationBound(m)
	if s.Log != nil {
		s.Log.Debugw("solve start", map[string]any{
			"requests": len(m.Requests), "pairs": len(m.Pairs), "bound": st.bound,
		})
	}

	// The empty assignment is always feasible, so the search starts with a
	// valid zero-objective incumbent and can never end solution-less.
	st.record(nil, 0)
	st.search(0)

	sol := st.best
	sol.Nodes = st.nodes
	sol.Elapsed = time.Since(started)
	if st.timedOut && !st.proved {
		sol.Status = StatusFeasible
	} else {
		sol.Status = StatusOptimal
	}
	if !st.hasBest {
		return Solution{}, ErrNoSolution
	}
	if s.Log != nil {
		s.Log.Infof("solve finished: status=%s objective=%d nodes=%d elapsed=%s",
			sol.Status, sol.Objective, sol.Nodes, sol.Elapsed)
	}
	return sol, nil
}

func (st *searchState) search(pos int) {
	if st.proved || st.timedOut {
		return
	}
	st.nodes++
	if st.nodes > st.nodeLimit {
		st.timedOut = true
		return
	}
	if st.nodes&deadlineCheckMask == 0 {
		if time.Now().After(st.deadline) || st.ctx.Err() != nil {
			st.timedOut = true
			return
		}
	}
	if pos == len(st.order) {
		st.evaluateLeaf()
		return
	}
	// No subtree below this node can beat the incumbent.
	if st.curWeight+st.suffix[pos] <= st.best.Objective {
		return
	}

	idx := st.order[pos]
	req := st.m.Requests[idx]
	for _, start := range req.Candidates {
		if !st.feasible(idx, start) {
			continue
		}
		st.place(idx, start)
		st.search(pos + 1)
		st.unplace(idx, start)
		if st.proved || st.timedOut {
			return
		}
	}
	st.search(pos + 1)
}

// feasible checks the monotone constraints: pairwise gaps, the daily
// streets cap and client exclusivity. The block rule is not monotone
// (later placements can repair it) and is evaluated at leaves instead.
func (st *searchState) feasible(idx int, start time.Time) bool {
	req := st.m.Requests[idx]
	day := dateOf(start)
	end := start.Add(req.Source.Duration)

	if _, taken := st.clientDays[clientDayKey{req.Source.ClientID, day}]; taken {
		return false
	}
	if req.Source.Type.IsStreets() {
		if st.streetsDur[day]+req.Source.Duration > st.m.Rules.MaxStreetsPerDay {
			return false
		}
	}
	for _, d := range []time.Time{day.AddDate(0, 0, -1), day, day.AddDate(0, 0, 1)} {
		for _, e := range st.perDay[d] {
			gap := st.gaps[idx][e.req]
			if start.Before(e.end.Add(gap)) && e.start.Before(end.Add(gap)) {
				return false
			}
		}
	}
	return true
}

func (st *searchState) place(idx int, start time.Time) {
	req := st.m.Requests[idx]
	day := dateOf(start)
	st.perDay[day] = append(st.perDay[day], entry{
		req: idx, start: start, end: start.Add(req.Source.Duration), streets: req.Source.Type.IsStreets(),
	})
	if req.Source.Type.IsStreets() {
		st.streetsDur[day] += req.Source.Duration
	}
	st.clientDays[clientDayKey{req.Source.ClientID, day}] = struct{}{}
	st.curWeight += req.Weight
}

func (st *searchState) unplace(idx int, start time.Time) {
	req := st.m.Requests[idx]
	day := dateOf(start)
	// Depth-first search removes entries in reverse placement order, so
	// the entry is the last one of its day.
	st.perDay[day] = st.perDay[day][:len(st.perDay[day])-1]
	if len(st.perDay[day]) == 0 {
		delete(st.perDay, day)
	}
	if req.Source.Type.IsStreets() {
		st.streetsDur[day] -= req.Source.Duration
	}
	delete(st.clientDays, clientDayKey{req.Source.ClientID, day})
	st.curWeight -= req.Weight
}

// evaluateLeaf enforces the block-or-none rule on a complete assignment.
// Streets appointments that end up without a block (isolated, or in a run
// smaller than the minimum) are dropped from the candidate incumbent;
// removals never violate the monotone constraints.
func (st *searchState) evaluateLeaf() {
	dropped := make(map[int]bool)
	for _, entries := range st.perDay {
		var streets []entry
		for _, e := range entries {
			if e.streets {
				streets = append(streets, e)
			}
		}
		if len(streets) == 0 {
			continue
		}
		sort.Slice(streets, func(i, j int) bool { return streets[i].start.Before(streets[j].start) })
		runStart := 0
		for i := 1; i <= len(streets); i++ {
			if i == len(streets) || streets[i].start.Sub(streets[i-1].end) > st.m.Rules.MaxStreetGap {
				if i-runStart < st.m.Rules.MinBlockSize {
					for _, e := range streets[runStart:i] {
						dropped[e.req] = true
					}
				}
				runStart = i
			}
		}
	}

	obj := st.curWeight
	for idx := range dropped {
		obj -= st.m.Requests[idx].Weight
	}
	if st.hasBest && obj <= st.best.Objective {
		return
	}
	var placements []Placement
	for _, entries := range st.perDay {
		for _, e := range entries {
			if !dropped[e.req] {
				placements = append(placements, Placement{Request: e.req, Start: e.start})
			}
		}
	}
	st.record(placements, obj)
}

func (st *searchState) record(placements []Placement, obj int64) {
	sort.Slice(placements, func(i, j int) bool { return placements[i].Start.Before(placements[j].Start) })
	st.best = Solution{Placements: placements, Objective: obj}
	st.hasBest = true
	if obj >= st.bound {
		st.proved = true
	}
}

// decisionOrder sorts requests by descending weight, then by how
// constrained they are (fewer candidates first), then by id for
// deterministic tie-breaking.
func decisionOrder(m *cpmodel.Model) []int {
	order := make([]int, len(m.Requests))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := m.Requests[order[a]], m.Requests[order[b]]
		if ra.Weight != rb.Weight {
			return ra.Weight > rb.Weight
		}
		if len(ra.Candidates) != len(rb.Candidates) {
			return len(ra.Candidates) < len(rb.Candidates)
		}
		return ra.Source.ID < rb.Source.ID
	})
	return order
}

func gapMatrix(m *cpmodel.Model) [][]time.Duration {
	n := len(m.Requests)
	gaps := make([][]time.Duration, n)
	for i := range gaps {
		gaps[i] = make([]time.Duration, n)
	}
	for _, p := range m.Pairs {
		gaps[p.A][p.B] = p.Gap
		gaps[p.B][p.A] = p.Gap
	}
	return gaps
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
