package solver

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"schedcal/core/cpmodel"
)

// relaxationBound computes a global upper bound on the objective from a
// fractional relaxation of the model, ignoring the pairwise gap and block
// constraints but keeping request selection, the daily streets cap and
// each day's time capacity. If the LP fails the trivial schedule-everything
// bound is used instead.
func relaxationBound(m *cpmodel.Model) int64 {
	if len(m.Requests) == 0 {
		return 0
	}
	val, err := lpSolve(m)
	if err != nil {
		return m.MaxObjective()
	}
	bound := int64(math.Floor(val + 1e-6))
	if max := m.MaxObjective(); bound > max {
		bound = max
	}
	if bound < 0 {
		bound = 0
	}
	return bound
}

// lpSolve points to the function used to solve the relaxation. It can be
// overridden in tests to simulate solver failures.
var lpSolve = solveRelaxation

// solveRelaxation maximizes the weighted selection with simplex over
// variables x[i,d] in [0,1]: the fraction of request i placed on day d.
// Constraints, all inequalities brought to standard form with slacks:
//
//	sum over d of x[i,d] <= 1                          per request
//	sum of streets durations on d <= daily cap         per day
//	sum of (duration + min gap) on d <= span + min gap per day
func solveRelaxation(m *cpmodel.Model) (float64, error) {
	type dayVar struct {
		req int
		day time.Time
	}
	var vars []dayVar
	varsByReq := make(map[int][]int)
	varsByDay := make(map[time.Time][]int)
	spanStart := make(map[time.Time]time.Time)
	spanEnd := make(map[time.Time]time.Time)

	for i, r := range m.Requests {
		days := make(map[time.Time]struct{})
		for _, c := range r.Candidates {
			day := dateOf(c)
			end := c.Add(r.Source.Duration)
			if s, ok := spanStart[day]; !ok || c.Before(s) {
				spanStart[day] = c
			}
			if e, ok := spanEnd[day]; !ok || end.After(e) {
				spanEnd[day] = end
			}
			if _, seen := days[day]; seen {
				continue
			}
			days[day] = struct{}{}
			k := len(vars)
			vars = append(vars, dayVar{req: i, day: day})
			varsByReq[i] = append(varsByReq[i], k)
			varsByDay[day] = append(varsByDay[day], k)
		}
	}

	nv := len(vars)
	rows := len(varsByReq) + 2*len(varsByDay)
	g := mat.NewDense(rows, nv, nil)
	h := make([]float64, rows)
	row := 0
	for i := range m.Requests {
		for _, k := range varsByReq[i] {
			g.Set(row, k, 1)
		}
		h[row] = 1
		row++
	}
	gapMin := m.Rules.MinGap.Minutes()
	for day, ks := range varsByDay {
		for _, k := range ks {
			if m.Requests[vars[k].req].Source.Type.IsStreets() {
				g.Set(row, k, m.Requests[vars[k].req].Source.Duration.Minutes())
			}
		}
		h[row] = m.Rules.MaxStreetsPerDay.Minutes()
		row++
		for _, k := range ks {
			g.Set(row, k, m.Requests[vars[k].req].Source.Duration.Minutes()+gapMin)
		}
		h[row] = spanEnd[day].Sub(spanStart[day]).Minutes() + gapMin
		row++
	}

	// Standard form: append one slack per inequality row and minimize the
	// negated weights.
	c := make([]float64, nv+rows)
	for k, v := range vars {
		c[k] = -float64(m.Requests[v.req].Weight)
	}
	a := mat.NewDense(rows, nv+rows, nil)
	for r := 0; r < rows; r++ {
		for k := 0; k < nv; k++ {
			a.Set(r, k, g.At(r, k))
		}
		a.Set(r, nv+r, 1)
	}
	opt, _, err := lp.Simplex(c, a, h, 1e-7, nil)
	if err != nil {
		return 0, err
	}
	return -opt, nil
}
