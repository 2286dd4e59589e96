package cpmodel

import (
	"sort"
	"time"

	"schedcal/core/model"
)

// weightScale spreads priority weights so the objective dominates any
// tie-breaking refinement a solver may apply.
const weightScale = 100

// Builder constructs one model per scheduling run.
type Builder struct {
	Rules model.SchedulingRules
}

// Build encodes the requests and their resolved candidate windows into a
// model. Requests with Exclude priority or an empty window set never enter
// the model; they are returned as pre-routed unscheduled records.
func (b Builder) Build(requests []model.AppointmentRequest, windows map[string][]model.CandidateWindow) (*Model, []model.UnscheduledRequest) {
	m := &Model{Rules: b.Rules}
	var routed []model.UnscheduledRequest

	for _, req := range requests {
		if req.Priority == model.PriorityExcluded {
			routed = append(routed, model.UnscheduledRequest{
				RequestID: req.ID, ClientID: req.ClientID, Type: req.Type, Reason: model.ReasonExcluded,
			})
			continue
		}
		wins := windows[req.ID]
		cands := flatten(wins)
		if len(cands) == 0 {
			routed = append(routed, model.UnscheduledRequest{
				RequestID: req.ID, ClientID: req.ClientID, Type: req.Type, Reason: model.ReasonNoAvailability,
			})
			continue
		}
		m.Requests = append(m.Requests, Request{
			Source:     req,
			Windows:    wins,
			Candidates: cands,
			Weight:     req.Priority.Weight() * weightScale,
		})
	}

	for i := range m.Requests {
		for j := i + 1; j < len(m.Requests); j++ {
			m.Pairs = append(m.Pairs, PairGap{
				A:   i,
				B:   j,
				Gap: b.Rules.GapFor(m.Requests[i].Source.Type, m.Requests[j].Source.Type),
			})
		}
	}
	return m, routed
}

func flatten(windows []model.CandidateWindow) []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, w := range windows {
		for _, t := range w.Starts() {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
