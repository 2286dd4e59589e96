// Package availability intersects client-supplied availability with the
// working calendar and discretizes the result into candidate placement
// windows.
package availability

import (
	"sort"
	"time"

	"schedcal/core/model"
)

// Horizon bounds a scheduling run to a start date plus a number of days.
type Horizon struct {
	Start time.Time
	Days  int
}

// contains reports whether the calendar day of t falls inside the horizon.
func (h Horizon) contains(day time.Time) bool {
	if day.Before(dateOf(h.Start)) {
		return false
	}
	return day.Before(dateOf(h.Start).AddDate(0, 0, h.Days))
}

// Resolver produces candidate windows for appointment requests.
type Resolver struct {
	Calendar model.WorkingCalendar
	Horizon  Horizon
	// Slot is the discretization granularity. Slot boundaries are aligned
	// to midnight so they are comparable across requests.
	Slot time.Duration
}

// Resolve intersects the request's availability frames with the working
// calendar for each day in the horizon. An empty result means the request
// is infeasible and must bypass the solver.
func (r Resolver) Resolve(req model.AppointmentRequest) []model.CandidateWindow {
	return r.ResolveWithBusy(req, nil)
}

// ResolveWithBusy behaves like Resolve but additionally subtracts the
// given busy intervals (for example, existing events on the
// practitioner's calendar) before discretizing.
func (r Resolver) ResolveWithBusy(req model.AppointmentRequest, busy []model.TimeRange) []model.CandidateWindow {
	var windows []model.CandidateWindow
	for _, day := range req.Availability {
		for _, frame := range day.Frames {
			frameDay := dateOf(frame.Start)
			if frameDay.Weekday() != day.Weekday || !r.Horizon.contains(frameDay) {
				continue
			}
			work, open := r.Calendar.WindowFor(day.Weekday)
			if !open {
				continue
			}
			clamped, ok := clampToWorkingHours(frame, frameDay, work)
			if !ok {
				continue
			}
			for _, free := range subtract(clamped, busy) {
				if w, ok := r.discretize(free, req.Duration); ok {
					windows = append(windows, w)
				}
			}
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows
}

// clampToWorkingHours intersects an availability frame with the working
// window of its day.
func clampToWorkingHours(frame model.TimeRange, day time.Time, work model.DayWindow) (model.TimeRange, bool) {
	workStart := day.Add(time.Duration(work.StartMinute) * time.Minute)
	workEnd := day.Add(time.Duration(work.EndMinute) * time.Minute)
	start := frame.Start
	if start.Before(workStart) {
		start = workStart
	}
	end := frame.End
	if end.After(workEnd) {
		end = workEnd
	}
	if !start.Before(end) {
		return model.TimeRange{}, false
	}
	return model.TimeRange{Start: start, End: end}, true
}

// discretize turns a free interval into a candidate window of start times
// on the global slot grid. The appointment must fit entirely inside the
// interval.
func (r Resolver) discretize(free model.TimeRange, duration time.Duration) (model.CandidateWindow, bool) {
	first := alignUp(free.Start, r.Slot)
	last := free.End.Add(-duration)
	if last.Before(first) {
		return model.CandidateWindow{}, false
	}
	// Snap the latest start down onto the grid.
	last = first.Add((last.Sub(first) / r.Slot) * r.Slot)
	return model.CandidateWindow{Start: first, End: last, Step: r.Slot}, true
}

// subtract removes busy intervals from a free range, returning the
// remaining sub-ranges in order.
func subtract(free model.TimeRange, busy []model.TimeRange) []model.TimeRange {
	out := []model.TimeRange{free}
	for _, b := range busy {
		var next []model.TimeRange
		for _, f := range out {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if f.Start.Before(b.Start) {
				next = append(next, model.TimeRange{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, model.TimeRange{Start: b.End, End: f.End})
			}
		}
		out = next
	}
	return out
}

// alignUp rounds t up to the next slot boundary, anchored at midnight.
func alignUp(t time.Time, slot time.Duration) time.Time {
	day := dateOf(t)
	off := t.Sub(day)
	if rem := off % slot; rem != 0 {
		off += slot - rem
	}
	return day.Add(off)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
