package model

import (
	"fmt"
	"time"
)

// DayWindow is an allowed time-of-day interval expressed in minutes from
// midnight. A zero window means the day is closed.
type DayWindow struct {
	StartMinute int
	EndMinute   int
}

// Closed reports whether the window admits no appointments.
func (w DayWindow) Closed() bool { return w.EndMinute <= w.StartMinute }

// WorkingCalendar maps each weekday to its allowed interval. It is an
// explicitly passed immutable value, never ambient process state, so
// multiple scheduling runs can execute concurrently.
type WorkingCalendar struct {
	hours map[time.Weekday]DayWindow
}

// NewWorkingCalendar builds a calendar from per-weekday windows. Weekdays
// absent from the map are closed.
func NewWorkingCalendar(hours map[time.Weekday]DayWindow) (WorkingCalendar, error) {
	cp := make(map[time.Weekday]DayWindow, len(hours))
	for wd, w := range hours {
		if w.StartMinute < 0 || w.EndMinute > 24*60 {
			return WorkingCalendar{}, &ValidationError{Field: "calendar", Reason: fmt.Sprintf("%s window out of range", wd)}
		}
		if w.Closed() {
			continue
		}
		cp[wd] = w
	}
	return WorkingCalendar{hours: cp}, nil
}

// DefaultWorkingCalendar returns the standard working hours:
// Sunday-Thursday 10:00-23:15, Friday 12:30-17:00, Saturday closed.
func DefaultWorkingCalendar() WorkingCalendar {
	hours := map[time.Weekday]DayWindow{
		time.Friday: {StartMinute: 12*60 + 30, EndMinute: 17 * 60},
	}
	for _, wd := range []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday} {
		hours[wd] = DayWindow{StartMinute: 10 * 60, EndMinute: 23*60 + 15}
	}
	cal, _ := NewWorkingCalendar(hours)
	return cal
}

// WindowFor returns the allowed interval for the weekday, and whether the
// day is a working day at all.
func (c WorkingCalendar) WindowFor(wd time.Weekday) (DayWindow, bool) {
	w, ok := c.hours[wd]
	return w, ok
}

// SchedulingRules carries the business constraints of a scheduling run.
type SchedulingRules struct {
	// MinGap is the minimum end-to-start distance between any two
	// appointments on the shared timeline.
	MinGap time.Duration
	// CrossTypeGap replaces MinGap for zoom/streets pairs, covering the
	// travel time between remote and in-person sessions.
	CrossTypeGap time.Duration
	// MaxStreetsPerDay caps the total streets-type duration on one day.
	MaxStreetsPerDay time.Duration
	// MaxStreetGap is the largest end-to-start distance between members of
	// the same streets block.
	MaxStreetGap time.Duration
	// MinBlockSize is the smallest legal streets block.
	MinBlockSize int
}

// DefaultRules returns the production rule set.
func DefaultRules() SchedulingRules {
	return SchedulingRules{
		MinGap:           15 * time.Minute,
		CrossTypeGap:     75 * time.Minute,
		MaxStreetsPerDay: 270 * time.Minute,
		MaxStreetGap:     30 * time.Minute,
		MinBlockSize:     2,
	}
}

// GapFor returns the required end-to-start distance between two
// appointment types.
func (r SchedulingRules) GapFor(a, b AppointmentType) time.Duration {
	if (a.IsStreets() && b.IsZoom()) || (a.IsZoom() && b.IsStreets()) {
		return r.CrossTypeGap
	}
	return r.MinGap
}

// Validate checks the rule set for internal consistency.
func (r SchedulingRules) Validate() error {
	if r.MinGap < 0 || r.CrossTypeGap < r.MinGap {
		return &ValidationError{Field: "rules", Reason: "cross-type gap must be at least the minimum gap"}
	}
	if r.MaxStreetsPerDay <= 0 {
		return &ValidationError{Field: "rules", Reason: "daily streets cap must be positive"}
	}
	if r.MinBlockSize < 2 {
		return &ValidationError{Field: "rules", Reason: "streets block size must be at least 2"}
	}
	return nil
}
