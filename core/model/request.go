package model

import (
	"fmt"
	"sort"
	"time"
)

// AppointmentType identifies the session category of a request.
type AppointmentType string

const (
	Streets      AppointmentType = "streets"
	TrialStreets AppointmentType = "trial_streets"
	Zoom         AppointmentType = "zoom"
	TrialZoom    AppointmentType = "trial_zoom"
)

// IsStreets reports whether the type requires in-person travel.
func (t AppointmentType) IsStreets() bool {
	return t == Streets || t == TrialStreets
}

// IsZoom reports whether the type is a remote session.
func (t AppointmentType) IsZoom() bool {
	return t == Zoom || t == TrialZoom
}

// ParseAppointmentType converts the wire value into an AppointmentType.
func ParseAppointmentType(s string) (AppointmentType, error) {
	switch AppointmentType(s) {
	case Streets, TrialStreets, Zoom, TrialZoom:
		return AppointmentType(s), nil
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown appointment type %q", s)}
}

// Priority ranks a request for the optimization objective.
type Priority string

const (
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
	PriorityExcluded Priority = "Exclude"
)

// Weight returns the objective weight of the priority. Excluded requests
// carry no weight since they are never scheduled.
func (p Priority) Weight() int64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ParsePriority converts the wire value into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityExcluded:
		return Priority(s), nil
	}
	return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s)}
}

// TimeRange is a half-open absolute interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Validate checks that the range is well-formed.
func (r TimeRange) Validate() error {
	if !r.Start.Before(r.End) {
		return &ValidationError{Field: "time_frame", Reason: fmt.Sprintf("start %v is not before end %v", r.Start, r.End)}
	}
	return nil
}

// Overlaps reports whether two ranges share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// DayAvailability holds the client-supplied frames for one weekday.
type DayAvailability struct {
	Weekday time.Weekday
	Frames  []TimeRange
}

// AppointmentRequest is one unit of demand. Immutable once constructed
// through NewAppointmentRequest.
type AppointmentRequest struct {
	ID           string
	ClientID     string
	Type         AppointmentType
	Priority     Priority
	Duration     time.Duration
	Availability []DayAvailability
}

// NewAppointmentRequest validates and builds a request. The availability
// frames of each day must be well-formed and pairwise non-overlapping.
func NewAppointmentRequest(id, clientID string, typ AppointmentType, prio Priority, duration time.Duration, availability []DayAvailability) (AppointmentRequest, error) {
	if id == "" {
		return AppointmentRequest{}, &ValidationError{Field: "id", Reason: "empty id"}
	}
	if clientID == "" {
		clientID = id
	}
	if duration <= 0 {
		return AppointmentRequest{}, &ValidationError{Field: "duration", Reason: fmt.Sprintf("duration must be positive, got %v", duration)}
	}
	if duration%time.Minute != 0 {
		return AppointmentRequest{}, &ValidationError{Field: "duration", Reason: "duration must be a whole number of minutes"}
	}
	switch typ {
	case Streets, TrialStreets, Zoom, TrialZoom:
	default:
		return AppointmentRequest{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown appointment type %q", typ)}
	}
	switch prio {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityExcluded:
	default:
		return AppointmentRequest{}, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", prio)}
	}
	for _, day := range availability {
		frames := append([]TimeRange(nil), day.Frames...)
		sort.Slice(frames, func(i, j int) bool { return frames[i].Start.Before(frames[j].Start) })
		for i, f := range frames {
			if err := f.Validate(); err != nil {
				return AppointmentRequest{}, err
			}
			if i > 0 && frames[i-1].End.After(f.Start) {
				return AppointmentRequest{}, &ValidationError{
					Field:  "time_frames",
					Reason: fmt.Sprintf("overlapping availability frames on %s", day.Weekday),
				}
			}
		}
	}
	return AppointmentRequest{
		ID:           id,
		ClientID:     clientID,
		Type:         typ,
		Priority:     prio,
		Duration:     duration,
		Availability: availability,
	}, nil
}
