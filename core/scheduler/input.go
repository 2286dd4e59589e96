package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"schedcal/core/model"
)

// Default durations applied when a trial request carries no explicit time.
const (
	trialStreetsDuration = 120 * time.Minute
	trialZoomDuration    = 90 * time.Minute
)

type inputDocument struct {
	StartDate    string             `json:"start_date"`
	HorizonDays  int                `json:"horizon_days,omitempty"`
	Appointments []inputAppointment `json:"appointments"`
}

type inputAppointment struct {
	ID       string     `json:"id"`
	Priority string     `json:"priority"`
	Type     string     `json:"type"`
	Time     int        `json:"time"`
	Days     []inputDay `json:"days"`
}

type inputDay struct {
	Day        string       `json:"day"`
	TimeFrames []inputFrame `json:"time_frames"`
}

type inputFrame struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseInput decodes the external request document into a RunInput,
// validating every request on the way. A malformed document or request
// fails the whole run before any modeling begins.
func ParseInput(data []byte) (RunInput, error) {
	var doc inputDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return RunInput{}, &model.ValidationError{Field: "document", Reason: err.Error()}
	}
	start, err := time.Parse("2006-01-02", doc.StartDate)
	if err != nil {
		return RunInput{}, &model.ValidationError{Field: "start_date", Reason: fmt.Sprintf("invalid date %q", doc.StartDate)}
	}

	in := RunInput{HorizonStart: start, HorizonDays: doc.HorizonDays}
	for _, a := range doc.Appointments {
		req, err := parseAppointment(a)
		if err != nil {
			return RunInput{}, err
		}
		in.Requests = append(in.Requests, req)
	}
	return in, nil
}

func parseAppointment(a inputAppointment) (model.AppointmentRequest, error) {
	typ, err := model.ParseAppointmentType(a.Type)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	prio, err := model.ParsePriority(a.Priority)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	duration := time.Duration(a.Time) * time.Minute
	if a.Time == 0 {
		switch typ {
		case model.TrialStreets:
			duration = trialStreetsDuration
		case model.TrialZoom:
			duration = trialZoomDuration
		}
	}

	var availabilityDays []model.DayAvailability
	for _, d := range a.Days {
		wd, ok := weekdayNames[strings.ToLower(d.Day)]
		if !ok {
			return model.AppointmentRequest{}, &model.ValidationError{Field: "day", Reason: fmt.Sprintf("unknown weekday %q", d.Day)}
		}
		day := model.DayAvailability{Weekday: wd}
		for _, f := range d.TimeFrames {
			start, err := parseTimestamp(f.Start)
			if err != nil {
				return model.AppointmentRequest{}, &model.ValidationError{Field: "time_frames", Reason: err.Error()}
			}
			end, err := parseTimestamp(f.End)
			if err != nil {
				return model.AppointmentRequest{}, &model.ValidationError{Field: "time_frames", Reason: err.Error()}
			}
			day.Frames = append(day.Frames, model.TimeRange{Start: start, End: end})
		}
		if len(day.Frames) > 0 {
			availabilityDays = append(availabilityDays, day)
		}
	}
	return model.NewAppointmentRequest(a.ID, clientOf(a.ID), typ, prio, duration, availabilityDays)
}

// clientOf derives the client identity from a request id: ids of the form
// "client-n" group multiple requests of one client.
func clientOf(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '-' {
			return id[:i]
		}
	}
	return id
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
