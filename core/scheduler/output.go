package scheduler

import "time"

const outputTimeLayout = "2006-01-02T15:04:05"

// OutputAppointment is one scheduled appointment in the output document.
type OutputAppointment struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// OutputUnscheduled is one request left out of the schedule.
type OutputUnscheduled struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// OutputDocument is the external representation of a run result, consumed
// by renderers and sync agents downstream.
type OutputDocument struct {
	RunID                string              `json:"run_id"`
	Status               string              `json:"status"`
	Objective            int64               `json:"objective"`
	FilledAppointments   []OutputAppointment `json:"filled_appointments"`
	UnfilledAppointments []OutputUnscheduled `json:"unfilled_appointments"`
}

// BuildOutput converts a run result into the output document.
func BuildOutput(res Result) OutputDocument {
	doc := OutputDocument{
		RunID:                res.RunID,
		Status:               string(res.Schedule.Status),
		Objective:            res.Schedule.Objective,
		FilledAppointments:   []OutputAppointment{},
		UnfilledAppointments: []OutputUnscheduled{},
	}
	for _, a := range res.Schedule.Scheduled {
		doc.FilledAppointments = append(doc.FilledAppointments, OutputAppointment{
			ID:              a.RequestID,
			Type:            string(a.Type),
			StartTime:       a.Start.Format(outputTimeLayout),
			EndTime:         a.End().Format(outputTimeLayout),
			DurationMinutes: int(a.Duration / time.Minute),
		})
	}
	for _, u := range res.Schedule.Unscheduled {
		doc.UnfilledAppointments = append(doc.UnfilledAppointments, OutputUnscheduled{
			ID:     u.RequestID,
			Type:   string(u.Type),
			Reason: string(u.Reason),
		})
	}
	return doc
}
