package schedule

import (
	"fmt"
	"sort"
	"time"

	"schedcal/core/cpmodel"
	"schedcal/core/model"
)

// CheckInvariants verifies every invariant a valid Schedule must satisfy:
// pairwise gaps (including the cross-type travel gap), per-day streets
// blocks, the daily streets cap, client exclusivity, candidate-window
// membership and the exclusion law.
func CheckInvariants(s model.Schedule, m *cpmodel.Model) error {
	rules := m.Rules
	byID := make(map[string]cpmodel.Request, len(m.Requests))
	for _, r := range m.Requests {
		byID[r.Source.ID] = r
	}

	for i, a := range s.Scheduled {
		req, ok := byID[a.RequestID]
		if !ok {
			return fmt.Errorf("scheduled request %s is not part of the model", a.RequestID)
		}
		if req.Source.Priority == model.PriorityExcluded {
			return fmt.Errorf("excluded request %s was scheduled", a.RequestID)
		}
		if a.Duration != req.Source.Duration {
			return fmt.Errorf("request %s scheduled with duration %v, want %v", a.RequestID, a.Duration, req.Source.Duration)
		}
		inWindow := false
		for _, w := range req.Windows {
			if w.Contains(a.Start) {
				inWindow = true
				break
			}
		}
		if !inWindow {
			return fmt.Errorf("request %s scheduled at %v outside its candidate windows", a.RequestID, a.Start)
		}
		for _, b := range s.Scheduled[i+1:] {
			gap := rules.GapFor(a.Type, b.Type)
			if a.Start.Before(b.End().Add(gap)) && b.Start.Before(a.End().Add(gap)) {
				return fmt.Errorf("requests %s and %s closer than %v", a.RequestID, b.RequestID, gap)
			}
		}
	}

	byDay := make(map[time.Time][]model.ScheduledAppointment)
	clientDays := make(map[string]map[time.Time]int)
	for _, a := range s.Scheduled {
		day := a.Day()
		byDay[day] = append(byDay[day], a)
		if clientDays[a.ClientID] == nil {
			clientDays[a.ClientID] = make(map[time.Time]int)
		}
		clientDays[a.ClientID][day]++
		if clientDays[a.ClientID][day] > 1 {
			return fmt.Errorf("client %s has multiple appointments on %s", a.ClientID, day.Format("2006-01-02"))
		}
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
		if total > rules.MaxStreetsPerDay {
			return fmt.Errorf("streets duration %v on %s exceeds cap %v", total, day.Format("2006-01-02"), rules.MaxStreetsPerDay)
		}
		if len(streets) == 0 {
			continue
		}
		sort.Slice(streets, func(i, j int) bool { return streets[i].Start.Before(streets[j].Start) })
		runStart := 0
		for i := 1; i <= len(streets); i++ {
			if i == len(streets) || streets[i].Start.Sub(streets[i-1].End()) > rules.MaxStreetGap {
				if i-runStart < rules.MinBlockSize {
					return fmt.Errorf("streets block of %d on %s is below the minimum of %d",
						i-runStart, day.Format("2006-01-02"), rules.MinBlockSize)
				}
				runStart = i
			}
		}
	}
	return nil
}
