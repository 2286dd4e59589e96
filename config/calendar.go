package config

import (
	"fmt"
	"strings"
	"time"

	"schedcal/core/model"
)

// CalendarConfig maps weekday names to working hour ranges of the form
// "10:00-23:15". Weekdays absent from the map are closed. An empty map
// falls back to the default working calendar.
type CalendarConfig struct {
	Hours map[string]string `json:"hours"`
}

var configWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate checks that every entry parses.
func (c CalendarConfig) Validate() error {
	_, err := c.Build()
	return err
}

// Build converts the config into a working calendar.
func (c CalendarConfig) Build() (model.WorkingCalendar, error) {
	if len(c.Hours) == 0 {
		return model.DefaultWorkingCalendar(), nil
	}
	hours := make(map[time.Weekday]model.DayWindow, len(c.Hours))
	for name, span := range c.Hours {
		wd, ok := configWeekdays[strings.ToLower(name)]
		if !ok {
			return model.WorkingCalendar{}, fmt.Errorf("calendar: unknown weekday %q", name)
		}
		window, err := parseDayWindow(span)
		if err != nil {
			return model.WorkingCalendar{}, fmt.Errorf("calendar: %s: %w", name, err)
		}
		hours[wd] = window
	}
	return model.NewWorkingCalendar(hours)
}

func parseDayWindow(span string) (model.DayWindow, error) {
	parts := strings.SplitN(span, "-", 2)
	if len(parts) != 2 {
		return model.DayWindow{}, fmt.Errorf("invalid range %q", span)
	}
	start, err := parseMinuteOfDay(parts[0])
	if err != nil {
		return model.DayWindow{}, err
	}
	end, err := parseMinuteOfDay(parts[1])
	if err != nil {
		return model.DayWindow{}, err
	}
	if end <= start {
		return model.DayWindow{}, fmt.Errorf("range %q ends before it starts", span)
	}
	return model.DayWindow{StartMinute: start, EndMinute: end}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
