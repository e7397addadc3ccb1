package assist

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is used when the user names a day but not a time.
const DefaultHour = 9

// ResolveDueTime turns the interpreter's date and time strings into a
// concrete UTC instant. date accepts "today", "tomorrow", YYYY-MM-DD or
// DD/MM/YYYY; timeStr accepts HH:MM, a bare hour, or empty (09:00).
// loc is the user's timezone; the result is converted to UTC.
func ResolveDueTime(date, timeStr string, loc *time.Location, now time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	var day time.Time
	switch strings.ToLower(strings.TrimSpace(date)) {
	case "", "today":
		day = now
	case "tomorrow":
		day = now.AddDate(0, 0, 1)
	default:
		var err error
		day, err = parseDay(strings.TrimSpace(date), loc)
		if err != nil {
			return time.Time{}, err
		}
	}

	hour, minute, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}

	due := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return due.UTC(), nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultHour, 0, nil
	}

	if h, m, ok := strings.Cut(s, ":"); ok {
		hour, err = strconv.Atoi(h)
		if err == nil {
			minute, err = strconv.Atoi(m)
		}
	} else {
		hour, err = strconv.Atoi(s)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("unrecognized time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}
