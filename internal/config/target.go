package config

import (
	"fmt"
	"strings"
	"time"
)

var targetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var clockLayouts = []string{
	"15:04:05.000",
	"15:04:05",
	"15:04",
}

// ParseTarget reads a start instant in now's location. An empty string means
// now; a bare clock time means that time today.
func ParseTarget(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	loc := now.Location()
	for _, layout := range targetLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			y, m, d := now.Date()
			return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("target %q: use \"2006-01-02 15:04:05\", \"15:04:05\" or RFC3339", s)
}
