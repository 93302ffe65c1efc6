package timefmt

import (
	"fmt"
	"strings"
	"time"
)

type unit struct {
	size     time.Duration
	modulo   int64
	singular string
	plural   string
}

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 12 * month
)

var units = []unit{
	{year, 0, "year", "years"},
	{month, 12, "month", "months"},
	{week, 4, "week", "weeks"},
	{day, 7, "day", "days"},
	{time.Hour, 24, "hour", "hours"},
	{time.Minute, 60, "minute", "minutes"},
	{time.Second, 60, "second", "seconds"},
}

// Format renders d for people, e.g. "1 hour, 5 minutes and 3 seconds".
// Months are 30 days and years 12 months. Durations under a second are
// given in milliseconds.
func Format(d time.Duration) string {
	if d <= 0 {
		return "No time at all"
	}

	if d < time.Second {
		ms := d.Milliseconds()
		if ms == 1 {
			return "1 millisecond"
		}
		return fmt.Sprintf("%d milliseconds", ms)
	}

	var parts []string
	for _, u := range units {
		n := int64(d / u.size)
		if u.modulo > 0 {
			n %= u.modulo
		}
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.singular)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %s", n, u.plural))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
