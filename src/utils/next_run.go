package utils

import (
	"strconv"
	"strings"
	"time"
)

// EstimateNextRun gives the next wall-clock time matching the minute and hour
// fields of a five-field cron expression, skipping weekends when the weekday
// field is "1-5". It is informational only; ok is false when the fields are not
// plain numbers.
func EstimateNextRun(schedule string, now time.Time, loc *time.Location) (time.Time, bool) {
	fields := strings.Fields(schedule)
	if len(fields) != 5 {
		return time.Time{}, false
	}

	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, false
	}

	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}

	if fields[4] == "1-5" {
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next, true
}
