package main

import (
	"strconv"
	"strings"
	"time"
)

// nextDailyRun parses the minute and hour fields of a 5-field cron
// expression (day-of-month/month/day-of-week are ignored; the curator's
// schedule is nominally daily) and returns the next wall-clock time
// strictly after now that matches; a match equal to now moves to the next
// day. An unparsable expression falls back to 03:00.
func nextDailyRun(cronExpr string, now time.Time) time.Time {
	hour, minute := 3, 0
	fields := strings.Fields(cronExpr)
	if len(fields) >= 2 {
		if m, err := strconv.Atoi(fields[0]); err == nil && m >= 0 && m < 60 {
			minute = m
		}
		if h, err := strconv.Atoi(fields[1]); err == nil && h >= 0 && h < 24 {
			hour = h
		}
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
