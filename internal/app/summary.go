package app

import "time"

// RunDays returns the UTC calendar days between start and end, start day first.
// Trades land in the collection of the day they were created, so a run that
// crosses midnight spans more than one day.
func RunDays(start, end time.Time) []time.Time {
	first := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)
	days := []time.Time{first}
	for d := first.AddDate(0, 0, 1); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
