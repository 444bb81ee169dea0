package achievement

import "time"

// ActiveMonths counts distinct calendar months (UTC) among times.
func ActiveMonths(times []time.Time) int {
	months := make(map[[2]int]bool)
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		u := t.UTC()
		months[[2]int{u.Year(), int(u.Month())}] = true
	}
	return len(months)
}

// WeeklyStreak counts consecutive ISO weeks with activity, ending at the
// week of now or the week before it. A gap of one quiet week in progress
// does not break the streak until that week is over.
func WeeklyStreak(times []time.Time, now time.Time) int {
	weeks := make(map[[2]int]bool)
	for _, t := range times {
		if t.IsZero() || t.After(now) {
			continue
		}
		y, w := t.UTC().ISOWeek()
		weeks[[2]int{y, w}] = true
	}
	if len(weeks) == 0 {
		return 0
	}

	cursor := now.UTC()
	if y, w := cursor.ISOWeek(); !weeks[[2]int{y, w}] {
		cursor = cursor.AddDate(0, 0, -7)
	}

	streak := 0
	for {
		y, w := cursor.ISOWeek()
		if !weeks[[2]int{y, w}] {
			return streak
		}
		streak++
		cursor = cursor.AddDate(0, 0, -7)
	}
}
