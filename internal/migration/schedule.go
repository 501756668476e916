package migration

import "time"

// ComputeNextRun returns the first occurrence of the schedule strictly
// after now, preserving the anchor's time of day (and weekday or
// day-of-month where the recurrence calls for it).
//
// Monthly recurrence clamps to the last day of shorter months: an
// anchor on Jan 31 runs Feb 28 (29 in leap years) and returns to
// Mar 31. Naive AddDate arithmetic would silently roll into the
// following month instead.
//
// The second return value is false for once schedules, which have no
// next run.
func ComputeNextRun(schedule Schedule, anchor, now time.Time) (time.Time, bool) {
	switch schedule {
	case ScheduleDaily:
		next := atAnchorTime(now, anchor)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true

	case ScheduleWeekly:
		next := atAnchorTime(now, anchor)
		days := int(anchor.Weekday()-next.Weekday()+7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next, true

	case ScheduleMonthly:
		year, month := now.Year(), now.Month()
		for i := 0; i < 2; i++ {
			day := anchor.Day()
			if last := lastDayOfMonth(year, month); day > last {
				day = last
			}
			next := time.Date(year, month, day,
				anchor.Hour(), anchor.Minute(), anchor.Second(), 0, anchor.Location())
			if next.After(now) {
				return next, true
			}
			year, month = nextMonth(year, month)
		}
		// Unreachable: the candidate one month out is always in the future.
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}

// atAnchorTime places the anchor's time of day on now's date.
func atAnchorTime(now, anchor time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(),
		anchor.Hour(), anchor.Minute(), anchor.Second(), 0, anchor.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// Due filters jobs down to those eligible for execution at now: every
// non-running job whose next run (or anchor time, if it has never run)
// has passed. Once jobs that already reached a terminal state are
// retired and never re-enter the due set.
func Due(jobs []*ScheduledMigrationJob, now time.Time) []*ScheduledMigrationJob {
	due := []*ScheduledMigrationJob{}
	for _, job := range jobs {
		if job.Status == JobRunning {
			continue
		}
		if job.Schedule == ScheduleOnce &&
			(job.Status == JobCompleted || job.Status == JobFailed) {
			continue
		}

		var at time.Time
		switch {
		case job.NextRun != nil:
			at = *job.NextRun
		case job.LastRun == nil:
			at = job.ScheduledTime
		default:
			// Already ran and no next run scheduled: retired.
			continue
		}

		if !at.After(now) {
			due = append(due, job)
		}
	}
	return due
}
