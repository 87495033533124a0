// Package streak computes habit statistics from a history of completion counts.
// Everything here is a pure function of its inputs; "today" is always supplied
// by the caller.
package streak

import (
	"math"
	"sort"
	"time"
)

// RateWindowDays is the trailing window used for the completion rate.
const RateWindowDays = 30

// Schedule is the part of a habit that decides what counts as a met period.
type Schedule struct {
	Frequency   Frequency
	TargetCount int
	PeriodDays  int
}

// Counts maps a normalized day (see DayOf) to the number of completions logged on it.
type Counts map[time.Time]int

// Stats are the computed figures for one habit.
type Stats struct {
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	TotalCompletions int     `json:"total_completions"`
	CompletionRate   float64 `json:"completion_rate"`
	TodayCount       int     `json:"today_count"`
	IsCompleteToday  bool    `json:"is_complete_today"`
}

// Compute derives all stats for a habit.
func Compute(s Schedule, counts Counts, today time.Time) Stats {
	today = DayOf(today)
	target := s.target()

	total := 0
	for _, c := range counts {
		total += c
	}
	todayCount := counts[today]

	return Stats{
		CurrentStreak:    CurrentStreak(s, counts, today),
		LongestStreak:    LongestStreak(s, counts),
		TotalCompletions: total,
		CompletionRate:   CompletionRate(s, counts, today, RateWindowDays),
		TodayCount:       todayCount,
		IsCompleteToday:  todayCount >= target,
	}
}

// CurrentStreak dispatches on the habit frequency.
func CurrentStreak(s Schedule, counts Counts, today time.Time) int {
	today = DayOf(today)
	if s.Frequency == Daily {
		return dailyStreak(counts, today, s.target())
	}
	window, ok := s.Frequency.WindowDays(s.PeriodDays)
	if !ok {
		return 0
	}
	return rollingStreak(counts, today, window, s.target())
}

// LongestStreak is only defined for daily habits; other frequencies report 0.
func LongestStreak(s Schedule, counts Counts) int {
	if s.Frequency != Daily || len(counts) == 0 {
		return 0
	}
	return longestDailyStreak(counts, s.target())
}

// CompletionRate is the percentage of the trailing `days` days (today included)
// that met the target, rounded to one decimal.
func CompletionRate(s Schedule, counts Counts, today time.Time, days int) float64 {
	if days <= 0 {
		return 0
	}
	today = DayOf(today)
	target := s.target()
	met := 0
	for i := 0; i < days; i++ {
		if counts[AddDays(today, -i)] >= target {
			met++
		}
	}
	return math.Round(float64(met)/float64(days)*1000) / 10
}

func (s Schedule) target() int {
	if s.TargetCount < 1 {
		return 1
	}
	return s.TargetCount
}

// dailyStreak walks back from today, or from yesterday when today is not met yet.
func dailyStreak(counts Counts, today time.Time, target int) int {
	day := today
	if counts[day] < target {
		day = AddDays(today, -1)
	}
	streak := 0
	for counts[day] >= target {
		streak++
		day = AddDays(day, -1)
	}
	return streak
}

// rollingStreak counts consecutive windows of `window` days, the first ending
// today, whose completion sum reaches target. The walk never goes past the
// earliest logged day, so it stops immediately for an empty history.
func rollingStreak(counts Counts, today time.Time, window, target int) int {
	earliest, ok := earliestDay(counts)
	if !ok {
		return 0
	}
	streak := 0
	end := today
	for !end.Before(earliest) {
		start := AddDays(end, -(window - 1))
		sum := 0
		for d := start; !d.After(end); d = AddDays(d, 1) {
			sum += counts[d]
		}
		if sum < target {
			break
		}
		streak++
		end = AddDays(start, -1)
	}
	return streak
}

func longestDailyStreak(counts Counts, target int) int {
	days := make([]time.Time, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	best, run := 0, 0
	var prev time.Time
	for _, d := range days {
		if counts[d] < target {
			continue
		}
		if prev.IsZero() || AddDays(d, 1).Equal(prev) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = d
	}
	return best
}

func earliestDay(counts Counts) (time.Time, bool) {
	var earliest time.Time
	found := false
	for d, c := range counts {
		if c <= 0 {
			continue
		}
		if !found || d.Before(earliest) {
			earliest = d
			found = true
		}
	}
	return earliest, found
}
