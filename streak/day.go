package streak

import "time"

// DayLayout is the storage and wire format of a calendar date.
const DayLayout = "2006-01-02"

// DayOf returns the calendar date of t (in t's own location) as UTC midnight.
// All day values handled by this package are normalized this way so they can
// be compared with == and used as map keys.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a normalized day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t), nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(day time.Time) string {
	return day.Format(DayLayout)
}

// AddDays shifts a normalized day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}
