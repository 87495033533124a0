package streak

// Frequency is how often a habit's target has to be met.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Custom  Frequency = "custom"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Custom:
		return true
	}
	return false
}

// WindowDays returns the rolling window length used for non-daily frequencies.
// ok is false for daily habits and for custom habits without a positive period.
func (f Frequency) WindowDays(periodDays int) (days int, ok bool) {
	switch f {
	case Weekly:
		return 7, true
	case Monthly:
		return 30, true
	case Custom:
		if periodDays > 0 {
			return periodDays, true
		}
	}
	return 0, false
}
