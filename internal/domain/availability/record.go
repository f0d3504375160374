package availability

// Record is one user's recurring free window on one day of the week.
type Record struct {
	UserID    string
	Day       Weekday
	Start     Clock
	End       Clock
	Recurring bool
}

// Validate checks a record before it enters a sweep. A zero-length interval
// (Start == End) is accepted unless strict is set; it never produces a slot.
func (r Record) Validate(strict bool) error {
	switch {
	case r.UserID == "":
		return &InvalidIntervalError{Record: r, Reason: "missing user id"}
	case !r.Day.Valid():
		return &InvalidIntervalError{Record: r, Reason: "day_of_week out of range [0,6]"}
	case !r.Start.Valid() || !r.End.Valid():
		return &InvalidIntervalError{Record: r, Reason: "time outside 00:00-24:00"}
	case r.Start > r.End:
		return &InvalidIntervalError{Record: r, Reason: "start is after end"}
	case strict && r.Start == r.End:
		return &InvalidIntervalError{Record: r, Reason: "zero-length interval"}
	}
	return nil
}

// ValidateAll returns the first invalid record's error, or nil.
func ValidateAll(records []Record, strict bool) error {
	for _, r := range records {
		if err := r.Validate(strict); err != nil {
			return err
		}
	}
	return nil
}

// ByDay splits records into one bucket per weekday, keeping input order.
// Records with an invalid day are dropped; validate first.
func ByDay(records []Record) [DaysPerWeek][]Record {
	var out [DaysPerWeek][]Record
	for _, r := range records {
		if !r.Day.Valid() {
			continue
		}
		out[r.Day] = append(out[r.Day], r)
	}
	return out
}
