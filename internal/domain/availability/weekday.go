// Package availability defines recurring weekly availability records and the
// value types they are built from.
package availability

import "fmt"

// Weekday is a day of the week, Sunday=0 through Saturday=6.
type Weekday uint8

// Days of the week.
const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DaysPerWeek is the number of Weekday values.
const DaysPerWeek = 7

// dayNames is indexed by Weekday; the array length pins it to DaysPerWeek entries.
var dayNames = [DaysPerWeek]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// Weekdays returns all days in order, Sunday first.
func Weekdays() [DaysPerWeek]Weekday {
	var days [DaysPerWeek]Weekday
	for i := range days {
		days[i] = Weekday(i)
	}
	return days
}

// ParseWeekday converts an integer day index into a Weekday.
func ParseWeekday(day int) (Weekday, error) {
	if day < 0 || day >= DaysPerWeek {
		return 0, fmt.Errorf("%w: day_of_week %d out of range [0,6]", ErrInvalidInterval, day)
	}
	return Weekday(day), nil
}

// Valid reports whether d is one of the seven days.
func (d Weekday) Valid() bool {
	return d < DaysPerWeek
}

// String returns the English day name.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", uint8(d))
	}
	return dayNames[d]
}
