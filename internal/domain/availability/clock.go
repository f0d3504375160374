package availability

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day in seconds after midnight. EndOfDay (24:00) is a
// valid end boundary so an interval can run until midnight.
type Clock int32

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute

	// EndOfDay is 24:00, the last representable boundary of a day.
	EndOfDay Clock = 24 * secondsPerHour
)

// NewClock builds a Clock from hours, minutes and seconds.
func NewClock(hour, minute, second int) (Clock, error) {
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidClock, hour, minute, second)
	}
	c := Clock(hour*secondsPerHour + minute*secondsPerMinute + second)
	if c > EndOfDay {
		return 0, fmt.Errorf("%w: %02d:%02d:%02d is past 24:00", ErrInvalidClock, hour, minute, second)
	}
	return c, nil
}

// MustClock is NewClock for constant inputs; it panics on error.
func MustClock(hour, minute int) Clock {
	c, err := NewClock(hour, minute, 0)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q, want HH:MM or HH:MM:SS", ErrInvalidClock, s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q, want two-digit fields", ErrInvalidClock, s)
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalidClock, s, err)
		}
		vals[i] = v
	}
	return NewClock(vals[0], vals[1], vals[2])
}

// Valid reports whether c lies within [00:00, 24:00].
func (c Clock) Valid() bool {
	return c >= 0 && c <= EndOfDay
}

// String renders HH:MM, or HH:MM:SS when seconds are set.
func (c Clock) String() string {
	h := int(c) / secondsPerHour
	m := (int(c) % secondsPerHour) / secondsPerMinute
	s := int(c) % secondsPerMinute
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// MarshalJSON encodes the clock as its String form.
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:MM" or "HH:MM:SS".
func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClock, err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Scan reads a SQL TIME column. lib/pq delivers TIME as time.Time; text
// drivers deliver it as a string.
func (c *Clock) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		parsed, err := NewClock(v.Hour(), v.Minute(), v.Second())
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	case nil:
		return fmt.Errorf("%w: NULL", ErrInvalidClock)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidClock, src)
	}
}

func (c *Clock) scanString(s string) error {
	// Postgres may append fractional seconds.
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value writes the clock as HH:MM:SS for a SQL TIME column.
func (c Clock) Value() (driver.Value, error) {
	h := int(c) / secondsPerHour
	m := (int(c) % secondsPerHour) / secondsPerMinute
	s := int(c) % secondsPerMinute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s), nil
}
