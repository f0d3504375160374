package availability

import (
	"errors"
	"fmt"
)

// Sentinel kinds for availability errors.
var (
	ErrInvalidInterval = errors.New("invalid availability interval")
	ErrInvalidClock    = errors.New("invalid time of day")
)

// InvalidIntervalError reports a record that cannot take part in a sweep.
// It matches ErrInvalidInterval with errors.Is.
type InvalidIntervalError struct {
	Record Record
	Reason string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid availability interval for user %q on %s [%s,%s): %s",
		e.Record.UserID, e.Record.Day, e.Record.Start, e.Record.End, e.Reason)
}

// Unwrap exposes the sentinel kind.
func (e *InvalidIntervalError) Unwrap() error { return ErrInvalidInterval }
