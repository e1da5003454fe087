package core

import "errors"

var (
	// ErrCapacityExceeded is returned by TimerEngine.Create when every slot is in use.
	ErrCapacityExceeded = errors.New("timer registry full")

	// ErrInvalidInterval is returned for a zero interval.
	ErrInvalidInterval = errors.New("invalid timer interval")

	// ErrHandleInvalid is returned for a handle that does not name a live timer.
	ErrHandleInvalid = errors.New("invalid timer handle")

	// ErrClockNotRunning is returned by blocking waits when no tick will arrive.
	ErrClockNotRunning = errors.New("tick clock not running")

	// ErrClockStarted is returned by Attach once the clock is initialized.
	ErrClockStarted = errors.New("tick clock already initialized")
)

// ClockConfigError reports that the periodic tick source could not be armed.
// It is fatal to startup.
type ClockConfigError struct {
	RateHz uint32
	Err    error
}

func (e *ClockConfigError) Error() string {
	return "tick clock: cannot arm source at " + utoa(e.RateHz) + " Hz: " + e.Err.Error()
}

func (e *ClockConfigError) Unwrap() error {
	return e.Err
}

// errStaleHandle marks a handle whose slot has been destroyed since it was issued
var errStaleHandle = errors.New("timer handle destroyed")
