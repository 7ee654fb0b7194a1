package services

import "time"

// Clock returns the current time. Tests inject fixed clocks so expiry is
// deterministic.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

func (c Clock) orDefault() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
