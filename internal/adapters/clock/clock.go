// Package clock supplies the timestamps stamped on envelopes.
package clock

import "time"

// Clock reads the wall clock.
type Clock struct{}

// NowUnix returns current unix seconds.
func (Clock) NowUnix() int64 {
	return time.Now().Unix()
}

// Fixed always reports the same instant. Tests use it to pin envelope timestamps.
type Fixed int64

// NowUnix returns the fixed value.
func (f Fixed) NowUnix() int64 {
	return int64(f)
}
