package engine

import "time"

// Clock supplies the current time to status, eligibility and visibility
// computations. Injecting it keeps every decision deterministic under test;
// nothing in the engine reads the wall clock directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
