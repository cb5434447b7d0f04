package walletService

import "time"

// Stopwatch measures the wall-clock duration of exactly one outbound call.
//
// The clock is read immediately before and immediately after call, and nothing
// else runs between the two reads, so request preparation and response
// normalization must happen outside call.
type Stopwatch struct {
	now func() time.Time
}

// NewStopwatch returns a Stopwatch reading now, or time.Now when now is nil.
func NewStopwatch(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// Time runs call and returns its elapsed time in milliseconds along with call's error.
// The duration is reported whether or not call succeeds.
func (s *Stopwatch) Time(call func() error) (float64, error) {
	start := s.now()
	err := call()
	end := s.now()
	return ElapsedMs(start, end), err
}

// ElapsedMs converts the span between start and end to fractional milliseconds, never negative.
func ElapsedMs(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
