package walletService

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns each time in order, repeating the last one.
func steppingClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		now := times[i]
		if i < len(times)-1 {
			i++
		}
		return now
	}
}

func Test_Stopwatch(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("measures only the call", func(t *testing.T) {
		sw := NewStopwatch(steppingClock(start, start.Add(250*time.Millisecond)))
		calls := 0
		ms, err := sw.Time(func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 250.0, ms)
	})

	t.Run("reports fractional milliseconds", func(t *testing.T) {
		sw := NewStopwatch(steppingClock(start, start.Add(1500*time.Microsecond)))
		ms, err := sw.Time(func() error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 1.5, ms)
	})

	t.Run("returns the call error with the duration", func(t *testing.T) {
		sw := NewStopwatch(steppingClock(start, start.Add(40*time.Millisecond)))
		ms, err := sw.Time(func() error { return fmt.Errorf("timeout") })
		require.EqualError(t, err, "timeout")
		assert.Equal(t, 40.0, ms)
	})

	t.Run("clamps a clock going backwards", func(t *testing.T) {
		sw := NewStopwatch(steppingClock(start, start.Add(-time.Second)))
		ms, err := sw.Time(func() error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 0.0, ms)
	})

	t.Run("defaults to the wall clock", func(t *testing.T) {
		sw := NewStopwatch(nil)
		ms, err := sw.Time(func() error {
			time.Sleep(20 * time.Millisecond)
			return nil
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ms, 20.0)
	})
}

func Test_ElapsedMs(t *testing.T) {
	start := time.Unix(1700000000, 0)
	assert.Equal(t, 0.0, ElapsedMs(start, start))
	assert.Equal(t, 1000.0, ElapsedMs(start, start.Add(time.Second)))
	assert.Equal(t, 0.0, ElapsedMs(start.Add(time.Second), start))
}
