package sim

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyAtMidnightAndOneHourLater(t *testing.T) {
	rate := 4.35
	midnight := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	assert.EqualValues(t, 0, Tally(midnight, rate))
	assert.EqualValues(t, int64(math.Floor(3600*rate)), Tally(midnight.Add(time.Hour), rate))
}

func TestTallyUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 10, 19, 0, 0, 10, 0, loc)
	assert.EqualValues(t, 20, Tally(now, 2))
}

func TestDayPercent(t *testing.T) {
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DayPercent(day))
	assert.Equal(t, 50, DayPercent(day.Add(12*time.Hour)))
	assert.Equal(t, 99, DayPercent(day.Add(24*time.Hour-time.Second)))
	assert.Equal(t, 0, DayPercent(day.Add(24*time.Hour)), "resets at midnight")
}

func TestDayPercentMonotonicWithinDay(t *testing.T) {
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	prev := -1
	for ts := day; ts.Before(day.Add(24 * time.Hour)); ts = ts.Add(7 * time.Minute) {
		p := DayPercent(ts)
		assert.GreaterOrEqual(t, p, prev)
		assert.Less(t, p, 100)
		prev = p
	}
}

func TestDayPercentAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-10-25 is 25 hours long in Berlin.
	start := time.Date(2026, 10, 25, 0, 0, 0, 0, loc)
	assert.Equal(t, 25*time.Hour, EndOfDay(start).Sub(start))
	assert.Equal(t, 48, DayPercent(start.Add(12*time.Hour)))
}

func TestClockString(t *testing.T) {
	assert.Equal(t, "07:03:09", ClockString(time.Date(2026, 1, 1, 7, 3, 9, 0, time.UTC)))
}

func TestFormatTally(t *testing.T) {
	assert.Equal(t, "0", FormatTally(0))
	assert.Equal(t, "999", FormatTally(999))
	assert.Equal(t, "1.234.567", FormatTally(1234567))
}

func TestStatsRefresh(t *testing.T) {
	now := time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)
	s := NewStats(2, func() time.Time { return now })

	snap := s.Snapshot()
	assert.EqualValues(t, 7200, snap.Tally)
	assert.Equal(t, 4, snap.DayPercent)
	assert.Equal(t, "01:00:00", snap.Clock)

	now = now.Add(time.Hour)
	assert.EqualValues(t, 14400, s.Refresh().Tally)
}

func TestStatsStartTicks(t *testing.T) {
	var calls atomic.Int32
	s := NewStats(1, func() time.Time {
		calls.Add(1)
		return time.Now()
	})

	snaps := make(chan Snapshot, 4)
	task := s.Start(context.Background(), func(snap Snapshot) {
		select {
		case snaps <- snap:
		default:
		}
	})
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond,
		"constructor refresh plus the immediate tick")
	select {
	case snap := <-snaps:
		assert.False(t, snap.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	task.Close()

	assert.NotPanics(t, func() { s.Start(context.Background(), nil).Close() })
}
