package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Snapshot is one refresh of the wall-clock stats.
type Snapshot struct {
	Tally      int64
	DayPercent int
	Clock      string
	At         time.Time
}

// StartOfDay is local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay is the following midnight. Days with a DST change are 23 or 25
// hours long.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// Tally estimates births since local midnight at a fixed rate per second.
func Tally(now time.Time, ratePerSecond float64) int64 {
	seconds := float64(now.Sub(StartOfDay(now))) / float64(time.Second)
	return int64(math.Floor(seconds * ratePerSecond))
}

// DayPercent is the floored share of the local day already elapsed.
func DayPercent(now time.Time) int {
	start, end := StartOfDay(now), EndOfDay(now)
	return int(math.Floor(float64(now.Sub(start)) / float64(end.Sub(start)) * 100))
}

func ClockString(now time.Time) string {
	return now.Format(ClockLayout)
}

var tallyPrinter = message.NewPrinter(language.German)

// FormatTally groups digits with dots, e.g. 1.234.567.
func FormatTally(n int64) string {
	return tallyPrinter.Sprintf("%d", n)
}

// Stats recomputes the tally, day percentage and clock once per second. It
// does not observe the scheduler; both model the same rate independently.
type Stats struct {
	rate float64
	now  func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

func NewStats(ratePerSecond float64, now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	s := &Stats{rate: ratePerSecond, now: now}
	s.Refresh()
	return s
}

// Refresh recomputes the snapshot from the clock.
func (s *Stats) Refresh() Snapshot {
	now := s.now()
	snap := Snapshot{
		Tally:      Tally(now, s.rate),
		DayPercent: DayPercent(now),
		Clock:      ClockString(now),
		At:         now,
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return snap
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Start refreshes immediately and then every second. onRefresh, when set,
// receives each new snapshot.
func (s *Stats) Start(ctx context.Context, onRefresh func(Snapshot)) *Task {
	return Every(ctx, time.Second, func() {
		snap := s.Refresh()
		if onRefresh != nil {
			onRefresh(snap)
		}
	})
}
