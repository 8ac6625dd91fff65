package sim

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/logging"
)

// CountrySource exposes the loaded dataset; ok is false until it is ready.
type CountrySource interface {
	Countries() ([]geodata.Country, bool)
}

// Scheduler fires simulated births at jittered intervals around a mean rate.
type Scheduler struct {
	source CountrySource
	state  *State
	picker *Picker
	rate   float64
	now    func() time.Time
	log    zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	skipped atomic.Uint64
}

type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithRand seeds the delay jitter.
func WithRand(rng *rand.Rand) SchedulerOption {
	return func(s *Scheduler) { s.rng = rng }
}

// NewScheduler creates a scheduler firing eventsPerSecond on average.
func NewScheduler(source CountrySource, state *State, picker *Picker, eventsPerSecond float64, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source: source,
		state:  state,
		picker: picker,
		rate:   eventsPerSecond,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    logging.Component("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MeanInterval is 1s divided by the configured rate.
func (s *Scheduler) MeanInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.rate)
}

// NextDelay jitters the mean interval uniformly by ±20%.
func (s *Scheduler) NextDelay() time.Duration {
	s.rngMu.Lock()
	j := 0.8 + s.rng.Float64()*0.4
	s.rngMu.Unlock()
	return time.Duration(float64(s.MeanInterval()) * j)
}

// Tick fires one event if the dataset is loaded. Without data the tick is
// skipped, not queued.
func (s *Scheduler) Tick() (EventLogEntry, bool) {
	countries, ok := s.source.Countries()
	if !ok {
		s.skipped.Add(1)
		return EventLogEntry{}, false
	}
	target, ok := s.picker.Pick(countries)
	if !ok {
		s.skipped.Add(1)
		return EventLogEntry{}, false
	}
	entry := s.state.Trigger(target, s.now())
	s.log.Debug().Str("country", entry.CountryID).Str("name", entry.Name).Msg("birth")
	return entry, true
}

// Skipped counts ticks that fired before the dataset was available.
func (s *Scheduler) Skipped() uint64 {
	return s.skipped.Load()
}

// Start runs the self-rescheduling event chain until ctx ends or the
// returned task is stopped.
func (s *Scheduler) Start(ctx context.Context) *Task {
	s.log.Info().
		Float64("rate", s.rate).
		Dur("mean_interval", s.MeanInterval()).
		Msg("event scheduler started")
	return Repeat(ctx, s.NextDelay, func() { s.Tick() })
}
