// Package sim holds the birth event simulation: the shared flash state, the
// recent event log, the event scheduler and the wall-clock stats.
package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sudorandom/birth-stream/pkg/geodata"
)

// MaxLogEntries is the length of the recent event log.
const MaxLogEntries = 5

// ClockLayout formats event and wall-clock times as HH:MM:SS.
const ClockLayout = "15:04:05"

// FlashRecord maps a country ID to its last trigger time.
type FlashRecord map[string]time.Time

type EventLogEntry struct {
	ID        uuid.UUID
	CountryID string
	Name      string
	Lat, Lng  float64
	At        time.Time
	Time      string
}

// EventLog keeps the newest entries first and drops the oldest on overflow.
type EventLog struct {
	entries []EventLogEntry
	max     int
}

func NewEventLog(max int) *EventLog {
	return &EventLog{entries: make([]EventLogEntry, 0, max+1), max: max}
}

func (l *EventLog) Push(e EventLogEntry) {
	l.entries = append(l.entries, EventLogEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e
	if len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
}

// Entries returns a copy, newest first.
func (l *EventLog) Entries() []EventLogEntry {
	out := make([]EventLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Len() int { return len(l.entries) }

// State is written only by the scheduler (through Trigger) and read by the
// renderer, the HUD and the feed.
type State struct {
	mu      sync.RWMutex
	flashes FlashRecord
	log     *EventLog
	fired   uint64

	subsMu sync.Mutex
	subs   map[int]func(EventLogEntry)
	nextID int
}

func NewState() *State {
	return &State{
		flashes: make(FlashRecord),
		log:     NewEventLog(MaxLogEntries),
		subs:    make(map[int]func(EventLogEntry)),
	}
}

// Trigger records a birth in country at now: the flash timestamp is
// superseded and a log entry is prepended. Subscribers are notified after
// the state is updated.
func (s *State) Trigger(c geodata.Country, now time.Time) EventLogEntry {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	entry := EventLogEntry{
		ID:        id,
		CountryID: c.ID,
		Name:      c.Name,
		Lng:       c.Centroid[0],
		Lat:       c.Centroid[1],
		At:        now,
		Time:      now.Format(ClockLayout),
	}
	if entry.Name == "" {
		entry.Name = geodata.FallbackName
	}

	s.mu.Lock()
	s.flashes[c.ID] = now
	s.log.Push(entry)
	s.fired++
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := make([]func(EventLogEntry), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(entry)
	}
	return entry
}

// FlashAt returns the last trigger time for a country.
func (s *State) FlashAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.flashes[id]
	return t, ok
}

// Flashes returns a copy of the flash record. Stale entries are included;
// callers decide activity by age.
func (s *State) Flashes() FlashRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(FlashRecord, len(s.flashes))
	for k, v := range s.flashes {
		out[k] = v
	}
	return out
}

// Log returns the recent events, newest first.
func (s *State) Log() []EventLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Entries()
}

// Fired counts every event triggered since start. It is independent of the
// rate based tally in Stats.
func (s *State) Fired() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fired
}

// Subscribe registers fn for every future event. fn runs on the scheduler
// goroutine and must not block.
func (s *State) Subscribe(fn func(EventLogEntry)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}
