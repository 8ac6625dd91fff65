// Package feed broadcasts simulated births and stats to WebSocket clients.
package feed

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

const (
	TypeHello = "hello"
	TypeBirth = "birth"
	TypeStats = "stats"
)

// Envelope is the wire frame for every message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RawEnvelope is an Envelope with an undecoded payload.
type RawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Birth struct {
	ID        uuid.UUID `json:"id"`
	CountryID string    `json:"countryId"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	At        time.Time `json:"at"`
	Time      string    `json:"time"`
}

func BirthFromEntry(e sim.EventLogEntry) Birth {
	return Birth{
		ID:        e.ID,
		CountryID: e.CountryID,
		Name:      e.Name,
		Lat:       e.Lat,
		Lng:       e.Lng,
		At:        e.At,
		Time:      e.Time,
	}
}

// Stats carries both the rate based tally and the count of fired events.
// They model the same rate independently and are not expected to agree.
type Stats struct {
	Tally      int64  `json:"tally"`
	TallyText  string `json:"tallyText"`
	DayPercent int    `json:"dayPercent"`
	Clock      string `json:"clock"`
	Fired      uint64 `json:"fired"`
	Skipped    uint64 `json:"skipped"`
	GeoState   string `json:"geoState"`
}

type Hello struct {
	Rate     float64 `json:"rate"`
	GeoState string  `json:"geoState"`
	Recent   []Birth `json:"recent"`
}

// Decode unmarshals the payload of a raw envelope into v.
func (r RawEnvelope) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}
