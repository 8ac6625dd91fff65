package metrics

import (
	"io"
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

func TestObserveEvent(t *testing.T) {
	m := New()
	m.ObserveEvent(sim.EventLogEntry{CountryID: "IND"})
	m.ObserveEvent(sim.EventLogEntry{CountryID: "IND"})
	m.ObserveEvent(sim.EventLogEntry{CountryID: "CHN"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsFired.WithLabelValues("IND")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFired.WithLabelValues("CHN")))
}

func TestObserveStats(t *testing.T) {
	m := New()
	m.ObserveStats(sim.Snapshot{Tally: 1234, DayPercent: 42})
	assert.Equal(t, 1234.0, testutil.ToFloat64(m.Tally))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.DayPercent))
}

func TestHandlerExposesWatchedValues(t *testing.T) {
	m := New()
	provider := geodata.NewStaticProvider([]geodata.Country{{ID: "ABC"}})
	m.WatchGeo(provider)

	sched := sim.NewScheduler(provider, sim.NewState(), sim.NewPicker(nil, rand.New(rand.NewSource(1))), 1,
		sim.WithClock(func() time.Time { return time.Unix(0, 0) }))
	m.WatchScheduler(sched)
	sched.Tick()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "birthstream_geo_state 2")
	assert.Contains(t, string(body), "birthstream_ticks_skipped_total 0")
}
