package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/metrics"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

type fixedGeo geodata.State

func (g fixedGeo) State() geodata.State { return geodata.State(g) }

func newTestHub(t *testing.T, geo geodata.State) (*Hub, *sim.State, *httptest.Server) {
	t.Helper()
	state := sim.NewState()
	hub := NewHub(Source{
		State:   state,
		Stats:   sim.NewStats(4.35, nil),
		Geo:     fixedGeo(geo),
		Rate:    4.35,
		Metrics: metrics.New(),
	})
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return hub, state, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) RawEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env RawEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHubHelloCarriesRecentLog(t *testing.T) {
	_, state, srv := newTestHub(t, geodata.StateReady)
	state.Trigger(geodata.Country{ID: "IND", Name: "India"}, time.Now())

	conn := dial(t, srv)
	env := read(t, conn)
	require.Equal(t, TypeHello, env.Type)

	var hello Hello
	require.NoError(t, env.Decode(&hello))
	assert.Equal(t, 4.35, hello.Rate)
	assert.Equal(t, "ready", hello.GeoState)
	require.Len(t, hello.Recent, 1)
	assert.Equal(t, "IND", hello.Recent[0].CountryID)
}

func TestHubBroadcastsBirths(t *testing.T) {
	hub, state, srv := newTestHub(t, geodata.StateReady)
	task := hub.Start(context.Background())
	defer task.Close()

	conn := dial(t, srv)
	require.Equal(t, TypeHello, read(t, conn).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	state.Trigger(geodata.Country{ID: "BRA", Name: "Brazil", Centroid: [2]float64{-51.9, -14.2}}, time.Now())

	for {
		env := read(t, conn)
		if env.Type != TypeBirth {
			continue
		}
		var b Birth
		require.NoError(t, env.Decode(&b))
		assert.Equal(t, "BRA", b.CountryID)
		assert.Equal(t, "Brazil", b.Name)
		assert.Equal(t, -14.2, b.Lat)
		return
	}
}

func TestHubStatsPayload(t *testing.T) {
	hub, state, _ := newTestHub(t, geodata.StateLoading)
	state.Trigger(geodata.Country{ID: "X"}, time.Now())

	st := hub.Stats()
	assert.EqualValues(t, 1, st.Fired)
	assert.Equal(t, "loading", st.GeoState)
	assert.Equal(t, sim.FormatTally(st.Tally), st.TallyText)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub, _, _ := newTestHub(t, geodata.StateReady)
	slow := &client{remote: "slow", send: make(chan []byte, 1)}
	hub.add(slow)

	hub.Broadcast(TypeStats, Stats{})
	assert.Equal(t, 1, hub.Clients())
	hub.Broadcast(TypeStats, Stats{})
	assert.Equal(t, 0, hub.Clients(), "full buffer disconnects the client")

	_, ok := <-slow.send
	assert.True(t, ok, "queued message is still delivered")
	_, ok = <-slow.send
	assert.False(t, ok, "send channel closed")
}

func TestHealthz(t *testing.T) {
	_, _, srv := newTestHub(t, geodata.StateReady)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body["geo"])

	_, _, failed := newTestHub(t, geodata.StateFailed)
	resp2, err := http.Get(failed.URL + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, srv := newTestHub(t, geodata.StateReady)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubscribe(t *testing.T) {
	_, state, srv := newTestHub(t, geodata.StateReady)
	state.Trigger(geodata.Country{ID: "IND", Name: "India"}, time.Now())

	errStop := errors.New("stop")
	var types []string
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	err := Subscribe(context.Background(), url, func(env RawEnvelope) error {
		types = append(types, env.Type)
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, []string{TypeHello}, types)
}

func TestSubscribeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := Subscribe(ctx, "ws://127.0.0.1:1/ws", func(RawEnvelope) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServeShutsDownWithContext(t *testing.T) {
	hub, _, _ := newTestHub(t, geodata.StateReady)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, "127.0.0.1:0", hub.Handler()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
