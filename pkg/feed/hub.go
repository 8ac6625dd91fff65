package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/metrics"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// GeoState reports the geo data load state.
type GeoState interface {
	State() geodata.State
}

// Source is what the hub reads from.
type Source struct {
	State     *sim.State
	Stats     *sim.Stats
	Scheduler *sim.Scheduler
	Geo       GeoState
	Rate      float64
	// Metrics is optional.
	Metrics *metrics.Metrics
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to connected clients. Clients that fall behind by
// more than sendBuffer messages are disconnected.
type Hub struct {
	src      Source
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(src Source) *Hub {
	return &Hub{
		src: src,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     logging.Component("feed"),
		clients: make(map[*client]struct{}),
	}
}

// Start forwards every event and a stats frame once per second until ctx
// ends or the task is stopped.
func (h *Hub) Start(ctx context.Context) *sim.Task {
	unsubscribe := h.src.State.Subscribe(func(e sim.EventLogEntry) {
		h.Broadcast(TypeBirth, BirthFromEntry(e))
	})
	task := sim.Every(ctx, time.Second, func() {
		h.Broadcast(TypeStats, h.Stats())
	})
	go func() {
		<-task.Done()
		unsubscribe()
	}()
	return task
}

// Stats builds the current stats payload.
func (h *Hub) Stats() Stats {
	snap := h.src.Stats.Snapshot()
	st := Stats{
		Tally:      snap.Tally,
		TallyText:  sim.FormatTally(snap.Tally),
		DayPercent: snap.DayPercent,
		Clock:      snap.Clock,
		Fired:      h.src.State.Fired(),
	}
	if h.src.Scheduler != nil {
		st.Skipped = h.src.Scheduler.Skipped()
	}
	if h.src.Geo != nil {
		st.GeoState = h.src.Geo.State().String()
	}
	return st
}

func (h *Hub) hello() Hello {
	entries := h.src.State.Log()
	recent := make([]Birth, len(entries))
	for i, e := range entries {
		recent[i] = BirthFromEntry(e)
	}
	out := Hello{Rate: h.src.Rate, Recent: recent}
	if h.src.Geo != nil {
		out.GeoState = h.src.Geo.State().String()
	}
	return out
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast encodes payload once and queues it for every client.
func (h *Hub) Broadcast(typ string, payload any) {
	msg, err := json.Marshal(Envelope{Type: typ, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", typ).Msg("encode envelope")
		return
	}
	if h.src.Metrics != nil {
		h.src.Metrics.FeedMessages.WithLabelValues(typ).Inc()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("remote", c.remote).Msg("dropping slow feed client")
			h.removeLocked(c)
			if h.src.Metrics != nil {
				h.src.Metrics.FeedDropped.Inc()
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.src.Metrics != nil {
		h.src.Metrics.FeedClients.Set(float64(n))
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
	if h.src.Metrics != nil {
		h.src.Metrics.FeedClients.Set(float64(len(h.clients)))
	}
}

// ServeWS upgrades the request and streams envelopes until the client
// disconnects or is dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, remote: r.RemoteAddr, send: make(chan []byte, sendBuffer)}

	hello, err := json.Marshal(Envelope{Type: TypeHello, Payload: h.hello()})
	if err == nil {
		c.send <- hello
	}
	h.add(c)
	h.log.Info().Str("remote", r.RemoteAddr).Msg("feed client connected")

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Info().Str("remote", c.remote).Msg("feed client disconnected")
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("feed read")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// Handler serves /ws, /healthz and, with metrics, /metrics.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/healthz", h.healthz)
	if h.src.Metrics != nil {
		mux.Handle("/metrics", h.src.Metrics.Handler())
	}
	return mux
}

// healthz is unhealthy only once the geo data has failed for good.
func (h *Hub) healthz(w http.ResponseWriter, _ *http.Request) {
	state := geodata.StateReady
	if h.src.Geo != nil {
		state = h.src.Geo.State()
	}
	w.Header().Set("Content-Type", "application/json")
	if state == geodata.StateFailed {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"geo":     state.String(),
		"clients": h.Clients(),
		"fired":   h.src.State.Fired(),
	})
}

// Serve runs an HTTP server for handler until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log := logging.Component("feed")
	log.Info().Str("addr", addr).Msg("feed server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
