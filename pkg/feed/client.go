package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sudorandom/birth-stream/pkg/logging"
)

const maxBackoff = 60 * time.Second

// Subscribe connects to a feed URL and calls fn for every envelope,
// reconnecting with exponential backoff until ctx ends. A non-nil error
// from fn stops the subscription and is returned.
func Subscribe(ctx context.Context, url string, fn func(RawEnvelope) error) error {
	log := logging.Component("feed-client")
	backoff := time.Second
	for {
		log.Info().Str("url", url).Msg("connecting to feed")
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("dial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = readAll(ctx, conn, fn)
		var stop stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("feed connection lost, reconnecting")
	}
}

type stopError struct{ err error }

func (s stopError) Error() string { return s.err.Error() }

func readAll(ctx context.Context, conn *websocket.Conn, fn func(RawEnvelope) error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env RawEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		if err := fn(env); err != nil {
			return stopError{err}
		}
	}
}
