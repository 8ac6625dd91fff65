package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/sudorandom/birth-stream/pkg/feed"
	"github.com/sudorandom/birth-stream/pkg/logging"
)

var cli struct {
	URL      string `arg:"" optional:"" help:"Feed websocket URL." default:"ws://localhost:8080/ws"`
	Stats    bool   `help:"Also print the once-per-second stats frames."`
	Limit    int    `help:"Exit after this many births (0 runs forever)."`
	LogLevel string `help:"Log level." default:"info"`
	JSON     bool   `help:"Write JSON log lines instead of console output."`
}

// printer logs feed envelopes and counts births.
type printer struct {
	stats  bool
	limit  int
	births int
}

type limitReached struct{}

func (limitReached) Error() string { return "birth limit reached" }

func (p *printer) handle(env feed.RawEnvelope) error {
	switch env.Type {
	case feed.TypeHello:
		var h feed.Hello
		if err := env.Decode(&h); err != nil {
			return nil
		}
		log.Info().Float64("rate", h.Rate).Str("geo", h.GeoState).Int("recent", len(h.Recent)).Msg("connected")
		for _, b := range h.Recent {
			log.Info().Str("country", b.CountryID).Str("name", b.Name).Str("time", b.Time).Msg("recent birth")
		}
	case feed.TypeBirth:
		var b feed.Birth
		if err := env.Decode(&b); err != nil {
			return nil
		}
		log.Info().
			Str("country", b.CountryID).
			Str("name", b.Name).
			Float64("lat", b.Lat).
			Float64("lng", b.Lng).
			Str("time", b.Time).
			Msg("birth detected")
		p.births++
		if p.limit > 0 && p.births >= p.limit {
			return limitReached{}
		}
	case feed.TypeStats:
		if !p.stats {
			return nil
		}
		var st feed.Stats
		if err := env.Decode(&st); err != nil {
			return nil
		}
		log.Info().
			Str("tally", st.TallyText).
			Int("day_percent", st.DayPercent).
			Str("clock", st.Clock).
			Uint64("fired", st.Fired).
			Uint64("skipped", st.Skipped).
			Str("geo", st.GeoState).
			Msg("stats")
	}
	return nil
}

func main() {
	kong.Parse(&cli,
		kong.Name("birth-feed"),
		kong.Description("Follow the live birth feed of a running viewer or streamer."),
	)
	if err := logging.Setup(cli.LogLevel, !cli.JSON); err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &printer{stats: cli.Stats, limit: cli.Limit}
	err := feed.Subscribe(ctx, cli.URL, p.handle)
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, limitReached{}):
		log.Info().Int("births", p.births).Msg("done")
	default:
		log.Fatal().Err(err).Msg("feed stopped")
	}
}
