package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/sudorandom/birth-stream/pkg/birthengine"
	"github.com/sudorandom/birth-stream/pkg/config"
	"github.com/sudorandom/birth-stream/pkg/feed"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/metrics"
	"github.com/sudorandom/birth-stream/pkg/utils"
)

var cli struct {
	Config       string `help:"Config file (yaml, json or toml)." type:"path"`
	Headless     bool   `help:"Run without a local window (Xvfb rendering active)."`
	Width        int    `help:"Internal rendering width (headless only)." default:"1920"`
	Height       int    `help:"Internal rendering height (headless only)." default:"1080"`
	WindowWidth  int    `help:"Initial window width." default:"1280"`
	WindowHeight int    `help:"Initial window height." default:"720"`
	TPS          int    `help:"Ticks per second (engine updates)." default:"60"`
	Feed         string `help:"Serve the live event feed on this address, e.g. :8080. Overrides feedAddr."`
	CaptureDir   string `help:"Directory for PNG frame captures (press P)." type:"path"`
	AudioDir     string `help:"Directory of MP3 files for background music. Overrides audioDir." type:"path"`
	AudioFD      int    `name:"audio-fd" help:"File descriptor to write raw PCM audio to (streaming only)." default:"-1"`
	LogLevel     string `help:"Log level. Overrides logLevel."`
	Pretty       bool   `help:"Human readable console logs." default:"true" negatable:""`
}

func main() {
	kong.Parse(&cli,
		kong.Name("birth-viewer"),
		kong.Description("Real-time rotating globe of simulated births."),
	)
	_ = logging.Setup("info", cli.Pretty)
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("birth-viewer failed")
	}
}

// run leaves exiting to main so its deferred closes always run.
func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	applyFlags(&cfg)
	if err := logging.Setup(cfg.LogLevel, cli.Pretty); err != nil {
		return err
	}
	opts, err := birthengine.OptionsFromConfig(&cfg)
	if err != nil {
		return fmt.Errorf("invalid theme: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cache *utils.BlobCache
	if cfg.CacheDir != "" {
		if cache, err = utils.OpenBlobCache(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("dataset cache disabled")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	m := metrics.New()
	s := birthengine.NewSimulation(&cfg, cache, m)

	opts.Width, opts.Height = cli.Width, cli.Height
	opts.Resizable = !cli.Headless
	opts.FrameCaptureDir = cli.CaptureDir

	engine := birthengine.NewEngine(opts, s)
	engine.OnCountryClick = func(c geodata.Country) {
		log.Info().Str("country", c.ID).Str("name", c.Name).Msg("country clicked")
	}
	engine.Start(ctx)
	defer engine.Close()

	if cfg.FeedAddr != "" {
		hub := feed.NewHub(feed.Source{
			State:     s.State,
			Stats:     s.Stats,
			Scheduler: s.Scheduler,
			Geo:       s.Geo,
			Rate:      cfg.EventsPerSecond,
			Metrics:   m,
		})
		task := hub.Start(ctx)
		defer task.Close()
		defer hub.CloseAll()
		go func() {
			if err := feed.Serve(ctx, cfg.FeedAddr, hub.Handler()); err != nil {
				log.Error().Err(err).Msg("feed server stopped")
			}
		}()
	}

	if cfg.AudioDir != "" {
		var writer io.Writer
		if cli.AudioFD != -1 {
			log.Info().Int("fd", cli.AudioFD).Msg("attaching audio to file descriptor")
			writer = os.NewFile(uintptr(cli.AudioFD), "audio-pipe")
		}
		player := birthengine.NewAudioPlayer(cfg.AudioDir, writer, engine.SetNowPlaying)
		player.Start()
		defer player.Shutdown()
	}

	ebiten.SetTPS(cli.TPS)
	if cli.Headless {
		log.Info().Msg("running in headless mode")
	} else {
		ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		ebiten.SetWindowTitle("Global Birth Monitor")
	}
	if err := ebiten.RunGame(engine); err != nil {
		return fmt.Errorf("game loop: %w", err)
	}
	return nil
}

func applyFlags(cfg *config.Config) {
	if cli.Feed != "" {
		cfg.FeedAddr = cli.Feed
	}
	if cli.AudioDir != "" {
		cfg.AudioDir = cli.AudioDir
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
}
