package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"
	"github.com/sudorandom/birth-stream/pkg/birthengine"
	"github.com/sudorandom/birth-stream/pkg/config"
	"github.com/sudorandom/birth-stream/pkg/feed"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/metrics"
	"github.com/sudorandom/birth-stream/pkg/utils"
)

const frameRate = 30

var cli struct {
	Config      string `help:"Config file (yaml, json or toml)." type:"path"`
	Quality     string `help:"Stream quality." enum:"1080p,4k" default:"1080p"`
	Headless    bool   `help:"Run without a local window (more stable for 24/7 streams)."`
	Output      string `help:"Output destination (file path or RTMP URL). Overrides the YouTube stream key."`
	StreamKey   string `help:"YouTube stream key." env:"YOUTUBE_STREAM_KEY"`
	Software    bool   `help:"Force software encoding (libx264) even if hardware acceleration is available."`
	Device      string `help:"VA-API render device path (Linux only)." default:"/dev/dri/renderD128"`
	VaapiDriver string `help:"Force a specific VA-API driver (e.g. iHD, i965, radeonsi)."`
	Feed        string `help:"Serve the live event feed on this address. Overrides feedAddr."`
	AudioDir    string `help:"Directory of MP3 files for the soundtrack. Overrides audioDir." type:"path"`
	Debug       bool   `help:"Enable verbose logging for debugging."`
}

type quality struct {
	Width, Height       int
	Bitrate, MaxBitrate string
}

func qualityFor(name string) quality {
	if name == "4k" {
		return quality{3840, 2160, "18000k", "25000k"}
	}
	return quality{1920, 1080, "9000k", "15000k"}
}

// encoder picks the video codec and its hardware arguments.
type encoder struct {
	Codec      string
	GlobalArgs []string
	OutputArgs []string
}

func detectEncoder(software bool, device string) encoder {
	enc := encoder{Codec: "libx264"}
	if software {
		return enc
	}
	switch runtime.GOOS {
	case "darwin":
		enc.Codec = "h264_videotoolbox"
		enc.OutputArgs = []string{"-realtime", "true", "-q:v", "65", "-color_range", "1"}
	case "linux":
		if _, err := os.Stat(device); err != nil {
			log.Debug().Str("device", device).Msg("render device not found")
			return enc
		}
		f, err := os.OpenFile(device, os.O_RDWR, 0)
		if err != nil {
			log.Warn().Err(err).Str("device", device).Msg("render device not writable, using software encoding")
			return enc
		}
		f.Close()
		enc.Codec = "h264_vaapi"
		enc.GlobalArgs = []string{"-vaapi_device", device}
		enc.OutputArgs = []string{"-vf", "format=nv12,hwupload", "-color_range", "1"}
	}
	return enc
}

func resolveOutput(output, streamKey string) string {
	switch {
	case output != "":
		return output
	case streamKey != "":
		return "rtmp://a.rtmp.youtube.com/live2/" + streamKey
	default:
		return "test.flv"
	}
}

// ffmpegArgs reads raw RGBA video from stdin and s16le audio from fd 3.
func ffmpegArgs(q quality, enc encoder, output string, debug bool) []string {
	var args []string
	if debug {
		args = append(args, "-loglevel", "debug")
	}
	args = append(args, enc.GlobalArgs...)
	args = append(args,
		"-thread_queue_size", "1024",
		"-f", "rawvideo", "-pixel_format", "rgba", "-video_size", fmt.Sprintf("%dx%d", q.Width, q.Height),
		"-framerate", fmt.Sprint(frameRate), "-i", "pipe:0",
		"-f", "s16le", "-ar", fmt.Sprint(birthengine.SampleRate), "-ac", "2", "-i", "pipe:3",
		"-c:v", enc.Codec,
		"-b:v", q.Bitrate,
		"-maxrate", q.MaxBitrate,
		"-bufsize", "30000k",
		"-g", "60",
	)
	if enc.Codec != "h264_vaapi" {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	if enc.Codec == "libx264" {
		args = append(args, "-preset", "veryfast", "-crf", "18", "-x264-params", "keyint=60:min-keyint=60:scenecut=0:bframes=2", "-color_range", "1")
	}
	args = append(args, enc.OutputArgs...)
	args = append(args, "-c:a", "aac", "-b:a", "128k")
	if strings.HasPrefix(output, "rtmp://") || strings.HasPrefix(output, "rtmps://") || strings.HasSuffix(output, ".flv") {
		args = append(args, "-f", "flv")
	}
	return append(args, output)
}

// stream owns the ffmpeg process and its two input pipes.
type stream struct {
	video  io.WriteCloser
	audio  *os.File
	closed atomic.Bool
	frames chan []byte
	pool   sync.Pool
}

func startFFmpeg(q quality, enc encoder, output string) (*stream, *exec.Cmd, error) {
	cmd := exec.Command("ffmpeg", ffmpegArgs(q, enc, output, cli.Debug)...)
	cmd.Env = append(os.Environ(), "LIBVA_MESSAGES=1")
	if cli.VaapiDriver != "" {
		cmd.Env = append(cmd.Env, "LIBVA_DRIVER_NAME="+cli.VaapiDriver)
	}
	cmd.Stderr = os.Stderr

	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	audioReader, audioWriter, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.ExtraFiles = []*os.File{audioReader}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	audioReader.Close()

	size := q.Width * q.Height * 4
	s := &stream{
		video:  pipe,
		audio:  audioWriter,
		frames: make(chan []byte, 2),
	}
	s.pool.New = func() any { return make([]byte, size) }
	go s.writeFrames()
	return s, cmd, nil
}

// onFrame copies the screen and hands it to the writer, skipping the frame
// if ffmpeg is falling behind.
func (s *stream) onFrame(screen *ebiten.Image) {
	if s.closed.Load() {
		return
	}
	buf := s.pool.Get().([]byte)
	screen.ReadPixels(buf)
	select {
	case s.frames <- buf:
	default:
		s.pool.Put(buf)
	}
}

func (s *stream) writeFrames() {
	for buf := range s.frames {
		if !s.closed.Load() {
			if _, err := s.video.Write(buf); err != nil {
				log.Error().Err(err).Msg("video pipe write failed")
				s.close()
			}
		}
		s.pool.Put(buf)
	}
}

func (s *stream) close() {
	if s.closed.Swap(true) {
		return
	}
	s.video.Close()
	s.audio.Close()
}

func main() {
	kong.Parse(&cli,
		kong.Name("birth-streamer"),
		kong.Description("Render the birth globe and stream it through ffmpeg."),
	)
	_ = logging.Setup("info", false)
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("birth-streamer failed")
	}
}

// run leaves exiting to main so its deferred closes always run.
func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cli.Debug {
		cfg.LogLevel = "debug"
	}
	if cli.Feed != "" {
		cfg.FeedAddr = cli.Feed
	}
	if cli.AudioDir != "" {
		cfg.AudioDir = cli.AudioDir
	}
	if err := logging.Setup(cfg.LogLevel, false); err != nil {
		return err
	}
	opts, err := birthengine.OptionsFromConfig(&cfg)
	if err != nil {
		return fmt.Errorf("invalid theme: %w", err)
	}
	q := qualityFor(cli.Quality)
	opts.Width, opts.Height = q.Width, q.Height

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cache *utils.BlobCache
	if cfg.CacheDir != "" {
		if cache, err = utils.OpenBlobCache(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("dataset cache disabled")
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	m := metrics.New()
	s := birthengine.NewSimulation(&cfg, cache, m)
	engine := birthengine.NewEngine(opts, s)

	output := resolveOutput(cli.Output, cli.StreamKey)
	enc := detectEncoder(cli.Software, cli.Device)
	out, cmd, err := startFFmpeg(q, enc, output)
	if err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer out.close()
	engine.OnFrame = out.onFrame

	lost := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		out.close()
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Msg("ffmpeg exited, stream connection lost. exiting in 10s")
		time.Sleep(10 * time.Second)
		lost <- fmt.Errorf("ffmpeg exited: %w", err)
		cancel()
	}()

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
		player := birthengine.NewAudioPlayer(cfg.AudioDir, out.audio, engine.SetNowPlaying)
		player.Start()
		defer player.Shutdown()
	} else {
		go writeSilence(ctx, out)
	}

	log.Info().Str("codec", enc.Codec).Str("quality", cli.Quality).Msg("warming up connection (5s)")
	time.Sleep(5 * time.Second)

	ebiten.SetTPS(frameRate)
	if cli.Headless {
		log.Info().Msg("running in headless mode")
	} else {
		ebiten.SetWindowSize(1280, 720)
		ebiten.SetWindowTitle("Birth Streamer (LIVE)")
	}
	if err := ebiten.RunGame(engine); err != nil {
		return fmt.Errorf("game loop: %w", err)
	}
	select {
	case err := <-lost:
		return err
	default:
		return nil
	}
}

// writeSilence keeps the audio input of ffmpeg fed when no music is
// configured.
func writeSilence(ctx context.Context, s *stream) {
	chunk := make([]byte, birthengine.SampleRate/10*4)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.closed.Load() {
				return
			}
			if _, err := s.audio.Write(chunk); err != nil {
				return
			}
		}
	}
}
