package birthengine

import (
	"bytes"
	"context"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/sim"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// GeoSource is the shared world dataset.
type GeoSource interface {
	Start(ctx context.Context)
	Countries() ([]geodata.Country, bool)
	State() geodata.State
}

type Options struct {
	Width, Height int
	// Resizable makes the render surface follow the window size.
	Resizable       bool
	Theme           Theme
	RotationSpeed   float64
	Tilt            float64
	FlashDuration   time.Duration
	FrameCaptureDir string
	Now             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Width:         1920,
		Height:        1080,
		Theme:         DefaultTheme(),
		RotationSpeed: 0.015,
		Tilt:          -12,
		FlashDuration: 3500 * time.Millisecond,
		Now:           time.Now,
	}
}

type Engine struct {
	Width, Height int

	// OnCountryClick is called from Update when a country is clicked.
	OnCountryClick func(geodata.Country)
	// OnFrame receives every finished frame, e.g. for streaming.
	OnFrame func(screen *ebiten.Image)

	opts    Options
	sim     Simulation
	globe   *Globe
	globeEb *ebiten.Image
	log     zerolog.Logger

	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource

	// Only touched from the ebiten game goroutine.
	rotation       float64
	selected       *geodata.Country
	capturePending bool

	songMu        sync.Mutex
	currentSong   string
	currentArtist string
	currentExtra  string
	songChangedAt time.Time

	cancel context.CancelFunc
	done   <-chan struct{}
	tasks  []*sim.Task
}

func NewEngine(opts Options, s Simulation) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FlashDuration <= 0 {
		opts.FlashDuration = DefaultOptions().FlashDuration
	}
	regular, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	mono, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))

	return &Engine{
		Width:      opts.Width,
		Height:     opts.Height,
		opts:       opts,
		sim:        s,
		globe:      NewGlobe(opts.Theme, opts.FlashDuration),
		log:        logging.Component("engine"),
		fontSource: regular,
		monoSource: mono,
	}
}

// Start loads the geo data and starts the scheduler, the stats tick and the
// insights fetch. Close stops them again.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = ctx.Done()
	s := e.sim

	s.Geo.Start(ctx)
	if s.Insights != nil {
		s.Insights.Start(ctx)
	}
	if s.Metrics != nil {
		unsubscribe := s.State.Subscribe(s.Metrics.ObserveEvent)
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	}

	e.tasks = append(e.tasks, s.Scheduler.Start(ctx))
	var observe func(sim.Snapshot)
	if s.Metrics != nil {
		observe = s.Metrics.ObserveStats
	}
	e.tasks = append(e.tasks, s.Stats.Start(ctx, observe))
	e.log.Info().
		Int("width", e.Width).
		Int("height", e.Height).
		Bool("resizable", e.opts.Resizable).
		Msg("engine started")
}

// Close cancels every background task and waits for them to exit.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	for _, t := range e.tasks {
		t.Close()
	}
	e.tasks = nil
}

// SetNowPlaying updates the audio panel. Safe to call from any goroutine.
func (e *Engine) SetNowPlaying(song, artist, extra string) {
	e.songMu.Lock()
	defer e.songMu.Unlock()
	e.currentSong, e.currentArtist, e.currentExtra = song, artist, extra
	e.songChangedAt = e.opts.Now()
}

func (e *Engine) nowPlaying() (song, artist, extra string, changedAt time.Time) {
	e.songMu.Lock()
	defer e.songMu.Unlock()
	return e.currentSong, e.currentArtist, e.currentExtra, e.songChangedAt
}

// CaptureNext saves the next frame as a PNG when a capture dir is set.
func (e *Engine) CaptureNext() {
	e.capturePending = true
}

// Selected is the last clicked country.
func (e *Engine) Selected() (geodata.Country, bool) {
	if e.selected == nil {
		return geodata.Country{}, false
	}
	return *e.selected, true
}

// Rotation is the current rotation in degrees.
func (e *Engine) Rotation() float64 {
	return e.rotation
}

func (e *Engine) projection() Orthographic {
	return NewOrthographic(e.Width, e.Height, e.rotation, e.opts.Tilt)
}

// advance moves the globe by one tick.
func (e *Engine) advance() {
	e.rotation = math.Mod(e.rotation+e.opts.RotationSpeed, 360)
}

// Update ends the game loop once the engine context is cancelled.
func (e *Engine) Update() error {
	if e.done != nil {
		select {
		case <-e.done:
			return ebiten.Termination
		default:
		}
	}
	e.advance()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		e.Click(Point{float64(x), float64(y)})
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		e.selected = nil
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		e.CaptureNext()
	}
	return nil
}

// Click selects the country under p, if the dataset is loaded.
func (e *Engine) Click(p Point) {
	countries, ok := e.sim.Geo.Countries()
	if !ok {
		return
	}
	c, hit := CountryAt(e.projection(), p, countries)
	if !hit {
		return
	}
	e.selected = &c
	e.log.Debug().Str("country", c.ID).Msg("country selected")
	if e.OnCountryClick != nil {
		e.OnCountryClick(c)
	}
}

func (e *Engine) Draw(screen *ebiten.Image) {
	now := e.opts.Now()
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()

	if countries, ok := e.sim.Geo.Countries(); ok {
		proj := NewOrthographic(w, h, e.rotation, e.opts.Tilt)
		img := e.globe.Render(proj, w, h, countries, e.sim.State.Flashes(), now)
		if e.globeEb == nil || e.globeEb.Bounds().Dx() != w || e.globeEb.Bounds().Dy() != h {
			if e.globeEb != nil {
				e.globeEb.Deallocate()
			}
			e.globeEb = ebiten.NewImage(w, h)
		}
		e.globeEb.WritePixels(img.Pix)
		screen.DrawImage(e.globeEb, nil)
	} else {
		screen.Fill(ColorBackground)
	}

	e.drawHUD(screen, now)

	if e.sim.Metrics != nil {
		e.sim.Metrics.Frames.Inc()
	}
	if e.capturePending {
		e.capturePending = false
		e.captureFrame(screen, "frame", now)
	}
	if e.OnFrame != nil {
		e.OnFrame(screen)
	}
}

// Layout follows the window in resizable mode and keeps the fixed render
// size otherwise.
func (e *Engine) Layout(outsideWidth, outsideHeight int) (int, int) {
	if e.opts.Resizable && outsideWidth > 0 && outsideHeight > 0 {
		e.Width, e.Height = outsideWidth, outsideHeight
	}
	return e.Width, e.Height
}
