package geodata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sudorandom/birth-stream/pkg/logging"
	"github.com/sudorandom/birth-stream/pkg/utils"
)

// ErrNotLoaded is reported by Err while the first load is still pending.
var ErrNotLoaded = errors.New("geo data not loaded")

type State int32

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Provider performs a single memoized load of the world dataset. All
// consumers share the result; a failed load is terminal for the process.
type Provider struct {
	location string
	client   *http.Client
	cache    *utils.BlobCache
	cacheTTL time.Duration
	log      zerolog.Logger

	once      sync.Once
	done      chan struct{}
	state     atomic.Int32
	countries []Country
	err       error
}

type Option func(*Provider)

// WithCache stores downloaded datasets in cache for ttl.
func WithCache(cache *utils.BlobCache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = cache
		p.cacheTTL = ttl
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// NewProvider creates a provider for a URL or a local file path.
func NewProvider(location string, opts ...Option) *Provider {
	p := &Provider{
		location: location,
		client:   &http.Client{Timeout: 60 * time.Second},
		log:      logging.Component("geodata"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewStaticProvider returns a provider that is already Ready with countries.
func NewStaticProvider(countries []Country) *Provider {
	p := &Provider{done: make(chan struct{}), log: logging.Component("geodata")}
	p.once.Do(func() {
		p.countries = countries
		p.state.Store(int32(StateReady))
		close(p.done)
	})
	return p
}

// Start kicks off the load in the background and returns immediately. Only
// the first Start or Load performs the fetch, using its ctx.
func (p *Provider) Start(ctx context.Context) {
	p.once.Do(func() {
		p.state.Store(int32(StateLoading))
		go p.load(ctx)
	})
}

// Load blocks until the dataset is available or ctx ends.
func (p *Provider) Load(ctx context.Context) ([]Country, error) {
	p.Start(ctx)

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.countries, nil
}

func (p *Provider) load(ctx context.Context) {
	defer close(p.done)
	start := time.Now()

	data, err := utils.GetCached(ctx, p.client, p.location, p.cache, p.cacheTTL)
	if err == nil {
		p.countries, err = Parse(data)
	}
	if err == nil && len(p.countries) == 0 {
		err = errors.New("dataset contains no country polygons")
	}
	if err != nil {
		p.err = fmt.Errorf("load %s: %w", p.location, err)
		p.state.Store(int32(StateFailed))
		p.log.Error().Err(err).Str("location", p.location).Msg("geo data unavailable")
		return
	}

	p.state.Store(int32(StateReady))
	p.log.Info().
		Int("countries", len(p.countries)).
		Dur("took", time.Since(start)).
		Msg("geo data loaded")
}

// Countries returns the dataset without blocking; ok is false until Ready.
func (p *Provider) Countries() ([]Country, bool) {
	if p.State() != StateReady {
		return nil, false
	}
	return p.countries, true
}

func (p *Provider) State() State {
	return State(p.state.Load())
}

// Err is nil once Ready, ErrNotLoaded before that, and the load error after
// a failure.
func (p *Provider) Err() error {
	switch p.State() {
	case StateReady:
		return nil
	case StateFailed:
		return p.err
	}
	return ErrNotLoaded
}

// Done is closed when the load finished, successfully or not.
func (p *Provider) Done() <-chan struct{} {
	return p.done
}
