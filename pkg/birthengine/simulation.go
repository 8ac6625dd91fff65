package birthengine

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/sudorandom/birth-stream/pkg/config"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/insights"
	"github.com/sudorandom/birth-stream/pkg/metrics"
	"github.com/sudorandom/birth-stream/pkg/sim"
	"github.com/sudorandom/birth-stream/pkg/utils"
)

// Simulation bundles the collaborators the engine draws from. The same
// instance can be shared with the event feed.
type Simulation struct {
	Geo       GeoSource
	State     *sim.State
	Scheduler *sim.Scheduler
	Stats     *sim.Stats
	Insights  *insights.Loader
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// NewSimulation wires a simulation from configuration. cache may be nil.
func NewSimulation(cfg *config.Config, cache *utils.BlobCache, m *metrics.Metrics) Simulation {
	geo := geodata.NewProvider(cfg.GeoURL,
		geodata.WithCache(cache, cfg.CacheTTL),
		geodata.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)

	var provider insights.Provider = insights.Canned
	if cfg.InsightsURL != "" {
		provider = insights.HTTP{URL: cfg.InsightsURL}
	}
	loader := insights.NewLoader(provider)

	seed := time.Now().UnixNano()
	state := sim.NewState()
	picker := sim.NewPicker(cfg.PopulousCountries, rand.New(rand.NewSource(seed)))
	scheduler := sim.NewScheduler(geo, state, picker, cfg.EventsPerSecond,
		sim.WithRand(rand.New(rand.NewSource(seed+1))))

	if m != nil {
		m.WatchGeo(geo)
		m.WatchScheduler(scheduler)
		loader.OnError(func(error) { m.InsightErrors.Inc() })
	}

	return Simulation{
		Geo:       geo,
		State:     state,
		Scheduler: scheduler,
		Stats:     sim.NewStats(cfg.EventsPerSecond, time.Now),
		Insights:  loader,
		Metrics:   m,
	}
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	theme, err := ThemeFromConfig(cfg.Theme)
	if err != nil {
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.Theme = theme
	opts.RotationSpeed = cfg.RotationSpeed
	opts.Tilt = cfg.Tilt
	opts.FlashDuration = cfg.FlashDuration
	return opts, nil
}
