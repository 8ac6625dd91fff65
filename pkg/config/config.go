// Package config loads dashboard settings from defaults, an optional config
// file and BIRTHSTREAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/sudorandom/birth-stream/pkg/sources"
)

// Theme holds the globe palette as #rrggbb strings.
type Theme struct {
	Land   string `mapstructure:"land"`
	Border string `mapstructure:"border"`
	Flash  string `mapstructure:"flash"`
	Ocean  string `mapstructure:"ocean"`
}

type Config struct {
	EventsPerSecond   float64       `mapstructure:"eventsPerSecond"`
	RotationSpeed     float64       `mapstructure:"rotationSpeed"`
	Tilt              float64       `mapstructure:"tilt"`
	FlashDuration     time.Duration `mapstructure:"flashDuration"`
	PopulousCountries []string      `mapstructure:"populousCountries"`
	Theme             Theme         `mapstructure:"theme"`

	GeoURL   string        `mapstructure:"geoUrl"`
	CacheDir string        `mapstructure:"cacheDir"`
	CacheTTL time.Duration `mapstructure:"cacheTtl"`

	InsightsURL string `mapstructure:"insightsUrl"`
	FeedAddr    string `mapstructure:"feedAddr"`
	AudioDir    string `mapstructure:"audioDir"`
	LogLevel    string `mapstructure:"logLevel"`
}

// PopulousCountries biases event targets toward the most populous nations.
var PopulousCountries = []string{
	"IND", "CHN", "NGA", "PAK", "IDN", "BRA", "ETH", "BGD", "USA", "COD",
	"MEX", "PHL", "EGY", "VNM", "TUR", "IRN", "DEU", "THA", "GBR", "FRA",
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("eventsPerSecond", 4.35)
	v.SetDefault("rotationSpeed", 0.015)
	v.SetDefault("tilt", -12.0)
	v.SetDefault("flashDuration", 3500*time.Millisecond)
	v.SetDefault("populousCountries", append([]string(nil), PopulousCountries...))

	v.SetDefault("theme.land", "#1e1b4b")
	v.SetDefault("theme.border", "#312e81")
	v.SetDefault("theme.flash", "#fbbf24")
	v.SetDefault("theme.ocean", "#05010a")

	v.SetDefault("geoUrl", sources.WorldGeoJSONURL)
	v.SetDefault("cacheDir", "data/cache")
	v.SetDefault("cacheTtl", 7*24*time.Hour)

	v.SetDefault("insightsUrl", "")
	v.SetDefault("feedAddr", "")
	v.SetDefault("audioDir", "")
	v.SetDefault("logLevel", "info")
}

// Default returns the built-in settings.
func Default() Config {
	cfg, err := Load("")
	if err != nil {
		// defaults alone cannot fail validation
		panic(err)
	}
	return cfg
}

// Load reads the config file at path (any format viper understands, selected
// by extension) on top of the defaults. An empty path skips the file.
// Environment variables such as BIRTHSTREAM_EVENTSPERSECOND override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BIRTHSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	for i, id := range cfg.PopulousCountries {
		cfg.PopulousCountries[i] = strings.ToUpper(strings.TrimSpace(id))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.EventsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("eventsPerSecond must be positive, got %v", c.EventsPerSecond))
	}
	if c.FlashDuration <= 0 {
		errs = append(errs, fmt.Errorf("flashDuration must be positive, got %v", c.FlashDuration))
	}
	if c.GeoURL == "" {
		errs = append(errs, errors.New("geoUrl is required"))
	}
	for name, val := range map[string]string{
		"theme.land":   c.Theme.Land,
		"theme.border": c.Theme.Border,
		"theme.flash":  c.Theme.Flash,
		"theme.ocean":  c.Theme.Ocean,
	} {
		if !hexColor.MatchString(val) {
			errs = append(errs, fmt.Errorf("%s must be a #rrggbb colour, got %q", name, val))
		}
	}
	return errors.Join(errs...)
}
