// Package birthengine renders the rotating birth globe and its HUD with ebiten.
package birthengine

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sudorandom/birth-stream/pkg/config"
)

const (
	// FlashGlowRadius is the glow radius in pixels at the start of a flash.
	FlashGlowRadius = 40.0
	// ActiveStrokeWidth is the border width of a flashing country.
	ActiveStrokeWidth = 1.4
	// BorderWidth is the border width of an idle country.
	BorderWidth = 0.5
)

var (
	ColorBackground = color.RGBA{2, 6, 23, 255}     // slate-950
	ColorAura       = color.RGBA{139, 92, 246, 255} // violet
	ColorHigh       = color.RGBA{239, 68, 68, 255}  // red
	ColorModerate   = color.RGBA{96, 165, 250, 255} // blue
	ColorPanel      = color.RGBA{15, 23, 42, 170}
	ColorPanelEdge  = color.RGBA{49, 46, 129, 255}
	ColorMuted      = color.RGBA{148, 163, 184, 255}
)

// Theme is the globe palette.
type Theme struct {
	Land   color.RGBA
	Border color.RGBA
	Flash  color.RGBA
	Ocean  color.RGBA
}

func DefaultTheme() Theme {
	return Theme{
		Land:   color.RGBA{0x1e, 0x1b, 0x4b, 0xff},
		Border: color.RGBA{0x31, 0x2e, 0x81, 0xff},
		Flash:  color.RGBA{0xfb, 0xbf, 0x24, 0xff},
		Ocean:  color.RGBA{0x05, 0x01, 0x0a, 0xff},
	}
}

// ParseHexColor parses #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || !strings.HasPrefix(s, "#") {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}, nil
}

// ThemeFromConfig converts configured hex colours.
func ThemeFromConfig(t config.Theme) (Theme, error) {
	var errs []error
	parse := func(s string) color.RGBA {
		c, err := ParseHexColor(s)
		if err != nil {
			errs = append(errs, err)
		}
		return c
	}
	theme := Theme{
		Land:   parse(t.Land),
		Border: parse(t.Border),
		Flash:  parse(t.Flash),
		Ocean:  parse(t.Ocean),
	}
	return theme, errors.Join(errs...)
}

// Lerp interpolates each channel linearly and rounds to the nearest value.
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A)}
}

// Style is how one country is painted in a frame.
type Style struct {
	Active      bool
	T           float64
	Fill        color.RGBA
	Stroke      color.RGBA
	StrokeWidth float64
	Glow        float64
}

// FlashT is the decay factor of a flash recorded at flashAt. It is 1 at the
// trigger time, falls linearly and is 0 from duration onwards.
func FlashT(flashAt, now time.Time, duration time.Duration) (float64, bool) {
	elapsed := now.Sub(flashAt)
	if elapsed < 0 || elapsed >= duration || duration <= 0 {
		return 0, false
	}
	return 1 - float64(elapsed)/float64(duration), true
}

// StyleFor returns the style of a country whose last flash was at flashAt.
// ok is false for countries that never flashed.
func (th Theme) StyleFor(flashAt time.Time, ok bool, now time.Time, duration time.Duration) Style {
	if ok {
		if t, active := FlashT(flashAt, now, duration); active {
			return Style{
				Active:      true,
				T:           t,
				Fill:        Lerp(th.Land, th.Flash, t),
				Stroke:      th.Flash,
				StrokeWidth: ActiveStrokeWidth,
				Glow:        FlashGlowRadius * t,
			}
		}
	}
	return Style{
		Fill:        th.Land,
		Stroke:      th.Border,
		StrokeWidth: BorderWidth,
	}
}
