package birthengine

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sudorandom/birth-stream/pkg/config"
)

const flash = 3500 * time.Millisecond

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#fbbf24")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0xfb, 0xbf, 0x24, 0xff}, c)

	for _, bad := range []string{"", "fbbf24", "#fbbf2", "#gggggg", "#fbbf2400"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestThemeFromConfigMatchesDefault(t *testing.T) {
	theme, err := ThemeFromConfig(config.Default().Theme)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme(), theme)

	_, err = ThemeFromConfig(config.Theme{Land: "#000000", Border: "nope", Flash: "#ffffff", Ocean: "#zzzzzz"})
	assert.ErrorContains(t, err, `"nope"`)
	assert.ErrorContains(t, err, `"#zzzzzz"`)
}

func TestLerp(t *testing.T) {
	a := color.RGBA{0, 100, 200, 255}
	b := color.RGBA{255, 0, 100, 255}
	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, color.RGBA{128, 50, 150, 255}, Lerp(a, b, 0.5))
	assert.Equal(t, b, Lerp(a, b, 7), "clamped")
}

func TestFlashTDecaysLinearly(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	prev := 2.0
	for e := time.Duration(0); e < flash; e += 50 * time.Millisecond {
		v, active := FlashT(at, at.Add(e), flash)
		require.True(t, active)
		assert.Less(t, v, prev, "strictly decreasing")
		assert.Greater(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}

	v, _ := FlashT(at, at, flash)
	assert.Equal(t, 1.0, v)

	_, active := FlashT(at, at.Add(-time.Millisecond), flash)
	assert.False(t, active, "future flashes are inactive")
}

func TestTestlandFlashScenario(t *testing.T) {
	th := DefaultTheme()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	start := th.StyleFor(at, true, at, flash)
	assert.True(t, start.Active)
	assert.Equal(t, th.Flash, start.Fill)
	assert.Equal(t, th.Flash, start.Stroke)
	assert.Equal(t, ActiveStrokeWidth, start.StrokeWidth)
	assert.Equal(t, FlashGlowRadius, start.Glow)

	mid := th.StyleFor(at, true, at.Add(1750*time.Millisecond), flash)
	assert.Equal(t, Lerp(th.Land, th.Flash, 0.5), mid.Fill)
	assert.Equal(t, color.RGBA{0x8d, 0x6d, 0x38, 0xff}, mid.Fill)
	assert.InDelta(t, FlashGlowRadius/2, mid.Glow, 1e-9)

	end := th.StyleFor(at, true, at.Add(flash), flash)
	assert.False(t, end.Active)
	assert.Equal(t, th.Land, end.Fill)
	assert.Equal(t, th.Border, end.Stroke)
	assert.Equal(t, BorderWidth, end.StrokeWidth)
	assert.Zero(t, end.Glow)
}

func TestStaleFlashesRenderAsBase(t *testing.T) {
	th := DefaultTheme()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	idle := th.StyleFor(time.Time{}, false, at, flash)

	for _, age := range []time.Duration{flash, flash + time.Millisecond, time.Hour, 400 * 24 * time.Hour} {
		assert.Equal(t, idle, th.StyleFor(at, true, at.Add(age), flash), age.String())
	}
}
