package birthengine

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

func testland() geodata.Country {
	return geodata.Country{
		ID:       "ABC",
		Name:     "Testland",
		Polygons: []geodata.Polygon{{box(0, 0, 10)}},
	}
}

func pixel(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestGlobeRendersTestlandFlash(t *testing.T) {
	th := DefaultTheme()
	g := NewGlobe(th, flash)
	proj := NewOrthographic(400, 400, 0, 0)
	cx, cy := int(proj.CX), int(proj.CY)
	countries := []geodata.Country{testland()}
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	flashes := sim.FlashRecord{"ABC": at}

	img := g.Render(proj, 400, 400, countries, flashes, at)
	assert.Equal(t, th.Flash, pixel(img, cx, cy), "T+0 is the flash colour")

	img = g.Render(proj, 400, 400, countries, flashes, at.Add(1750*time.Millisecond))
	assert.Equal(t, Lerp(th.Land, th.Flash, 0.5), pixel(img, cx, cy), "T+1750 is the midpoint")

	img = g.Render(proj, 400, 400, countries, flashes, at.Add(flash))
	assert.Equal(t, th.Land, pixel(img, cx, cy), "T+3500 is the land colour")

	img = g.Render(proj, 400, 400, countries, sim.FlashRecord{}, at)
	assert.Equal(t, th.Land, pixel(img, cx, cy), "never flashed")
}

func TestGlobeBackground(t *testing.T) {
	th := DefaultTheme()
	g := NewGlobe(th, flash)
	proj := NewOrthographic(400, 400, 0, 0)

	img := g.Render(proj, 400, 400, nil, nil, time.Now())
	assert.Equal(t, ColorBackground, pixel(img, 2, 2), "outside the aura")

	ocean := pixel(img, int(proj.CX), int(proj.CY)+100)
	assert.Equal(t, uint8(255), ocean.A)
	assert.NotEqual(t, ColorBackground, ocean)
	assert.InDelta(t, float64(th.Ocean.R)+float64(ColorAura.R-th.Ocean.R)*auraAlpha, float64(ocean.R), 1)
}

func TestGlobeBackgroundFollowsResize(t *testing.T) {
	g := NewGlobe(DefaultTheme(), flash)
	small := g.Render(NewOrthographic(200, 100, 0, 0), 200, 100, nil, nil, time.Now())
	assert.Equal(t, image.Rect(0, 0, 200, 100), small.Bounds())

	large := g.Render(NewOrthographic(640, 360, 0, 0), 640, 360, nil, nil, time.Now())
	assert.Equal(t, image.Rect(0, 0, 640, 360), large.Bounds())
}

func TestGlobeSkipsHiddenCountries(t *testing.T) {
	th := DefaultTheme()
	g := NewGlobe(th, flash)
	proj := NewOrthographic(400, 400, 0, 0)
	hidden := geodata.Country{ID: "FAR", Centroid: [2]float64{180, 0}, Polygons: []geodata.Polygon{{box(180, 0, 10)}}}

	img := g.Render(proj, 400, 400, []geodata.Country{hidden}, sim.FlashRecord{"FAR": time.Now()}, time.Now())
	assert.NotEqual(t, th.Land, pixel(img, int(proj.CX), int(proj.CY)))
}

func TestCountryAt(t *testing.T) {
	proj := NewOrthographic(400, 400, 0, 0)
	countries := []geodata.Country{testland()}

	c, ok := CountryAt(proj, Point{proj.CX, proj.CY}, countries)
	require.True(t, ok)
	assert.Equal(t, "ABC", c.ID)

	_, ok = CountryAt(proj, Point{proj.CX, proj.CY + proj.Radius*0.8}, countries)
	assert.False(t, ok, "ocean")

	_, ok = CountryAt(proj, Point{1, 1}, countries)
	assert.False(t, ok, "off the globe")
}

func TestPolygonContainsExcludesHoles(t *testing.T) {
	donut := geodata.Polygon{box(0, 0, 10), box(0, 0, 3)}
	assert.True(t, polygonContains(donut, 6, 6))
	assert.False(t, polygonContains(donut, 0, 0))
	assert.False(t, polygonContains(donut, 20, 0))
}
