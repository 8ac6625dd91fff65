package birthengine

import (
	"image"
	"time"

	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

const (
	auraInner = 0.98
	auraOuter = 1.3
	auraAlpha = 0.1
	glowAlpha = 0.6
)

// Globe rasterizes frames of the rotating globe. It is not safe for
// concurrent use; the engine only renders from Draw.
type Globe struct {
	Theme         Theme
	FlashDuration time.Duration

	base       *canvas
	baseW      int
	baseH      int
	frame      *canvas
	projected  [][]Point
	activeList []int
}

func NewGlobe(theme Theme, flashDuration time.Duration) *Globe {
	return &Globe{Theme: theme, FlashDuration: flashDuration}
}

// background returns the ocean disc and aura for the current size. It does
// not depend on rotation, so it is only rebuilt when the surface resizes.
func (g *Globe) background(proj Orthographic, w, h int) *canvas {
	if g.base != nil && g.baseW == w && g.baseH == h {
		return g.base
	}
	c := newCanvas(w, h)
	c.clear(ColorBackground)
	c.fillDisc(proj.CX, proj.CY, proj.Radius, g.Theme.Ocean)

	inner, outer := proj.Radius*auraInner, proj.Radius*auraOuter
	c.radial(proj.CX, proj.CY, outer, func(d float64) float64 {
		switch {
		case d <= inner:
			return auraAlpha
		case d >= outer:
			return 0
		}
		return auraAlpha * (outer - d) / (outer - inner)
	}, ColorAura, false)

	g.base, g.baseW, g.baseH = c, w, h
	g.frame = newCanvas(w, h)
	return c
}

// Render draws one frame: background, then every country filled and
// stroked by its flash style. Flashing countries are painted after idle ones
// so their glow and border stay on top.
func (g *Globe) Render(proj Orthographic, w, h int, countries []geodata.Country, flashes sim.FlashRecord, now time.Time) *image.RGBA {
	base := g.background(proj, w, h)
	copy(g.frame.img.Pix, base.img.Pix)

	g.activeList = g.activeList[:0]
	for i := range countries {
		c := &countries[i]
		at, ok := flashes[c.ID]
		st := g.Theme.StyleFor(at, ok, now, g.FlashDuration)
		if st.Active {
			g.activeList = append(g.activeList, i)
			continue
		}
		g.drawCountry(proj, c, st)
	}
	for _, i := range g.activeList {
		c := &countries[i]
		at := flashes[c.ID]
		g.drawCountry(proj, c, g.Theme.StyleFor(at, true, now, g.FlashDuration))
	}
	return g.frame.img
}

func (g *Globe) drawCountry(proj Orthographic, c *geodata.Country, st Style) {
	if st.Glow > 0 {
		if p, visible := proj.Project(c.Centroid[0], c.Centroid[1]); visible {
			g.frame.glow(p.X, p.Y, st.Glow, g.Theme.Flash, glowAlpha*st.T)
		}
	}
	for _, poly := range c.Polygons {
		g.projected = g.projected[:0]
		for _, ring := range poly {
			if pts := proj.ProjectRing(ring); len(pts) > 2 {
				g.projected = append(g.projected, pts)
			}
		}
		if len(g.projected) == 0 {
			continue
		}
		g.frame.fillPolygon(g.projected, st.Fill)
		for _, ring := range g.projected {
			g.frame.strokeRing(ring, st.Stroke, st.StrokeWidth)
		}
	}
}

// CountryAt resolves the country under a surface point, if any.
func CountryAt(proj Orthographic, p Point, countries []geodata.Country) (geodata.Country, bool) {
	lng, lat, ok := proj.Invert(p)
	if !ok {
		return geodata.Country{}, false
	}
	for _, c := range countries {
		for _, poly := range c.Polygons {
			if polygonContains(poly, lng, lat) {
				return c, true
			}
		}
	}
	return geodata.Country{}, false
}

// polygonContains is an even-odd test over all rings, so holes are excluded.
func polygonContains(poly geodata.Polygon, lng, lat float64) bool {
	inside := false
	for _, ring := range poly {
		for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
			a, b := ring[i], ring[j]
			if (a[1] > lat) != (b[1] > lat) &&
				lng < (b[0]-a[0])*(lat-a[1])/(b[1]-a[1])+a[0] {
				inside = !inside
			}
		}
	}
	return inside
}
