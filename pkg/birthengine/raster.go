package birthengine

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// canvas is a CPU raster target. Everything in a globe frame is drawn here
// and uploaded to the GPU once per frame.
type canvas struct {
	img  *image.RGBA
	w, h int
}

func newCanvas(w, h int) *canvas {
	return &canvas{img: image.NewRGBA(image.Rect(0, 0, w, h)), w: w, h: h}
}

func (c *canvas) clear(col color.RGBA) {
	pix := c.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = col.R, col.G, col.B, 255
	}
}

// blend composites col over the pixel at (x, y) with coverage alpha.
func (c *canvas) blend(x, y int, col color.RGBA, alpha float64) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h || alpha <= 0 {
		return
	}
	off := y*c.img.Stride + x*4
	p := c.img.Pix[off : off+4 : off+4]
	if alpha >= 1 {
		p[0], p[1], p[2], p[3] = col.R, col.G, col.B, 255
		return
	}
	mix := func(dst, src uint8) uint8 {
		return uint8(float64(dst) + (float64(src)-float64(dst))*alpha + 0.5)
	}
	p[0], p[1], p[2] = mix(p[0], col.R), mix(p[1], col.G), mix(p[2], col.B)
	p[3] = 255
}

// add brightens the pixel at (x, y) additively.
func (c *canvas) add(x, y int, col color.RGBA, alpha float64) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h || alpha <= 0 {
		return
	}
	off := y*c.img.Stride + x*4
	p := c.img.Pix[off : off+4 : off+4]
	sum := func(dst, src uint8) uint8 {
		return uint8(math.Min(255, float64(dst)+float64(src)*alpha))
	}
	p[0], p[1], p[2] = sum(p[0], col.R), sum(p[1], col.G), sum(p[2], col.B)
}

// fillPolygon fills rings with the even-odd rule, so holes stay open.
func (c *canvas) fillPolygon(rings [][]Point, col color.RGBA) {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, ring := range rings {
		for _, p := range ring {
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minY, 0) {
		return
	}

	var nodes []int
	for y := max(int(minY), 0); y <= min(int(maxY), c.h-1); y++ {
		nodes = nodes[:0]
		fy := float64(y) + 0.5
		for _, ring := range rings {
			for i := range ring {
				a, b := ring[i], ring[(i+1)%len(ring)]
				if (a.Y < fy && b.Y >= fy) || (b.Y < fy && a.Y >= fy) {
					nodeX := a.X + (fy-a.Y)/(b.Y-a.Y)*(b.X-a.X)
					nodes = append(nodes, int(math.Round(nodeX)))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i+1 < len(nodes); i += 2 {
			xs, xe := max(nodes[i], 0), min(nodes[i+1], c.w)
			off := y*c.img.Stride + xs*4
			for x := xs; x < xe; x++ {
				c.img.Pix[off], c.img.Pix[off+1], c.img.Pix[off+2], c.img.Pix[off+3] = col.R, col.G, col.B, 255
				off += 4
			}
		}
	}
}

// strokeRing outlines a closed ring. Widths below one pixel are drawn as a
// partially transparent hairline; wider strokes add a second offset line.
func (c *canvas) strokeRing(ring []Point, col color.RGBA, width float64) {
	for i := range ring {
		a, b := ring[i], ring[(i+1)%len(ring)]
		c.drawLine(int(a.X), int(a.Y), int(b.X), int(b.Y), col, math.Min(width, 1))
		if width > 1 {
			c.drawLine(int(a.X)+1, int(a.Y)+1, int(b.X)+1, int(b.Y)+1, col, width-1)
		}
	}
}

func (c *canvas) drawLine(x1, y1, x2, y2 int, col color.RGBA, alpha float64) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	// Segments entirely off the surface are skipped.
	if (x1 < 0 && x2 < 0) || (y1 < 0 && y2 < 0) || (x1 >= c.w && x2 >= c.w) || (y1 >= c.h && y2 >= c.h) {
		return
	}
	err := dx - dy
	for {
		c.blend(x1, y1, col, alpha)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *canvas) fillDisc(cx, cy, r float64, col color.RGBA) {
	c.radial(cx, cy, r, func(d float64) float64 {
		if d <= r {
			return 1
		}
		return 0
	}, col, false)
}

// glow adds a soft additive halo fading to nothing at radius r.
func (c *canvas) glow(cx, cy, r float64, col color.RGBA, strength float64) {
	if r <= 0 {
		return
	}
	c.radial(cx, cy, r, func(d float64) float64 {
		if d >= r {
			return 0
		}
		f := 1 - d/r
		return strength * f * f
	}, col, true)
}

// radial visits the pixels within reach of (cx, cy) and paints them with the
// coverage returned by alphaAt for their distance to the centre.
func (c *canvas) radial(cx, cy, reach float64, alphaAt func(d float64) float64, col color.RGBA, additive bool) {
	x0, x1 := max(int(cx-reach), 0), min(int(cx+reach)+1, c.w-1)
	y0, y1 := max(int(cy-reach), 0), min(int(cy+reach)+1, c.h-1)
	for y := y0; y <= y1; y++ {
		dy := float64(y) + 0.5 - cy
		for x := x0; x <= x1; x++ {
			dx := float64(x) + 0.5 - cx
			a := alphaAt(math.Sqrt(dx*dx + dy*dy))
			if additive {
				c.add(x, y, col, a)
			} else {
				c.blend(x, y, col, a)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
