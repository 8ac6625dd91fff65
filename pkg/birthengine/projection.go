package birthengine

import (
	"math"
)

const (
	// GlobeScale is the globe radius relative to the smaller surface side.
	GlobeScale = 0.46
	// GlobeOffsetX places the globe centre at this fraction of the width.
	GlobeOffsetX = 0.76
	// limbSteps is the number of segments used for a full circle of limb arc.
	limbSteps = 128
)

type Point struct{ X, Y float64 }

// Orthographic is a rotated orthographic projection. Rotation and tilt follow
// the usual [lambda, phi] rotate convention: the view is centred on longitude
// -rotation and latitude -tilt.
type Orthographic struct {
	CX, CY, Radius float64

	lambda0          float64
	sinPhi0, cosPhi0 float64
}

// NewOrthographic sizes the projection for a w x h surface.
func NewOrthographic(w, h int, rotation, tilt float64) Orthographic {
	phi0 := -tilt * math.Pi / 180
	return Orthographic{
		CX:      float64(w) * GlobeOffsetX,
		CY:      float64(h) / 2,
		Radius:  math.Min(float64(w), float64(h)) * GlobeScale,
		lambda0: -rotation * math.Pi / 180,
		sinPhi0: math.Sin(phi0),
		cosPhi0: math.Cos(phi0),
	}
}

// view returns unit-sphere view coordinates; z >= 0 faces the viewer.
func (o Orthographic) view(lng, lat float64) (x, y, z float64) {
	phi := lat * math.Pi / 180
	dl := lng*math.Pi/180 - o.lambda0
	sinPhi, cosPhi := math.Sincos(phi)
	sinDl, cosDl := math.Sincos(dl)
	x = cosPhi * sinDl
	y = o.cosPhi0*sinPhi - o.sinPhi0*cosPhi*cosDl
	z = o.sinPhi0*sinPhi + o.cosPhi0*cosPhi*cosDl
	return x, y, z
}

func (o Orthographic) toScreen(x, y float64) Point {
	return Point{o.CX + o.Radius*x, o.CY - o.Radius*y}
}

// Project maps a lng/lat pair to the surface. visible is false on the far
// hemisphere.
func (o Orthographic) Project(lng, lat float64) (Point, bool) {
	x, y, z := o.view(lng, lat)
	return o.toScreen(x, y), z >= 0
}

// Invert maps a surface point back to lng/lat. ok is false off the disc.
func (o Orthographic) Invert(p Point) (lng, lat float64, ok bool) {
	x := (p.X - o.CX) / o.Radius
	y := (o.CY - p.Y) / o.Radius
	rho := math.Hypot(x, y)
	if rho > 1 {
		return 0, 0, false
	}
	phi0 := math.Atan2(o.sinPhi0, o.cosPhi0)
	if rho == 0 {
		return normalizeLng(o.lambda0 * 180 / math.Pi), phi0 * 180 / math.Pi, true
	}
	c := math.Asin(rho)
	sinC, cosC := math.Sincos(c)
	phi := math.Asin(cosC*o.sinPhi0 + y*sinC*o.cosPhi0/rho)
	lambda := o.lambda0 + math.Atan2(x*sinC, rho*o.cosPhi0*cosC-y*o.sinPhi0*sinC)
	return normalizeLng(lambda * 180 / math.Pi), phi * 180 / math.Pi, true
}

func normalizeLng(lng float64) float64 {
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// ProjectRing projects a closed lng/lat ring and clips it to the visible
// hemisphere. Hidden stretches are replaced by an arc along the limb so the
// result can still be filled. It returns nil when nothing is visible.
func (o Orthographic) ProjectRing(ring [][2]float64) []Point {
	n := len(ring)
	if n < 3 {
		return nil
	}
	type vp struct{ x, y, z float64 }
	pts := make([]vp, n)
	visible := 0
	for i, c := range ring {
		x, y, z := o.view(c[0], c[1])
		pts[i] = vp{x, y, z}
		if z >= 0 {
			visible++
		}
	}
	if visible == 0 {
		return nil
	}

	out := make([]Point, 0, n+8)
	if visible == n {
		for _, p := range pts {
			out = append(out, o.toScreen(p.x, p.y))
		}
		return out
	}

	// Start walking from a visible vertex so every exit has a matching entry.
	start := 0
	for pts[start].z < 0 {
		start++
	}
	exitAngle, exited := 0.0, false
	for k := 0; k < n; k++ {
		a := pts[(start+k)%n]
		b := pts[(start+k+1)%n]
		if a.z >= 0 {
			out = append(out, o.toScreen(a.x, a.y))
		}
		if (a.z >= 0) == (b.z >= 0) {
			continue
		}
		f := a.z / (a.z - b.z)
		lx, ly := a.x+(b.x-a.x)*f, a.y+(b.y-a.y)*f
		angle := math.Atan2(ly, lx)
		if a.z >= 0 {
			exitAngle, exited = angle, true
			out = append(out, o.toScreen(math.Cos(angle), math.Sin(angle)))
			continue
		}
		if exited {
			out = o.appendArc(out, exitAngle, angle)
			exited = false
		}
		out = append(out, o.toScreen(math.Cos(angle), math.Sin(angle)))
	}
	return out
}

// appendArc follows the limb along the shorter direction between two angles.
func (o Orthographic) appendArc(out []Point, from, to float64) []Point {
	d := math.Remainder(to-from, 2*math.Pi)
	steps := int(math.Ceil(math.Abs(d) / (2 * math.Pi) * limbSteps))
	for i := 1; i < steps; i++ {
		a := from + d*float64(i)/float64(steps)
		out = append(out, o.toScreen(math.Cos(a), math.Sin(a)))
	}
	return out
}
