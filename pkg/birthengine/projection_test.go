package birthengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrthographicLayout(t *testing.T) {
	o := NewOrthographic(1000, 800, 0, 0)
	assert.Equal(t, 760.0, o.CX)
	assert.Equal(t, 400.0, o.CY)
	assert.InDelta(t, 368.0, o.Radius, 1e-9)

	p, visible := o.Project(0, 0)
	require.True(t, visible)
	assert.InDelta(t, o.CX, p.X, 1e-9)
	assert.InDelta(t, o.CY, p.Y, 1e-9)

	p, visible = o.Project(0, 90)
	require.True(t, visible)
	assert.InDelta(t, o.CY-o.Radius, p.Y, 1e-9, "north pole on the upper limb")
}

func TestOrthographicRotationAndTilt(t *testing.T) {
	o := NewOrthographic(1000, 800, 90, -12)
	p, visible := o.Project(-90, 12)
	require.True(t, visible)
	assert.InDelta(t, o.CX, p.X, 1e-9)
	assert.InDelta(t, o.CY, p.Y, 1e-9)

	_, visible = o.Project(90, -12)
	assert.False(t, visible, "antipode is hidden")
}

func TestOrthographicInvertRoundTrip(t *testing.T) {
	o := NewOrthographic(1920, 1080, 37.5, -12)
	for _, ll := range [][2]float64{{-37.5, 12}, {-10, 40}, {-80, -20}, {20, 60}, {-37.5, -60}} {
		p, visible := o.Project(ll[0], ll[1])
		require.True(t, visible, "%v", ll)
		lng, lat, ok := o.Invert(p)
		require.True(t, ok)
		assert.InDelta(t, ll[0], lng, 1e-6, "lng of %v", ll)
		assert.InDelta(t, ll[1], lat, 1e-6, "lat of %v", ll)
	}

	_, _, ok := o.Invert(Point{0, 0})
	assert.False(t, ok, "outside the disc")
}

func TestNormalizeLng(t *testing.T) {
	assert.InDelta(t, -170.0, normalizeLng(190), 1e-9)
	assert.InDelta(t, 170.0, normalizeLng(-190), 1e-9)
	assert.InDelta(t, 45.0, normalizeLng(45), 1e-9)
}

func box(lng, lat, half float64) [][2]float64 {
	return [][2]float64{
		{lng - half, lat - half}, {lng + half, lat - half},
		{lng + half, lat + half}, {lng - half, lat + half},
		{lng - half, lat - half},
	}
}

func TestProjectRingClipping(t *testing.T) {
	o := NewOrthographic(1000, 1000, 0, 0)

	front := o.ProjectRing(box(0, 0, 10))
	assert.Len(t, front, 5)

	assert.Nil(t, o.ProjectRing(box(180, 0, 10)), "fully hidden")

	straddle := o.ProjectRing(box(90, 0, 20))
	require.NotEmpty(t, straddle)
	for _, p := range straddle {
		d := math.Hypot(p.X-o.CX, p.Y-o.CY)
		assert.LessOrEqual(t, d, o.Radius+1e-6, "clipped points stay on the disc")
	}
	var onLimb int
	for _, p := range straddle {
		if math.Abs(math.Hypot(p.X-o.CX, p.Y-o.CY)-o.Radius) < 1e-6 {
			onLimb++
		}
	}
	assert.GreaterOrEqual(t, onLimb, 2, "hidden part is closed along the limb")
}
