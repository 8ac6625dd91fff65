// Package geodata loads world country boundaries once per process and shares
// them between the simulation, the renderer and the event feed.
package geodata

import (
	"fmt"
	"strings"

	"github.com/biter777/countries"
	geojson "github.com/paulmach/go.geojson"
)

// FallbackName is shown for features that carry no usable name.
const FallbackName = "UN Region"

// Polygon is a list of rings of [lng, lat] pairs. The first ring is the outer
// boundary, the rest are holes.
type Polygon [][][2]float64

type Country struct {
	ID string
	// ISO is the feature id or properties.ISO_A3, empty when ID fell back
	// to the name.
	ISO      string
	Name     string
	Polygons []Polygon
	// Centroid is the vertex mean of the largest outer ring, as [lng, lat].
	Centroid [2]float64
}

// Parse decodes a GeoJSON FeatureCollection. Features without polygon
// geometry or without any identifier are skipped.
func Parse(data []byte) ([]Country, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	out := make([]Country, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		id := FeatureID(f)
		if id == "" {
			continue
		}

		var polys []Polygon
		if f.Geometry.IsPolygon() {
			polys = append(polys, toPolygon(f.Geometry.Polygon))
		} else if f.Geometry.IsMultiPolygon() {
			for _, p := range f.Geometry.MultiPolygon {
				polys = append(polys, toPolygon(p))
			}
		}
		if len(polys) == 0 {
			continue
		}

		out = append(out, Country{
			ID:       id,
			ISO:      ISOCode(f),
			Name:     DisplayName(f, id),
			Polygons: polys,
			Centroid: centroid(polys),
		})
	}
	return out, nil
}

// FeatureID returns the first non-empty of the feature id,
// properties.ISO_A3 and properties.name.
func FeatureID(f *geojson.Feature) string {
	if id := ISOCode(f); id != "" {
		return id
	}
	return stringProp(f, "name")
}

// ISOCode returns the feature id or properties.ISO_A3, ignoring the -99
// placeholder.
func ISOCode(f *geojson.Feature) string {
	if f.ID != nil {
		if id := strings.TrimSpace(fmt.Sprint(f.ID)); id != "" {
			return id
		}
	}
	if id := stringProp(f, "ISO_A3"); id != "" && id != "-99" {
		return id
	}
	return ""
}

// DisplayName prefers properties.name, then the ISO-3166 name for id.
func DisplayName(f *geojson.Feature, id string) string {
	if name := stringProp(f, "name"); name != "" {
		return name
	}
	if name := CountryName(id); name != "" {
		return name
	}
	return FallbackName
}

// CountryName resolves an ISO code or name to a short English country name,
// or "" when unknown.
func CountryName(code string) string {
	name := countries.ByName(code).String()
	if name == "Unknown" || name == "" {
		return ""
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}

func stringProp(f *geojson.Feature, key string) string {
	if f.Properties == nil {
		return ""
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func toPolygon(rings [][][]float64) Polygon {
	p := make(Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make([][2]float64, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			r = append(r, [2]float64{pt[0], pt[1]})
		}
		if len(r) > 0 {
			p = append(p, r)
		}
	}
	return p
}

func centroid(polys []Polygon) [2]float64 {
	var best [][2]float64
	for _, p := range polys {
		if len(p) > 0 && len(p[0]) > len(best) {
			best = p[0]
		}
	}
	if len(best) == 0 {
		return [2]float64{}
	}
	var sx, sy float64
	for _, pt := range best {
		sx += pt[0]
		sy += pt[1]
	}
	n := float64(len(best))
	return [2]float64{sx / n, sy / n}
}
