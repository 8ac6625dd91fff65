package sources

const (
	// WorldGeoJSONURL is a FeatureCollection of country boundaries keyed by ISO alpha-3 feature ids.
	WorldGeoJSONURL = "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson"

	// NaturalEarthURL is a larger alternative that carries properties.ISO_A3 instead of ids.
	NaturalEarthURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
)
