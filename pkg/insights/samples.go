package insights

import "strings"

// SampleCountry is a static demographic record shown in the sidebar table.
type SampleCountry struct {
	Name        string
	ISO         string
	BirthRate   float64 // per 1,000 people
	TotalBirths int64
	Lat, Lng    float64
	Region      string
	Color       string
}

var Regions = []string{"Africa", "Asia", "Europe", "Americas", "Oceania"}

var SampleCountries = []SampleCountry{
	{Name: "Nigeria", ISO: "NGA", BirthRate: 36.5, TotalBirths: 7_800_000, Lat: 9.082, Lng: 8.675, Region: "Africa", Color: "#f87171"},
	{Name: "India", ISO: "IND", BirthRate: 16.7, TotalBirths: 23_000_000, Lat: 20.5937, Lng: 78.9629, Region: "Asia", Color: "#fb923c"},
	{Name: "USA", ISO: "USA", BirthRate: 11.0, TotalBirths: 3_600_000, Lat: 37.0902, Lng: -95.7129, Region: "Americas", Color: "#60a5fa"},
	{Name: "China", ISO: "CHN", BirthRate: 6.7, TotalBirths: 9_500_000, Lat: 35.8617, Lng: 104.1954, Region: "Asia", Color: "#fbbf24"},
	{Name: "Brazil", ISO: "BRA", BirthRate: 12.4, TotalBirths: 2_600_000, Lat: -14.235, Lng: -51.9253, Region: "Americas", Color: "#4ade80"},
	{Name: "Germany", ISO: "DEU", BirthRate: 9.3, TotalBirths: 790_000, Lat: 51.1657, Lng: 10.4515, Region: "Europe", Color: "#a78bfa"},
	{Name: "Japan", ISO: "JPN", BirthRate: 6.6, TotalBirths: 800_000, Lat: 36.2048, Lng: 138.2529, Region: "Asia", Color: "#f472b6"},
	{Name: "Congo", ISO: "COD", BirthRate: 42.0, TotalBirths: 3_800_000, Lat: -4.0383, Lng: 21.7587, Region: "Africa", Color: "#f87171"},
	{Name: "Indonesia", ISO: "IDN", BirthRate: 17.5, TotalBirths: 4_800_000, Lat: -0.7893, Lng: 113.9213, Region: "Asia", Color: "#fb923c"},
	{Name: "Pakistan", ISO: "PAK", BirthRate: 27.0, TotalBirths: 6_000_000, Lat: 30.3753, Lng: 69.3451, Region: "Asia", Color: "#fb923c"},
}

// SampleByISO looks up a sample record by ISO3 code.
func SampleByISO(iso string) (SampleCountry, bool) {
	for _, c := range SampleCountries {
		if strings.EqualFold(c.ISO, iso) {
			return c, true
		}
	}
	return SampleCountry{}, false
}

// HighActivity reports whether a sample birth rate counts as high activity
// in the legend.
func (c SampleCountry) HighActivity() bool {
	return c.BirthRate >= 20
}
