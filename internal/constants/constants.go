package constants

import "fmt"

// Location is the physical site an AWS region is hosted in.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Coordinates renders the location as "lat,long".
func (l Location) Coordinates() string {
	return fmt.Sprintf("%g,%g", l.Latitude, l.Longitude)
}

// Locations maps region codes to the city the region is hosted in.
var Locations = map[string]Location{
	"us-east-1":      {Name: "N. Virginia", Latitude: 38.13, Longitude: -78.45},
	"us-east-2":      {Name: "Ohio", Latitude: 39.96, Longitude: -83},
	"us-west-1":      {Name: "N. California", Latitude: 37.35, Longitude: -121.96},
	"us-west-2":      {Name: "Oregon", Latitude: 46.15, Longitude: -123.88},
	"ca-central-1":   {Name: "Canada", Latitude: 45.5, Longitude: -73.6},
	"sa-east-1":      {Name: "Sao Paulo", Latitude: -23.34, Longitude: -46.38},
	"eu-west-1":      {Name: "Ireland", Latitude: 53, Longitude: -8},
	"eu-west-2":      {Name: "London", Latitude: 51, Longitude: -0.1},
	"eu-west-3":      {Name: "Paris", Latitude: 48.86, Longitude: 2.35},
	"eu-central-1":   {Name: "Frankfurt", Latitude: 50, Longitude: 8},
	"eu-north-1":     {Name: "Stockholm", Latitude: 59.25, Longitude: 17.81},
	"eu-south-1":     {Name: "Milan", Latitude: 45.43, Longitude: 9.29},
	"ap-northeast-1": {Name: "Tokyo", Latitude: 35.41, Longitude: 139.42},
	"ap-northeast-2": {Name: "Seoul", Latitude: 37.56, Longitude: 126.98},
	"ap-northeast-3": {Name: "Osaka", Latitude: 34.69, Longitude: 135.49},
	"ap-southeast-1": {Name: "Singapore", Latitude: 1.37, Longitude: 103.8},
	"ap-southeast-2": {Name: "Sydney", Latitude: -33.86, Longitude: 151.2},
	"ap-south-1":     {Name: "Mumbai", Latitude: 19.08, Longitude: 72.88},
	"ap-east-1":      {Name: "Hong Kong", Latitude: 22.27, Longitude: 114.16},
	"me-south-1":     {Name: "Bahrain", Latitude: 26.1, Longitude: 50.46},
	"af-south-1":     {Name: "Cape Town", Latitude: -33.93, Longitude: 18.42},
}

// LookupLocation returns the location of region.
func LookupLocation(region string) (Location, bool) {
	loc, ok := Locations[region]
	return loc, ok
}
