package api

import "math"

// EarthRadiusKm is the mean Earth radius used for distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two WGS84
// coordinates.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := rlat2 - rlat1
	dLng := (lng2 - lng1) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
