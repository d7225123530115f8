package abuse

import (
	"math"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

const metersPerDegree = 111_320.0

// Blur moves loc to a uniformly random point within BlurMeters.
func (g *Guard) Blur(loc domain.Location) domain.Location {
	if g.cfg.BlurMeters <= 0 {
		return loc
	}
	d := g.cfg.BlurMeters * math.Sqrt(g.rand())
	theta := 2 * math.Pi * g.rand()

	lat := loc.Lat + d*math.Cos(theta)/metersPerDegree
	lng := loc.Lng
	if cos := math.Cos(loc.Lat * math.Pi / 180); cos > 1e-6 {
		lng += d * math.Sin(theta) / (metersPerDegree * cos)
	}

	lat = math.Max(-90, math.Min(90, lat))
	switch {
	case lng > 180:
		lng -= 360
	case lng < -180:
		lng += 360
	}
	return domain.Location{Lat: lat, Lng: lng}
}
