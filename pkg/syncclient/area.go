package syncclient

import (
	"net/url"
	"strconv"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Area is the circular region a viewer watches. A zero RadiusKm means the
// whole map.
type Area struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// IsGlobal reports whether the area covers every location.
func (a Area) IsGlobal() bool { return a.RadiusKm <= 0 }

// contains reports whether (lat, lng) is within the area widened by slackKm.
func (a Area) contains(lat, lng, slackKm float64) bool {
	if a.IsGlobal() {
		return true
	}
	return api.DistanceKm(a.Lat, a.Lng, lat, lng) <= a.RadiusKm+slackKm
}

func (a Area) query(q url.Values) {
	if a.IsGlobal() {
		return
	}
	q.Set("lat", strconv.FormatFloat(a.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(a.Lng, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(a.RadiusKm, 'f', -1, 64))
}
