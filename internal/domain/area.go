package domain

import (
	"math"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64
	Lng float64
}

// IsValid reports whether the coordinates are within WGS84 bounds.
func (l Location) IsValid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Area is a circular region. A zero radius means the whole map.
type Area struct {
	Center   Location
	RadiusKm float64
}

// IsGlobal reports whether the area matches every location.
func (a Area) IsGlobal() bool {
	return a.RadiusKm <= 0
}

// Contains reports whether loc falls inside the area.
func (a Area) Contains(loc Location) bool {
	if a.IsGlobal() {
		return true
	}
	return DistanceKm(a.Center, loc) <= a.RadiusKm
}

// Bounds returns a bounding box enclosing the area, used to pre-filter
// storage queries before the exact distance check.
func (a Area) Bounds() (minLat, maxLat, minLng, maxLng float64) {
	if a.IsGlobal() {
		return -90, 90, -180, 180
	}
	dLat := a.RadiusKm / 111.32
	cos := math.Cos(a.Center.Lat * math.Pi / 180)
	dLng := 180.0
	if cos > 1e-6 {
		dLng = math.Min(180, a.RadiusKm/(111.32*cos))
	}
	return math.Max(-90, a.Center.Lat-dLat), math.Min(90, a.Center.Lat+dLat),
		math.Max(-180, a.Center.Lng-dLng), math.Min(180, a.Center.Lng+dLng)
}

// DistanceKm returns the great-circle distance between two locations.
func DistanceKm(a, b Location) float64 {
	return api.DistanceKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Area radius limits for viewer queries, in kilometres.
const (
	DefaultAreaRadiusKm = 10.0
	MaxAreaRadiusKm     = 100.0
)

// NewArea builds a viewer area from optional query values. Without a centre
// the area is global. A missing radius defaults to DefaultAreaRadiusKm.
func NewArea(lat, lng, radiusKm *float64) (Area, error) {
	if lat == nil && lng == nil {
		return Area{}, nil
	}
	var errs []FieldError
	if lat == nil || lng == nil {
		errs = append(errs, FieldError{Field: "location", Message: "latitude and longitude must be given together"})
		return Area{}, NewValidationErrors(errs)
	}
	loc := Location{Lat: *lat, Lng: *lng}
	if !loc.IsValid() {
		errs = append(errs, FieldError{Field: "location", Message: "coordinates out of range"})
	}
	radius := DefaultAreaRadiusKm
	if radiusKm != nil {
		radius = *radiusKm
		if math.IsNaN(radius) || radius <= 0 || radius > MaxAreaRadiusKm {
			errs = append(errs, FieldError{Field: "radius", Message: "must be in (0, 100] km"})
		}
	}
	if len(errs) > 0 {
		return Area{}, NewValidationErrors(errs)
	}
	return Area{Center: loc, RadiusKm: radius}, nil
}
