package pulse

import (
	"github.com/mmcloughlin/geohash"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// TileKey returns the geohash cell of loc at the configured precision.
func (a *Aggregator) TileKey(loc domain.Location) string {
	return geohash.EncodeWithPrecision(loc.Lat, loc.Lng, a.cfg.Precision)
}

// Centroid returns the centre of a tile.
func (a *Aggregator) Centroid(tileKey string) domain.Location {
	lat, lng := geohash.DecodeCenter(tileKey)
	return domain.Location{Lat: lat, Lng: lng}
}

// InArea reports whether a tile overlaps area. The tile is treated as a disc
// of the configured radius around its centroid.
func (a *Aggregator) InArea(tileKey string, area domain.Area) bool {
	if area.IsGlobal() {
		return true
	}
	widened := domain.Area{Center: area.Center, RadiusKm: area.RadiusKm + a.cfg.RadiusMeters/1000}
	return widened.Contains(a.Centroid(tileKey))
}

// TileRadiusKm is the disc radius used for tile overlap checks.
func (a *Aggregator) TileRadiusKm() float64 {
	return a.cfg.RadiusMeters / 1000
}
