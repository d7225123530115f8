package rest

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// parseArea reads lat, lng and radius. Without lat and lng the area is
// global unless required is set.
func parseArea(q url.Values, required bool) (domain.Area, error) {
	lat, err := optionalFloat(q, "lat")
	if err != nil {
		return domain.Area{}, err
	}
	lng, err := optionalFloat(q, "lng")
	if err != nil {
		return domain.Area{}, err
	}
	radius, err := optionalFloat(q, "radius")
	if err != nil {
		return domain.Area{}, err
	}
	if required && (lat == nil || lng == nil) {
		return domain.Area{}, domain.NewValidationError("location", "lat and lng are required")
	}
	return domain.NewArea(lat, lng, radius)
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, domain.NewValidationError(key, "must be a number")
	}
	return &v, nil
}

func optionalUint(q url.Values, key string) (*uint64, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, domain.NewValidationError(key, "must be a non-negative integer")
	}
	return &v, nil
}

func optionalTime(q url.Values, key string) (*time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, domain.NewValidationError(key, "must be an RFC 3339 timestamp")
	}
	return &v, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer")
	}
	return v, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("id", "must be a UUID")
	}
	return id, nil
}
