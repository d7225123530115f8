package report

import (
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

const (
	maxContextEntries = 20
	maxContextValue   = 500
	maxDeleteReason   = 500
	maxRadiusKm       = 100
	defaultListLimit  = 500
)

// SubmitInput holds the parameters for reporting a signal.
type SubmitInput struct {
	Type     domain.SignalType
	Severity int
	Location domain.Location
	Context  map[string]string
}

// Validate checks all fields and collects all errors.
func (i *SubmitInput) Validate() error {
	var errs []domain.FieldError

	if !i.Type.IsValid() {
		errs = append(errs, domain.FieldError{Field: "signal_type", Message: "unknown signal type"})
	}
	if i.Severity < 1 || i.Severity > 5 {
		errs = append(errs, domain.FieldError{Field: "severity", Message: "must be between 1 and 5"})
	}
	if !i.Location.IsValid() {
		errs = append(errs, domain.FieldError{Field: "location", Message: "invalid coordinates"})
	}
	if len(i.Context) > maxContextEntries {
		errs = append(errs, domain.FieldError{Field: "context", Message: "too many entries (max 20)"})
	}
	for k, v := range i.Context {
		if len(v) > maxContextValue {
			errs = append(errs, domain.FieldError{Field: "context." + k, Message: "too long (max 500)"})
		}
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// DeleteInput holds the parameters for an owner deletion.
type DeleteInput struct {
	Reason *string
}

// Validate checks all fields and collects all errors.
func (i *DeleteInput) Validate() error {
	if i.Reason != nil && len(*i.Reason) > maxDeleteReason {
		return domain.NewValidationError("reason", "too long (max 500)")
	}
	return nil
}

// TimeWindow is a listing period accepted by ListReports.
type TimeWindow string

const (
	TimeWindowHour TimeWindow = "1h"
	TimeWindowDay  TimeWindow = "24h"
	TimeWindowWeek TimeWindow = "7d"
)

// Duration returns the length of the window.
func (w TimeWindow) Duration() (time.Duration, bool) {
	switch w {
	case TimeWindowHour:
		return time.Hour, true
	case TimeWindowDay, "":
		return 24 * time.Hour, true
	case TimeWindowWeek:
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// ListInput holds the parameters for listing signals around a point.
type ListInput struct {
	Area       domain.Area
	TimeWindow TimeWindow
	Limit      int
}

// Validate checks all fields and collects all errors.
func (i *ListInput) Validate() error {
	var errs []domain.FieldError

	if !i.Area.Center.IsValid() {
		errs = append(errs, domain.FieldError{Field: "location", Message: "invalid coordinates"})
	}
	if i.Area.RadiusKm <= 0 || i.Area.RadiusKm > maxRadiusKm {
		errs = append(errs, domain.FieldError{Field: "radius", Message: "must be in (0, 100] km"})
	}
	if _, ok := i.TimeWindow.Duration(); !ok {
		errs = append(errs, domain.FieldError{Field: "time_window", Message: "must be one of 1h, 24h, 7d"})
	}
	if i.Limit < 0 {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
