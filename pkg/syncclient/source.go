package syncclient

import (
	"context"
	"errors"
)

// UpdateSource delivers server updates for one area. Stream blocks until ctx
// is done, in which case it returns nil, or until the transport fails.
//
// cursor reports the version to resume from and is read whenever the source
// needs to catch up. ready is called once the source is caught up and live.
type UpdateSource interface {
	Stream(ctx context.Context, area Area, cursor func() uint64, emit func(Update), ready func()) error
}

// ErrUnexpectedStatus is wrapped by errors for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")
