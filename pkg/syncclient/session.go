// Package syncclient keeps a local mirror of the pulse map in sync with a
// Safety Pulse server. An Agent prefers the WebSocket push feed, falls back
// to polling when push is unavailable, and applies both through one
// idempotent, version-keyed Mirror.
package syncclient

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every client-side network operation.
const DefaultTimeout = 15 * time.Second

// Session carries everything one sync session needs. Several sessions can
// run side by side in one process.
type Session struct {
	// BaseURL is the server root, e.g. "https://pulse.example.org".
	BaseURL string
	// DeviceHash identifies an anonymous client. Token, when set, wins.
	DeviceHash string
	Token      string

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
	Now        func() time.Time
}

func (s Session) withDefaults() Session {
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if s.Dialer == nil {
		s.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultTimeout,
		}
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

func (s Session) header() http.Header {
	h := http.Header{}
	if s.Token != "" {
		h.Set("Authorization", "Bearer "+s.Token)
	}
	if s.DeviceHash != "" {
		h.Set("X-Device-Hash", s.DeviceHash)
	}
	return h
}
