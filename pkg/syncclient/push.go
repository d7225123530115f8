package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heartmarshall/safety-pulse/pkg/api"
)

// defaultHeartbeat is assumed when the server does not announce one.
const defaultHeartbeat = 30 * time.Second

// PushSource streams events from GET /api/v1/realtime/ws. After connecting
// it catches up through poll so no change between the cursor and the first
// pushed event is lost.
type PushSource struct {
	session Session
	catchUp *PollSource

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewPushSource creates a PushSource.
func NewPushSource(s Session) *PushSource {
	s = s.withDefaults()
	return &PushSource{session: s, catchUp: NewPollSource(s, 0)}
}

func (p *PushSource) wsURL(area Area) (string, error) {
	u, err := url.Parse(p.session.BaseURL + "/api/v1/realtime/ws")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := url.Values{}
	area.query(q)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stream connects, catches up and forwards pushed events until the
// connection drops or ctx is done.
func (p *PushSource) Stream(ctx context.Context, area Area, cursor func() uint64, emit func(Update), ready func()) error {
	log := p.session.Logger.With("source", "push")

	target, err := p.wsURL(area)
	if err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	conn, resp, err := p.session.Dialer.DialContext(dialCtx, target, p.session.header())
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial push: %w", err)
	}
	defer conn.Close()

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	})
	defer stop()

	heartbeat, err := p.handshake(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	deadline := 2 * heartbeat
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(DefaultTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	// Events pushed while catching up are buffered by the socket and
	// applied afterwards; the mirror discards anything already seen.
	caught, err := p.catchUp.Fetch(ctx, area, cursor())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("catch up: %w", err)
	}
	emit(pollUpdate(caught, p.session.Now()))
	ready()
	log.Debug("push active", slog.Uint64("version", caught.Version))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read push: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		var msg api.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn("malformed push message", slog.String("error", err.Error()))
			continue
		}
		u, ok, err := eventUpdate(msg, p.session.Now())
		if err != nil {
			log.Warn("malformed push payload", slog.String("type", msg.Type), slog.String("error", err.Error()))
			continue
		}
		if ok {
			emit(u)
		}
	}
}

// handshake waits for the connected message and returns the announced
// heartbeat interval.
func (p *PushSource) handshake(conn *websocket.Conn) (time.Duration, error) {
	_ = conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	var msg api.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return 0, fmt.Errorf("read connected: %w", err)
	}
	if msg.Type != api.MsgConnected {
		return 0, fmt.Errorf("expected %s, got %s", api.MsgConnected, msg.Type)
	}
	var data api.ConnectedData
	if err := msg.Decode(&data); err != nil {
		return 0, fmt.Errorf("decode connected: %w", err)
	}
	if data.Heartbeat <= 0 {
		return defaultHeartbeat, nil
	}
	return time.Duration(data.Heartbeat * float64(time.Second)), nil
}

// SendLocation asks the server for a location_alert at (lat, lng). It fails
// when no push connection is open.
func (p *PushSource) SendLocation(lat, lng float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("send location: %w", websocket.ErrCloseSent)
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	return p.conn.WriteJSON(api.ClientMessage{Type: api.MsgLocationUpdate, Latitude: &lat, Longitude: &lng})
}
