package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heartmarshall/safety-pulse/internal/config"
	"github.com/heartmarshall/safety-pulse/internal/domain"
	"github.com/heartmarshall/safety-pulse/internal/realtime"
	"github.com/heartmarshall/safety-pulse/internal/wire"
	"github.com/heartmarshall/safety-pulse/pkg/api"
	"github.com/heartmarshall/safety-pulse/pkg/ctxutil"
)

type hub interface {
	Subscribe(sub realtime.Subscriber, area domain.Area, topics []api.Topic)
	Unsubscribe(id string)
	UpdateSubscriptionArea(id string, area domain.Area) error
	UpdateTopics(id string, add, remove []api.Topic) ([]api.Topic, error)
	Subscription(id string) ([]api.Topic, domain.Area, bool)
	Send(id string, ev realtime.Event) bool
}

type alertEvaluator interface {
	Evaluate(ctx context.Context, loc domain.Location) (domain.LocationAlert, error)
}

type identityResolver interface {
	FromToken(ctx context.Context, token string) (ctxutil.Identity, error)
	FromDevice(hash string) (ctxutil.Identity, error)
}

type versioner interface {
	Version() uint64
}

// Handler upgrades requests to WebSocket connections and runs the control
// protocol: auth, subscribe, unsubscribe, location_update and ping.
type Handler struct {
	hub      hub
	alerts   alertEvaluator
	resolver identityResolver
	versions versioner
	metrics  *realtime.Metrics
	cfg      config.RealtimeConfig
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewHandler creates a WebSocket handler.
func NewHandler(
	h hub,
	alerts alertEvaluator,
	resolver identityResolver,
	versions versioner,
	metrics *realtime.Metrics,
	cfg config.RealtimeConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		hub:      h,
		alerts:   alerts,
		resolver: resolver,
		versions: versions,
		metrics:  metrics,
		cfg:      cfg,
		log:      logger.With("handler", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// ServeHTTP handles GET /api/v1/realtime/ws. Optional query parameters
// lat, lng, radius and topics set the initial subscription.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	area, topics, err := parseSubscription(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(uuid.NewString(), conn, h.cfg.SendQueue, h.cfg.WriteTimeout, h.cfg.HeartbeatInterval)
	if id, ok := ctxutil.IdentityFromCtx(r.Context()); ok {
		c.setIdentity(id)
	}
	h.hub.Subscribe(c, area, topics)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	subscribed, _, _ := h.hub.Subscription(c.id)
	h.reply(c, api.MsgConnected, api.ConnectedData{
		ConnectionID: c.id,
		Topics:       subscribed,
		Version:      h.versions.Version(),
		Heartbeat:    h.cfg.HeartbeatInterval.Seconds(),
		ServerTime:   h.now().UTC(),
	})
	h.log.Debug("client connected", slog.String("connection_id", c.id))

	h.readPump(r.Context(), c)

	h.hub.Unsubscribe(c.id)
	<-writerDone
	h.log.Debug("client disconnected", slog.String("connection_id", c.id))
}

// readPump reads control messages until the peer goes away or misses
// heartbeats for two intervals.
func (h *Handler) readPump(ctx context.Context, c *Client) {
	deadline := 2 * h.cfg.HeartbeatInterval
	c.conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				h.metrics.DroppedHeartbeat()
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(deadline))

		var msg api.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.replyError(c, "invalid message")
			continue
		}
		h.handleMessage(ctx, c, msg)

		select {
		case <-c.Done():
			return
		default:
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg api.ClientMessage) {
	switch msg.Type {
	case api.MsgAuth:
		h.handleAuth(ctx, c, msg)
	case api.MsgSubscribe:
		h.handleTopics(c, msg, true)
	case api.MsgUnsubscribe:
		h.handleTopics(c, msg, false)
	case api.MsgLocationUpdate:
		h.handleLocation(ctx, c, msg)
	case api.MsgPing:
		h.reply(c, api.MsgPong, api.PongData{ServerTime: h.now().UTC(), Version: h.versions.Version()})
	default:
		h.replyError(c, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) handleAuth(ctx context.Context, c *Client, msg api.ClientMessage) {
	var (
		id  ctxutil.Identity
		err error
	)
	switch {
	case msg.Token != "":
		id, err = h.resolver.FromToken(ctx, msg.Token)
	case msg.DeviceHash != "":
		id, err = h.resolver.FromDevice(msg.DeviceHash)
	default:
		h.replyError(c, "token or device_hash required")
		return
	}
	if err != nil {
		h.replyError(c, "authentication failed")
		return
	}
	c.setIdentity(id)
	h.reply(c, api.MsgAuthOK, api.AuthOKData{Authenticated: id.Authenticated})
}

func (h *Handler) handleTopics(c *Client, msg api.ClientMessage, add bool) {
	var err error
	if add {
		_, err = h.hub.UpdateTopics(c.id, msg.Topics, nil)
	} else {
		_, err = h.hub.UpdateTopics(c.id, nil, msg.Topics)
	}
	if err != nil {
		h.replyError(c, err.Error())
		return
	}

	if add && (msg.Latitude != nil || msg.Longitude != nil) {
		area, err := domain.NewArea(msg.Latitude, msg.Longitude, msg.RadiusKm)
		if err != nil {
			h.replyError(c, err.Error())
			return
		}
		if err := h.hub.UpdateSubscriptionArea(c.id, area); err != nil {
			return
		}
	}
	h.replySubscribed(c)
}

func (h *Handler) handleLocation(ctx context.Context, c *Client, msg api.ClientMessage) {
	radius := msg.RadiusKm
	if radius == nil {
		if _, current, ok := h.hub.Subscription(c.id); ok && !current.IsGlobal() {
			radius = &current.RadiusKm
		}
	}
	area, err := domain.NewArea(msg.Latitude, msg.Longitude, radius)
	if err != nil || area.IsGlobal() {
		h.replyError(c, "latitude and longitude required")
		return
	}
	if err := h.hub.UpdateSubscriptionArea(c.id, area); err != nil {
		return
	}

	alert, err := h.alerts.Evaluate(ctx, area.Center)
	if err != nil {
		h.log.Error("evaluate alert", slog.String("connection_id", c.id), slog.String("error", err.Error()))
		h.replyError(c, "alert unavailable")
		return
	}
	ev, err := realtime.NewEvent(api.EventLocationAlert, api.TopicAlerts, h.versions.Version(), wire.Alert(alert), h.now().UTC())
	if err != nil {
		h.log.Error("encode alert", slog.String("error", err.Error()))
		return
	}
	h.hub.Send(c.id, ev)
}

func (h *Handler) replySubscribed(c *Client) {
	topics, area, ok := h.hub.Subscription(c.id)
	if !ok {
		return
	}
	data := api.SubscribedData{Topics: topics, RadiusKm: area.RadiusKm}
	if !area.IsGlobal() {
		data.Latitude, data.Longitude = &area.Center.Lat, &area.Center.Lng
	}
	h.reply(c, api.MsgSubscribed, data)
}

func (h *Handler) replyError(c *Client, message string) {
	h.reply(c, api.MsgError, api.ErrorData{Message: message})
}

// reply queues a control message. A client that cannot take it is closed.
func (h *Handler) reply(c *Client, typ string, data any) {
	msg, err := api.NewServerMessage(typ, 0, data, h.now().UTC())
	if err != nil {
		h.log.Error("encode reply", slog.String("type", typ), slog.String("error", err.Error()))
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode reply", slog.String("type", typ), slog.String("error", err.Error()))
		return
	}
	if err := c.Deliver(payload); err != nil {
		c.Close()
	}
}

func parseSubscription(r *http.Request) (domain.Area, []api.Topic, error) {
	q := r.URL.Query()
	lat, err := optionalFloat(q.Get("lat"))
	if err != nil {
		return domain.Area{}, nil, err
	}
	lng, err := optionalFloat(q.Get("lng"))
	if err != nil {
		return domain.Area{}, nil, err
	}
	radius, err := optionalFloat(q.Get("radius"))
	if err != nil {
		return domain.Area{}, nil, err
	}
	area, err := domain.NewArea(lat, lng, radius)
	if err != nil {
		return domain.Area{}, nil, err
	}

	var topics []api.Topic
	if raw := q.Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			topic := api.Topic(strings.TrimSpace(t))
			if !topic.IsValid() {
				return domain.Area{}, nil, domain.NewValidationError("topics", "unknown topic "+string(topic))
			}
			topics = append(topics, topic)
		}
	}
	return area, topics, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, domain.NewValidationError("query", "invalid number "+strconv.Quote(s))
	}
	return &v, nil
}
