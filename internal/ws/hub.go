package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/teamchat/internal/domain"
	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/fathima-sithara/teamchat/internal/metrics"
	"go.uber.org/zap"
)

// Authorizer decides whether userID may watch topic.
type Authorizer interface {
	CanSubscribe(ctx context.Context, userID, topic string) (bool, error)
}

// Presence tracks live connections per workspace.
type Presence interface {
	MarkOnline(ctx context.Context, workspaceID, userID string) error
	MarkOffline(ctx context.Context, workspaceID, userID string) error
}

type Options struct {
	MaxMessageBytes  int64
	PingInterval     time.Duration
	InboundPerSecond float64
	InboundBurst     int
}

func (o *Options) defaults() {
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 32 * 1024
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.InboundPerSecond <= 0 {
		o.InboundPerSecond = 10
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = 20
	}
}

// Frame is the JSON envelope exchanged with clients in both directions.
type Frame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSubscribed  = "subscribed"
	FrameInvalidate  = "invalidate"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameError       = "error"
)

// Hub fans invalidation frames out to every connection subscribed to a
// topic. Rooms are keyed by topic.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Conn]struct{}
	auth     Authorizer
	presence Presence
	opts     Options
	log      *zap.SugaredLogger
}

func NewHub(auth Authorizer, presence Presence, opts Options, log *zap.SugaredLogger) *Hub {
	opts.defaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		rooms:    make(map[string]map[*Conn]struct{}),
		auth:     auth,
		presence: presence,
		opts:     opts,
		log:      log,
	}
}

func (h *Hub) join(topic string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[topic]; !ok {
		h.rooms[topic] = make(map[*Conn]struct{})
	}
	h.rooms[topic][c] = struct{}{}
}

func (h *Hub) leave(topic string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, topic)
		}
	}
}

// Subscribers counts the connections watching topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

func (h *Hub) subscribe(ctx context.Context, c *Conn, topic string) error {
	ok, err := h.auth.CanSubscribe(ctx, c.userID, topic)
	if err != nil {
		return err
	}
	if !ok {
		return errForbidden
	}
	if !c.track(topic) {
		return nil
	}
	h.join(topic, c)
	if ws, isWorkspace := strings.CutPrefix(topic, "workspace:"); isWorkspace {
		h.setPresence(ctx, ws, c.userID, true)
	}
	return nil
}

func (h *Hub) unsubscribe(ctx context.Context, c *Conn, topic string) {
	if !c.untrack(topic) {
		return
	}
	h.leave(topic, c)
	if ws, isWorkspace := strings.CutPrefix(topic, "workspace:"); isWorkspace {
		h.setPresence(ctx, ws, c.userID, false)
	}
}

func (h *Hub) setPresence(ctx context.Context, workspaceID, userID string, online bool) {
	if h.presence != nil {
		var err error
		if online {
			err = h.presence.MarkOnline(ctx, workspaceID, userID)
		} else {
			err = h.presence.MarkOffline(ctx, workspaceID, userID)
		}
		if err != nil {
			h.log.Warnw("presence update failed", "workspace", workspaceID, "user", userID, "err", err)
		}
	}
	h.Broadcast(domain.WorkspaceTopic(workspaceID), events.PresenceChanged)
}

// Broadcast queues an invalidate frame for every subscriber of topic.
// Slow connections drop the frame.
func (h *Hub) Broadcast(topic, event string) {
	b, _ := json.Marshal(Frame{Type: FrameInvalidate, Topic: topic, Event: event})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[topic] {
		select {
		case c.send <- b:
			metrics.WSInvalidations.Inc()
		default:
			h.log.Debugw("dropping frame for slow client", "user", c.userID, "topic", topic)
		}
	}
}

// HandleEvent pushes a domain event to each of its topics.
func (h *Hub) HandleEvent(ev events.Event) {
	for _, t := range ev.Topics {
		h.Broadcast(t, ev.Type)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := map[*Conn]struct{}{}
	for _, set := range h.rooms {
		for c := range set {
			conns[c] = struct{}{}
		}
	}
	h.mu.Unlock()
	for c := range conns {
		c.close()
	}
}
