package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fathima-sithara/teamchat/internal/metrics"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

var errForbidden = errors.New("forbidden")

const writeWait = 10 * time.Second

// Socket is the part of *websocket.Conn the pumps use.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Conn struct {
	sock    Socket
	hub     *Hub
	userID  string
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	topics map[string]struct{}
	once   sync.Once
	done   chan struct{}
}

func (c *Conn) track(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; ok {
		return false
	}
	c.topics[topic] = struct{}{}
	return true
}

func (c *Conn) untrack(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; !ok {
		return false
	}
	delete(c.topics, topic)
	return true
}

func (c *Conn) subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

func (c *Conn) reply(f Frame) {
	b, _ := json.Marshal(f)
	select {
	case c.send <- b:
	case <-c.done:
	default:
	}
}

// Serve runs one authenticated connection until the client goes away.
func (h *Hub) Serve(sock Socket, userID string) {
	c := &Conn{
		sock:    sock,
		hub:     h,
		userID:  userID,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(h.opts.InboundPerSecond), h.opts.InboundBurst),
		topics:  map[string]struct{}{},
		done:    make(chan struct{}),
	}
	metrics.WSConnections.Inc()
	h.log.Debugw("ws connected", "user", userID)

	go c.writePump()
	c.readPump()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, t := range c.subscribed() {
		h.unsubscribe(ctx, c, t)
	}
	c.close()
	metrics.WSConnections.Dec()
	h.log.Debugw("ws disconnected", "user", userID)
}

func (c *Conn) readPump() {
	pongWait := 2 * c.hub.opts.PingInterval
	c.sock.SetReadLimit(c.hub.opts.MaxMessageBytes)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !c.limiter.Allow() {
			c.reply(Frame{Type: FrameError, Error: "rate limited"})
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.reply(Frame{Type: FrameError, Error: "malformed frame"})
			continue
		}
		c.handle(f)
	}
}

func (c *Conn) handle(f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	switch f.Type {
	case FrameSubscribe:
		if err := c.hub.subscribe(ctx, c, f.Topic); err != nil {
			if !errors.Is(err, errForbidden) {
				c.hub.log.Warnw("subscribe failed", "user", c.userID, "topic", f.Topic, "err", err)
			}
			c.reply(Frame{Type: FrameError, Topic: f.Topic, Error: "subscription refused"})
			return
		}
		c.reply(Frame{Type: FrameSubscribed, Topic: f.Topic})
	case FrameUnsubscribe:
		c.hub.unsubscribe(ctx, c, f.Topic)
	case FramePing:
		c.reply(Frame{Type: FramePong})
	default:
		c.reply(Frame{Type: FrameError, Error: "unknown frame type"})
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
