package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// EventReconnected marks the synthetic invalidation fired for every topic
// after a reconnect, since changes may have been missed while offline.
const EventReconnected = "reconnected"

type Invalidation struct {
	Topic string
	Event string
}

type frame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

// Subscriber keeps one websocket to the server and fans invalidation frames
// out to per-topic handlers. It implements Invalidations.
type Subscriber struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    *zap.SugaredLogger

	mu       sync.Mutex
	handlers map[string]map[uint64]func(Invalidation)
	nextID   uint64
	conn     *websocket.Conn

	writeMu sync.Mutex
}

func NewSubscriber(wsURL, token string, log *zap.SugaredLogger) *Subscriber {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return &Subscriber{
		url:      wsURL,
		header:   h,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:      log,
		handlers: map[string]map[uint64]func(Invalidation){},
	}
}

// Subscriber returns a live subscriber for this client's server and token.
func (c *Client) Subscriber(log *zap.SugaredLogger) *Subscriber {
	u := c.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return NewSubscriber(u+"/ws", c.Token(), log)
}

// Subscribe registers fn for topic. The server is told about a topic when
// its first handler arrives and its last one leaves.
func (s *Subscriber) Subscribe(topic string, fn func(Invalidation)) func() {
	s.mu.Lock()
	hs, ok := s.handlers[topic]
	if !ok {
		hs = map[uint64]func(Invalidation){}
		s.handlers[topic] = hs
	}
	s.nextID++
	id := s.nextID
	hs[id] = fn
	conn := s.conn
	s.mu.Unlock()

	if !ok && conn != nil {
		s.write(conn, frame{Type: "subscribe", Topic: topic})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			hs := s.handlers[topic]
			delete(hs, id)
			last := len(hs) == 0
			if last {
				delete(s.handlers, topic)
			}
			conn := s.conn
			s.mu.Unlock()
			if last && conn != nil {
				s.write(conn, frame{Type: "unsubscribe", Topic: topic})
			}
		})
	}
}

// Run connects, resubscribes and dispatches frames until ctx ends,
// redialing with exponential backoff whenever the socket drops.
func (s *Subscriber) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	connected := false
	for {
		var conn *websocket.Conn
		dial := func() error {
			c, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusUnauthorized {
					return backoff.Permanent(err)
				}
				s.log.Debugw("subscriber dial failed", "url", s.url, "err", err)
				return err
			}
			conn = c
			return nil
		}
		if err := backoff.Retry(dial, backoff.WithContext(b, ctx)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		b.Reset()

		topics := s.attach(conn)
		for _, t := range topics {
			s.write(conn, frame{Type: "subscribe", Topic: t})
		}
		if connected {
			for _, t := range topics {
				s.dispatch(Invalidation{Topic: t, Event: EventReconnected})
			}
		}
		connected = true

		err := s.readLoop(ctx, conn)
		s.detach(conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warnw("subscriber disconnected", "err", err)
	}
}

func (s *Subscriber) attach(conn *websocket.Conn) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	topics := make([]string, 0, len(s.handlers))
	for t := range s.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (s *Subscriber) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			s.writeMu.Unlock()
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.log.Warnw("subscriber bad frame", "err", err)
			continue
		}
		switch f.Type {
		case "invalidate":
			s.dispatch(Invalidation{Topic: f.Topic, Event: f.Event})
		case "error":
			s.log.Warnw("subscriber server error", "topic", f.Topic, "error", f.Error)
		}
	}
}

func (s *Subscriber) dispatch(inv Invalidation) {
	s.mu.Lock()
	fns := make([]func(Invalidation), 0, len(s.handlers[inv.Topic]))
	for _, fn := range s.handlers[inv.Topic] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(inv)
	}
}

func (s *Subscriber) write(conn *websocket.Conn, f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.log.Debugw("subscriber write failed", "type", f.Type, "err", err)
	}
}
