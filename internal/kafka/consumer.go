package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fathima-sithara/teamchat/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Consumer struct {
	reader *kafka.Reader
	log    *zap.SugaredLogger
}

// NewConsumer joins groupID. Every instance must use its own group so each
// one sees every event and can fan it out to its own sockets.
func NewConsumer(brokers []string, topic, groupID string, log *zap.SugaredLogger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{reader: r, log: log}
}

// Start blocks until ctx is cancelled, handing each decoded event to handle.
func (c *Consumer) Start(ctx context.Context, handle func(events.Event)) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warnw("kafka read error", "err", err)
			time.Sleep(time.Second)
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.log.Warnw("kafka decode error", "err", err, "offset", m.Offset)
			continue
		}
		handle(ev)
	}
}

func (c *Consumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
