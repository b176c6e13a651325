package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"taas-es-processor/internal/common/logger"
)

// valueField is the stream entry field holding the JSON envelope.
const valueField = "value"

type StreamsConfig struct {
	Group        string
	Consumer     string
	BatchSize    int64
	BlockTimeout time.Duration
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration
}

// RedisStreams implements Consumer and Publisher on Redis Streams.
type RedisStreams struct {
	client redis.Cmdable
	cfg    StreamsConfig
	logger logger.Logger
}

func NewRedisStreams(client redis.Cmdable, cfg StreamsConfig, log logger.Logger) *RedisStreams {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &RedisStreams{client: client, cfg: cfg, logger: log.Named("bus")}
}

// Publish appends msg to the stream named topic.
func (r *RedisStreams) Publish(ctx context.Context, topic string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{valueField: data},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	r.logger.Debug("message published", map[string]interface{}{"topic": topic, "entryId": id})
	return nil
}

// Commit acknowledges the delivery for the consumer group.
func (r *RedisStreams) Commit(ctx context.Context, d Delivery) error {
	if err := r.client.XAck(ctx, d.Channel, r.cfg.Group, d.ID).Err(); err != nil {
		return fmt.Errorf("ack %s/%s: %w", d.Channel, d.ID, err)
	}
	return nil
}

// EnsureGroups creates the consumer group on every stream, creating empty
// streams as needed. An existing group is left as is.
func (r *RedisStreams) EnsureGroups(ctx context.Context, topics []string) error {
	for _, topic := range topics {
		err := r.client.XGroupCreateMkStream(ctx, topic, r.cfg.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", r.cfg.Group, topic, err)
		}
	}
	return nil
}

// Subscribe runs one reader per topic. Within a topic entries are handed to
// handler strictly in order; topics proceed independently.
func (r *RedisStreams) Subscribe(ctx context.Context, topics []string, handler Handler) error {
	if err := r.EnsureGroups(ctx, topics); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			return r.consume(ctx, topic, handler)
		})
	}
	r.logger.Info("subscribed", map[string]interface{}{
		"group":    r.cfg.Group,
		"consumer": r.cfg.Consumer,
		"topics":   topics,
	})
	return g.Wait()
}

// consume first replays entries delivered to this consumer but never
// acknowledged, then follows new entries.
func (r *RedisStreams) consume(ctx context.Context, topic string, handler Handler) error {
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			Streams:  []string{topic, cursor},
			Count:    r.cfg.BatchSize,
			Block:    r.cfg.BlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("stream read failed", map[string]interface{}{"topic": topic, "error": err})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.ErrorBackoff):
			}
			continue
		}

		received := 0
		for _, stream := range streams {
			for _, entry := range stream.Messages {
				received++
				handler(ctx, Delivery{Channel: topic, ID: entry.ID, Value: entryValue(entry)})
			}
		}
		if cursor != ">" && received == 0 {
			cursor = ">"
		}
	}
}

func entryValue(entry redis.XMessage) []byte {
	switch v := entry.Values[valueField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	}
	return nil
}
