package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taas-es-processor/internal/common/logger"
)

// Queue holds envelopes until they are due.
type Queue interface {
	Push(ctx context.Context, env Envelope, due time.Time) error
	// Claim removes and returns up to limit envelopes due at or before now.
	// An envelope is returned to exactly one caller.
	Claim(ctx context.Context, now time.Time, limit int) ([]Envelope, error)
}

// queued is the sorted set member. The id keeps identical envelopes
// scheduled twice from collapsing into one member.
type queued struct {
	ID       string   `json:"id"`
	Envelope Envelope `json:"envelope"`
}

// RedisQueue stores envelopes in a sorted set scored by due time in
// milliseconds.
type RedisQueue struct {
	client redis.Cmdable
	key    string
	logger logger.Logger
}

func NewRedisQueue(client redis.Cmdable, key string, log logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, key: key, logger: log.Named("retry-queue")}
}

func (q *RedisQueue) Push(ctx context.Context, env Envelope, due time.Time) error {
	member, err := json.Marshal(queued{ID: uuid.NewString(), Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal retry envelope: %w", err)
	}
	if err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue retry for %s: %w", env.OriginalTopic, err)
	}
	return nil
}

// Claim reads due members and keeps those this caller managed to remove,
// so concurrent pumps never publish the same entry twice.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int) ([]Envelope, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due retries: %w", err)
	}

	out := make([]Envelope, 0, len(members))
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return out, fmt.Errorf("claim retry: %w", err)
		}
		if removed != 1 {
			continue
		}
		var entry queued
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			q.logger.Error("discarding undecodable retry entry", map[string]interface{}{"error": err})
			continue
		}
		out = append(out, entry.Envelope)
	}
	return out, nil
}

// Len reports how many retries are pending.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}
