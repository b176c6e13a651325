package retry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taas-es-processor/internal/bus"
	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/common/logger"
)

const queueKey = "taas-es-processor:retry"

func newQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, queueKey, logger.NewTestLogger(t)), mr
}

func payload(id string) json.RawMessage {
	return json.RawMessage(`{"id":"` + id + `","resourceBookingId":"rb1"}`)
}

func TestScheduler_DelayGrowsExponentially(t *testing.T) {
	s := NewScheduler(nil, 10, 500*time.Millisecond, logger.NewNoOpLogger())

	prev := time.Duration(0)
	for n := 1; n <= 10; n++ {
		d := s.Delay(n)
		assert.Equal(t, 500*time.Millisecond*time.Duration(1<<n), d)
		assert.Greater(t, d, prev)
		prev = d
	}
	assert.Equal(t, s.Delay(maxShift), s.Delay(maxShift+5), "exponent is capped")
}

func TestScheduler_ScheduleQueuesNextAttempt(t *testing.T) {
	ctx := context.Background()
	q, mr := newQueue(t)
	s := NewScheduler(q, 3, 100*time.Millisecond, logger.NewTestLogger(t))
	now := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return now }

	scheduled, err := s.Schedule(ctx, "taas.workperiod.create", payload("w1"), 0)
	require.NoError(t, err)
	assert.True(t, scheduled)

	members, err := mr.ZMembers(queueKey)
	require.NoError(t, err)
	require.Len(t, members, 1)
	score, err := mr.ZScore(queueKey, members[0])
	require.NoError(t, err)
	assert.Equal(t, float64(now.Add(200*time.Millisecond).UnixMilli()), score)

	due, err := q.Claim(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "taas.workperiod.create", due[0].OriginalTopic)
	assert.Equal(t, 1, due[0].Retry)
	assert.JSONEq(t, string(payload("w1")), string(due[0].OriginalPayload))
}

func TestScheduler_StopsAtMaxRetry(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	s := NewScheduler(q, 3, time.Millisecond, logger.NewTestLogger(t))

	scheduled, err := s.Schedule(ctx, "taas.workperiod.create", payload("w1"), 3)
	require.NoError(t, err)
	assert.False(t, scheduled)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, s.Defer(ctx, "taas.workperiod.create", payload("w1"), 3, errors.New("missing parent")))
}

func TestScheduler_DeferWrapsCause(t *testing.T) {
	q, _ := newQueue(t)
	s := NewScheduler(q, 3, time.Millisecond, logger.NewTestLogger(t))
	cause := apperrors.NewChildNotFoundError("ResourceBooking", "rb1")

	err := s.Defer(context.Background(), "taas.workperiod.create", payload("w1"), 1, cause)

	var deferred *Deferred
	require.True(t, errors.As(err, &deferred))
	assert.Equal(t, 2, deferred.Retry)
	assert.Equal(t, 4*time.Millisecond, deferred.Delay)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestScheduler_QueueFailureIsTransient(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewScheduler(NewRedisQueue(client, queueKey, logger.NewNoOpLogger()), 3, time.Millisecond, logger.NewNoOpLogger())

	mock.CustomMatch(func(expected, actual []interface{}) error { return nil }).
		ExpectZAdd(queueKey, redis.Z{}).SetErr(errors.New("READONLY replica"))

	scheduled, err := s.Schedule(context.Background(), "taas.workperiod.create", payload("w1"), 0)

	assert.False(t, scheduled)
	assert.True(t, apperrors.IsTransient(err))
}

func TestRedisQueue_ClaimOnlyDue(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	now := time.Now()
	env := Envelope{OriginalTopic: "taas.interview.requested", OriginalPayload: payload("i1"), Retry: 1}

	require.NoError(t, q.Push(ctx, env, now.Add(-time.Second)))
	require.NoError(t, q.Push(ctx, env, now.Add(-time.Second)))
	require.NoError(t, q.Push(ctx, env, now.Add(time.Hour)))

	due, err := q.Claim(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2, "identical envelopes stay distinct entries")

	due, err = q.Claim(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue_ConcurrentClaimsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	past := time.Now().Add(-time.Minute)
	for i := 0; i < 40; i++ {
		require.NoError(t, q.Push(ctx, Envelope{OriginalTopic: "taas.workperiod.create", Retry: 1}, past))
	}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				due, err := q.Claim(ctx, time.Now(), 5)
				if !assert.NoError(t, err) || len(due) == 0 {
					return
				}
				mu.Lock()
				total += len(due)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, total)
}

func TestRedisQueue_SkipsLostRaceAndBadMembers(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, queueKey, logger.NewNoOpLogger())
	now := time.UnixMilli(1_700_000_000_000)
	good := `{"id":"a","envelope":{"originalTopic":"taas.workperiod.create","originalPayload":{},"retry":2}}`

	mock.ExpectZRangeByScore(queueKey, &redis.ZRangeBy{Min: "-inf", Max: "1700000000000", Count: 10}).
		SetVal([]string{"taken-by-other", "not-json", good})
	mock.ExpectZRem(queueKey, "taken-by-other").SetVal(0)
	mock.ExpectZRem(queueKey, "not-json").SetVal(1)
	mock.ExpectZRem(queueKey, good).SetVal(1)

	due, err := q.Claim(context.Background(), now, 10)

	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Retry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []bus.Message
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, msg bus.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) published() []bus.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.Message(nil), f.msgs...)
}

func TestPump_FlushPublishesDueEnvelopes(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	pub := &fakePublisher{}
	p := NewPump(q, pub, PumpConfig{Topic: "taas.action.retry", Originator: "taas-es-processor", BatchSize: 2}, logger.NewTestLogger(t))

	past := time.Now().Add(-time.Second)
	for _, id := range []string{"w1", "w2", "w3"} {
		require.NoError(t, q.Push(ctx, Envelope{OriginalTopic: "taas.workperiod.create", OriginalPayload: payload(id), Retry: 1}, past))
	}
	require.NoError(t, q.Push(ctx, Envelope{OriginalTopic: "taas.workperiod.create", Retry: 1}, time.Now().Add(time.Hour)))

	n, err := p.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "flush drains across batches")

	msgs := pub.published()
	require.Len(t, msgs, 3)
	assert.Equal(t, "taas.action.retry", msgs[0].Topic)
	assert.Equal(t, "taas-es-processor", msgs[0].Originator)
	var env Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &env))
	assert.Equal(t, "taas.workperiod.create", env.OriginalTopic)
	assert.Equal(t, 1, env.Retry)
}

func TestPump_FailedPublishRequeues(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	pub := &fakePublisher{err: errors.New("stream unavailable")}
	p := NewPump(q, pub, PumpConfig{Topic: "taas.action.retry", Originator: "taas-es-processor"}, logger.NewTestLogger(t))

	require.NoError(t, q.Push(ctx, Envelope{OriginalTopic: "taas.workperiod.create", Retry: 2}, time.Now().Add(-time.Second)))

	_, err := p.Flush(ctx)
	require.Error(t, err)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPump_ServeStopsOnCancel(t *testing.T) {
	q, _ := newQueue(t)
	pub := &fakePublisher{}
	p := NewPump(q, pub, PumpConfig{Topic: "taas.action.retry", PollInterval: 5 * time.Millisecond}, logger.NewTestLogger(t))
	require.NoError(t, q.Push(context.Background(), Envelope{OriginalTopic: "taas.job.create", Retry: 1}, time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
	assert.Equal(t, "retry-pump", p.String())
}
