package retry

import (
	"context"
	"encoding/json"
	"time"

	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/common/metrics"
)

// maxShift caps the exponent so the delay cannot overflow.
const maxShift = 30

type Scheduler struct {
	queue    Queue
	maxRetry int
	base     time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewScheduler(queue Queue, maxRetry int, base time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		queue:    queue,
		maxRetry: maxRetry,
		base:     base,
		now:      time.Now,
		logger:   log.Named("retry"),
	}
}

func (s *Scheduler) MaxRetry() int {
	return s.maxRetry
}

// Delay is base * 2^retry.
func (s *Scheduler) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > maxShift {
		retry = maxShift
	}
	return s.base * time.Duration(int64(1)<<uint(retry))
}

// Schedule queues the next attempt of payload on topic. retry is the count
// the current attempt carried; the queued envelope carries retry+1. When
// that exceeds the maximum nothing is queued, the drop is logged and
// Schedule reports false.
func (s *Scheduler) Schedule(ctx context.Context, topic string, payload json.RawMessage, retry int) (bool, error) {
	next := retry + 1
	if next > s.maxRetry {
		dropped := apperrors.NewMaxRetriesExceededError(topic, payloadID(payload), next, s.maxRetry)
		s.logger.Error("Retry limit reached, message dropped", map[string]interface{}{
			"errorCode": dropped.Code,
			"details":   dropped.Details,
			"topic":     topic,
			"retry":     next,
			"maxRetry":  s.maxRetry,
		})
		metrics.RetriesDropped.WithLabelValues(topic).Inc()
		return false, nil
	}

	delay := s.Delay(next)
	env := Envelope{OriginalTopic: topic, OriginalPayload: payload, Retry: next}
	if err := s.queue.Push(ctx, env, s.now().Add(delay)); err != nil {
		return false, apperrors.NewTransientError("schedule retry", err)
	}

	metrics.RetriesScheduled.WithLabelValues(topic).Inc()
	s.logger.Debug("retry scheduled", map[string]interface{}{
		"topic":   topic,
		"retry":   next,
		"delayMs": delay.Milliseconds(),
	})
	return true, nil
}

// Defer schedules a retry for a message that failed with cause and returns
// the error the processor should surface: a *Deferred when queued, nil when
// the retry budget is spent (the drop is already logged).
func (s *Scheduler) Defer(ctx context.Context, topic string, payload json.RawMessage, retry int, cause error) error {
	scheduled, err := s.Schedule(ctx, topic, payload, retry)
	if err != nil {
		return err
	}
	if !scheduled {
		return nil
	}
	return &Deferred{Topic: topic, Retry: retry + 1, Delay: s.Delay(retry + 1), Cause: cause}
}

func payloadID(payload json.RawMessage) string {
	var body struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &body)
	return body.ID
}
