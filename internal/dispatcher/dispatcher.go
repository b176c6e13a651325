// Package dispatcher feeds bus deliveries to processors. Every delivery is
// committed exactly once, whatever the processor did.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"taas-es-processor/internal/bus"
	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/common/logger"
	"taas-es-processor/internal/common/metrics"
	"taas-es-processor/internal/common/observability"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/retry"
	"taas-es-processor/internal/store"
)

const (
	statusSuccess  = "success"
	statusDeferred = "deferred"
	statusFailed   = "failed"
)

// Hooks are called around every delivery, on the consuming goroutine.
type Hooks struct {
	Started  func(d bus.Delivery, seq int64)
	Finished func(d bus.Delivery, seq int64, err error)
}

type Dispatcher struct {
	router   *events.Router
	store    *store.Client
	consumer bus.Consumer
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	hooks    Hooks
	logger   logger.Logger

	handled atomic.Int64
}

type Option func(*Dispatcher)

func WithHooks(h Hooks) Option {
	return func(d *Dispatcher) { d.hooks = h }
}

func WithObservability(obs *observability.Observability) Option {
	return func(d *Dispatcher) { d.obs = obs }
}

func New(router *events.Router, client *store.Client, consumer bus.Consumer, log logger.Logger, opts ...Option) *Dispatcher {
	log = log.Named("dispatcher")
	d := &Dispatcher{
		router:   router,
		store:    client,
		consumer: consumer,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes every routed topic until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	topics := d.router.Topics()
	d.logger.Info("dispatcher started", map[string]interface{}{"topics": topics})
	return d.consumer.Subscribe(ctx, topics, d.Handle)
}

// Handled returns how many deliveries have been handled so far.
func (d *Dispatcher) Handled() int64 {
	return d.handled.Load()
}

// Handle processes one delivery and commits it.
func (d *Dispatcher) Handle(ctx context.Context, delivery bus.Delivery) {
	seq := d.handled.Add(1)
	if d.hooks.Started != nil {
		d.hooks.Started(delivery, seq)
	}

	inFlight := metrics.MessagesInFlight.WithLabelValues(delivery.Channel)
	inFlight.Inc()
	start := time.Now()

	token, err := d.process(ctx, delivery)
	d.report(ctx, delivery, token, err, time.Since(start))
	inFlight.Dec()

	if cerr := d.consumer.Commit(ctx, delivery); cerr != nil {
		d.logger.Error("failed to commit delivery", map[string]interface{}{
			"topic": delivery.Channel,
			"entry": delivery.ID,
			"error": cerr.Error(),
		})
	}

	if d.hooks.Finished != nil {
		d.hooks.Finished(delivery, seq, err)
	}
}

func (d *Dispatcher) process(ctx context.Context, delivery bus.Delivery) (token string, err error) {
	var msg bus.Message
	if err := json.Unmarshal(delivery.Value, &msg); err != nil {
		return "", apperrors.NewDecodeError(err)
	}
	if msg.Topic != delivery.Channel {
		return "", apperrors.NewTopicMismatchError(msg.Topic, delivery.Channel)
	}
	_, handler, ok := d.router.Lookup(msg.Topic)
	if !ok {
		return "", apperrors.NewUnknownTopicError(msg.Topic)
	}

	token = "transaction_" + uuid.NewString()
	uow := d.store.Begin(token)
	defer uow.End()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternalError(fmt.Errorf("processor panic: %v", r))
		}
	}()

	d.logger.Debug("handling message", map[string]interface{}{
		"topic":         msg.Topic,
		"entry":         delivery.ID,
		"transactionId": token,
	})
	return token, handler(ctx, events.Request{
		Topic:   msg.Topic,
		Message: msg,
		Raw:     delivery.Value,
		Store:   uow,
		Token:   token,
	})
}

func (d *Dispatcher) report(ctx context.Context, delivery bus.Delivery, token string, err error, elapsed time.Duration) {
	topic := delivery.Channel
	fields := map[string]interface{}{
		"topic":         topic,
		"entry":         delivery.ID,
		"transactionId": token,
		"durationMs":    elapsed.Milliseconds(),
	}

	status := statusSuccess
	var deferred *retry.Deferred
	switch {
	case err == nil:
		metrics.MessagesHandled.WithLabelValues(topic).Inc()
		d.logger.Debug("message handled", fields)
	case errors.As(err, &deferred):
		status = statusDeferred
		metrics.MessagesHandled.WithLabelValues(topic).Inc()
		fields["retry"] = deferred.Retry
		fields["delayMs"] = deferred.Delay.Milliseconds()
		d.errors.HandleRetryable(err, fields)
		d.obs.RecordRetry(ctx, deferred.Topic, "scheduled")
	default:
		status = statusFailed
		stdErr := d.errors.Handle(err, fields)
		metrics.MessagesFailed.WithLabelValues(topic, string(stdErr.Code)).Inc()
	}

	metrics.MessageDuration.WithLabelValues(topic).Observe(elapsed.Seconds())
	d.obs.RecordMessageProcessed(ctx, topic, status)
	d.obs.RecordMessageDuration(ctx, topic, elapsed, status)
}
