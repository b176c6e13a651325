// Package notifier posts side-channel messages about job and candidate
// status changes. Delivery is best effort; callers log failures and move on.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"taas-es-processor/internal/common/aws"
	"taas-es-processor/internal/common/config"
	commonhttp "taas-es-processor/internal/common/http"
	"taas-es-processor/internal/common/logger"
)

type Notifier interface {
	PostMessage(ctx context.Context, destination string, message map[string]interface{}) error
}

// New builds the notifier selected by cfg.Driver.
func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "", "webhook":
		return NewWebhook(commonhttp.NewClient(config.GetDuration(cfg.Timeout)), log), nil
	case "sns":
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return NewSNS(client, log), nil
	default:
		return nil, fmt.Errorf("unknown notifier driver %q", cfg.Driver)
	}
}

// Webhook posts messages as JSON. A breaker stops calling a destination
// that keeps failing and lets a probe through after a cool-down.
type Webhook struct {
	client  *commonhttp.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  logger.Logger
}

func NewWebhook(client *commonhttp.Client, log logger.Logger) *Webhook {
	log = log.Named("notifier")
	settings := gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}
	return &Webhook{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  log,
	}
}

func (w *Webhook) PostMessage(ctx context.Context, destination string, message map[string]interface{}) error {
	_, err := w.breaker.Execute(func() ([]byte, error) {
		return w.client.PostJSON(ctx, destination, nil, message)
	})
	if err != nil {
		return fmt.Errorf("post webhook message: %w", err)
	}
	w.logger.Debug("webhook message posted", map[string]interface{}{"type": message["type"]})
	return nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (w *Webhook) State() string {
	return w.breaker.State().String()
}

// SNS publishes messages to the topic ARN given as destination.
type SNS struct {
	client *aws.SNSClient
	logger logger.Logger
}

func NewSNS(client *aws.SNSClient, log logger.Logger) *SNS {
	return &SNS{client: client, logger: log.Named("notifier")}
}

func (s *SNS) PostMessage(ctx context.Context, destination string, message map[string]interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	messageType, _ := message["type"].(string)
	id, err := s.client.PublishMessage(ctx, destination, messageType, string(body))
	if err != nil {
		return err
	}
	s.logger.Debug("sns message published", map[string]interface{}{"type": messageType, "messageId": id})
	return nil
}

// Noop drops every message.
type Noop struct{}

func (Noop) PostMessage(context.Context, string, map[string]interface{}) error {
	return nil
}
