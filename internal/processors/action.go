package processors

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "taas-es-processor/internal/common/errors"
	"taas-es-processor/internal/events"
	"taas-es-processor/internal/retry"
)

// actionRetry unwraps a retry envelope published by this service and runs
// the original handler with the carried retry count. Envelopes from other
// originators are ignored.
func (s *Set) actionRetry(ctx context.Context, req events.Request) error {
	if _, err := s.payload(events.ActionRetry, req); err != nil {
		return err
	}
	if req.Message.Originator != s.cfg.App.Originator {
		s.logger.Debug("retry from foreign originator ignored", map[string]interface{}{
			"transactionId": req.Token,
			"originator":    req.Message.Originator,
			"expected":      s.cfg.App.Originator,
		})
		return nil
	}

	var env retry.Envelope
	if err := json.Unmarshal(req.Message.Payload, &env); err != nil {
		return apperrors.NewDecodeError(err)
	}
	op, ok := s.bindings[env.OriginalTopic]
	if !ok || op == events.ActionRetry {
		return apperrors.NewUnknownTopicError(env.OriginalTopic)
	}

	msg := req.Message
	msg.Topic = env.OriginalTopic
	msg.Payload = env.OriginalPayload
	raw, err := json.Marshal(msg)
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("rebuild retried message: %w", err))
	}

	s.logger.Debug("replaying message", map[string]interface{}{
		"transactionId": req.Token,
		"topic":         env.OriginalTopic,
		"retry":         env.Retry,
	})

	next := req
	next.Topic = env.OriginalTopic
	next.Message = msg
	next.Raw = raw
	next.Retry = env.Retry
	return s.handlers[op](ctx, next)
}
