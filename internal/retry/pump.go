package retry

import (
	"context"
	"fmt"
	"time"

	"taas-es-processor/internal/bus"
	"taas-es-processor/internal/common/logger"
)

type PumpConfig struct {
	Topic        string
	Originator   string
	PollInterval time.Duration
	BatchSize    int
}

// Pump moves due envelopes from the queue onto the retry channel. It runs
// as a supervised service.
type Pump struct {
	queue     Queue
	publisher bus.Publisher
	cfg       PumpConfig
	now       func() time.Time
	logger    logger.Logger
}

func NewPump(queue Queue, publisher bus.Publisher, cfg PumpConfig, log logger.Logger) *Pump {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Pump{
		queue:     queue,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    log.Named("retry-pump"),
	}
}

// Serve implements suture.Service.
func (p *Pump) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Flush(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("retry flush failed", map[string]interface{}{"error": err})
			}
		}
	}
}

// Flush publishes every envelope that is due and returns how many went out.
// An envelope whose publish fails is put back as due immediately.
func (p *Pump) Flush(ctx context.Context) (int, error) {
	published := 0
	for {
		due, err := p.queue.Claim(ctx, p.now(), p.cfg.BatchSize)
		if err != nil {
			return published, err
		}

		for _, env := range due {
			if err := p.publish(ctx, env); err != nil {
				if requeueErr := p.queue.Push(ctx, env, p.now()); requeueErr != nil {
					p.logger.Error("retry lost after failed publish", map[string]interface{}{
						"topic": env.OriginalTopic,
						"retry": env.Retry,
						"error": requeueErr,
					})
				}
				return published, err
			}
			published++
		}

		if len(due) < p.cfg.BatchSize {
			return published, nil
		}
	}
}

func (p *Pump) publish(ctx context.Context, env Envelope) error {
	msg, err := bus.NewMessage(p.cfg.Topic, p.cfg.Originator, env)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ctx, p.cfg.Topic, msg); err != nil {
		return fmt.Errorf("publish retry of %s: %w", env.OriginalTopic, err)
	}
	p.logger.Debug("retry published", map[string]interface{}{
		"topic": env.OriginalTopic,
		"retry": env.Retry,
	})
	return nil
}

func (p *Pump) String() string {
	return "retry-pump"
}
