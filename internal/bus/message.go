// Package bus carries envelopes between producers and the processor over
// Redis Streams. Each topic is one stream; the processor reads through a
// consumer group and acknowledges every entry once it has been handled.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MimeJSON is the only payload encoding produced or accepted.
const MimeJSON = "application/json"

// Message is the standard envelope every event travels in.
type Message struct {
	Topic      string          `json:"topic"`
	Originator string          `json:"originator"`
	Timestamp  string          `json:"timestamp"`
	MimeType   string          `json:"mime-type"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// NewMessage wraps payload in an envelope stamped with the current UTC time.
func NewMessage(topic, originator string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload for %s: %w", topic, err)
	}
	return Message{
		Topic:      topic,
		Originator: originator,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		MimeType:   MimeJSON,
		Payload:    raw,
	}, nil
}

// Delivery is one raw entry read from a channel. The handler decodes Value.
type Delivery struct {
	Channel string
	ID      string
	Value   []byte
}

// Handler is invoked once per delivery, sequentially within a channel.
type Handler func(ctx context.Context, d Delivery)

type Consumer interface {
	// Subscribe blocks, feeding each channel's deliveries to handler until
	// ctx is cancelled or a channel fails.
	Subscribe(ctx context.Context, topics []string, handler Handler) error
	Commit(ctx context.Context, d Delivery) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}
