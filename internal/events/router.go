package events

import (
	"context"
	"fmt"
	"sort"

	"taas-es-processor/internal/bus"
	"taas-es-processor/internal/store"
)

// Request is one decoded message handed to a processor.
type Request struct {
	Topic   string
	Message bus.Message
	// Raw is the envelope as received, used for schema validation.
	Raw   []byte
	Store store.Store
	Token string
	// Retry is how many times the message has been re-delivered.
	Retry int
}

type HandlerFunc func(ctx context.Context, req Request) error

// Router resolves a topic to its operation and handler.
type Router struct {
	topics   map[string]Operation
	handlers map[Operation]HandlerFunc
}

// NewRouter fails when two operations share a topic, a topic is blank, or
// a bound operation has no handler.
func NewRouter(topics map[string]Operation, handlers map[Operation]HandlerFunc) (*Router, error) {
	if len(topics) != len(operationNames) {
		return nil, fmt.Errorf("topic bindings are not unique: %d topics for %d operations", len(topics), len(operationNames))
	}
	for topic, op := range topics {
		if topic == "" {
			return nil, fmt.Errorf("operation %s has no topic", op)
		}
		if handlers[op] == nil {
			return nil, fmt.Errorf("operation %s (topic %s) has no handler", op, topic)
		}
	}
	return &Router{topics: topics, handlers: handlers}, nil
}

func (r *Router) Lookup(topic string) (Operation, HandlerFunc, bool) {
	op, ok := r.topics[topic]
	if !ok {
		return OpUnknown, nil, false
	}
	return op, r.handlers[op], true
}

// Topics returns the subscribed topic names, sorted.
func (r *Router) Topics() []string {
	out := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}
