// Package retry re-delivers messages whose parent aggregate was not yet
// indexed. Pending retries sit in a Redis sorted set scored by due time
// until the pump publishes them on the retry channel.
package retry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the payload carried on the retry channel.
type Envelope struct {
	OriginalTopic   string          `json:"originalTopic"`
	OriginalPayload json.RawMessage `json:"originalPayload"`
	Retry           int             `json:"retry"`
}

// Deferred is returned by a processor whose message was handed to the
// scheduler. It is logged at warn rather than treated as a failure.
type Deferred struct {
	Topic string
	Retry int
	Delay time.Duration
	Cause error
}

func (d *Deferred) Error() string {
	return fmt.Sprintf("retry %d of %s scheduled in %s: %v", d.Retry, d.Topic, d.Delay, d.Cause)
}

func (d *Deferred) Unwrap() error {
	return d.Cause
}
