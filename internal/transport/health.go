package transport

import (
	"context"
	"time"

	"github.com/aristath/runconsole/internal/events"
)

// DefaultHealthInterval is the time between health probes.
const DefaultHealthInterval = 15 * time.Second

// HealthEvent carries the outcome of one health probe.
type HealthEvent struct {
	Health    Health
	Err       error
	Timestamp time.Time
}

func (e HealthEvent) EventType() string { return events.EventTypeHealthProbed }
func (e HealthEvent) TaskID() string    { return "" }

// Publisher receives health probe results.
type Publisher interface {
	Publish(topic string, event events.Event)
}

// PollHealth probes the server immediately and then every interval until ctx
// is done. Probe failures are published, not returned.
func PollHealth(ctx context.Context, c *Client, interval time.Duration, pub Publisher) error {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h, err := c.Health(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Debug("health probe failed", "err", err)
		}
		pub.Publish(events.TopicHealth, HealthEvent{Health: h, Err: err, Timestamp: time.Now()})

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
