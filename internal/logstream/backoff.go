package logstream

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits base × attempt before each reconnect.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// newReconnectPolicy returns a linear policy that stops after maxAttempts.
func newReconnectPolicy(base time.Duration, maxAttempts int) backoff.BackOff {
	return backoff.WithMaxRetries(&linearBackOff{base: base}, uint64(maxAttempts))
}
