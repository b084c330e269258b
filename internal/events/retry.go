package events

import (
	"math/rand"
	"time"
)

// Backoff between async publish attempts.
// Attempt 1: 100ms, Attempt 2: 500ms, Attempt 3: 2s
var defaultRetryDelays = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
}

const (
	// DefaultMaxAttempts bounds async sends, counting the first try.
	DefaultMaxAttempts = 4

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// nextRetryDelay returns the jittered delay after the given failed attempt.
// attempt is 0-indexed; values past the table reuse the last delay.
func nextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

// isExhausted reports whether attempts (made so far) reached maxAttempts.
func isExhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}
