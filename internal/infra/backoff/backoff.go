// Package backoff computes exponential retry delays. The same policy is
// shared by the streaming transport's reconnect loop and the REST pollers.
package backoff

import "time"

// Default policy used by the transport and pollers.
const (
	DefaultBase        = 1 * time.Second
	DefaultMax         = 16 * time.Second
	DefaultMaxAttempts = 5
)

// Delay returns the delay before the given zero-based attempt:
// min(base << attempt, max). Attempt counters reset on success, so a healthy
// connection never inherits backoff state from an earlier blip.
func Delay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBase
	}
	if max <= 0 {
		max = DefaultMax
	}
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
