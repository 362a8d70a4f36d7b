// Package backoff provides exponential backoff delay calculation for stream
// reconnection. The policy is a pure function of the attempt number so callers
// can drive it from an explicit state machine with an injectable time source.
package backoff

import (
	"errors"
	"time"
)

// Policy configures exponential backoff between reconnection attempts.
type Policy struct {
	BaseDelay   time.Duration // Delay before the first retry
	MaxDelay    time.Duration // Cap applied to the computed delay
	MaxAttempts int           // Attempts before a stream is marked dead (0 = unlimited)
}

// Default returns sensible defaults for stream reconnection.
func Default() Policy {
	return Policy{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 10,
	}
}

// Validate checks the policy for configuration errors.
func (p Policy) Validate() error {
	if p.BaseDelay <= 0 {
		return errors.New("backoff: BaseDelay must be positive")
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("backoff: MaxDelay must be >= BaseDelay")
	}
	if p.MaxAttempts < 0 {
		return errors.New("backoff: MaxAttempts cannot be negative")
	}
	return nil
}

// Delay returns the backoff delay for attempt n (1-based):
// min(BaseDelay * 2^(n-1), MaxDelay). Attempts below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		// Cap both overflow and configured maximum
		if delay > p.MaxDelay || delay < 0 {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Exhausted reports whether the given attempt count has gone past the
// policy's budget. The budget covers delays for attempts 1..MaxAttempts, so
// a stream still waits out Delay(MaxAttempts) and makes that final retry
// before giving up. A MaxAttempts of 0 means attempts are unlimited.
func (p Policy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts > p.MaxAttempts
}
