package scheduler

import (
	"errors"
	"fmt"
	"time"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The task is dropped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// DeferError asks the runner to run the task again at Until without
// counting the attempt as a failure.
type DeferError struct {
	Until time.Time
}

func (e *DeferError) Error() string {
	return fmt.Sprintf("task deferred until %s", e.Until.Format(time.RFC3339))
}

// Defer builds a DeferError.
func Defer(until time.Time) error {
	return &DeferError{Until: until}
}

// RetryPolicy computes exponential backoff for failed tasks.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns a policy with maxDelay at 16x base.
func DefaultRetryPolicy(maxAttempts int, base time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if base <= 0 {
		base = 2 * time.Second
	}
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: base * 16}
}

// Next returns the delay before retrying a task that has failed attempts
// times, and false when the task should be dropped.
func (p RetryPolicy) Next(attempts int, err error) (time.Duration, bool) {
	if IsPermanent(err) || attempts >= p.MaxAttempts {
		return 0, false
	}
	return p.Backoff(attempts), true
}

// Backoff is base * 2^(attempts-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts <= 1 {
		return p.BaseDelay
	}
	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}
