// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config defines bounded retry parameters.
type Config struct {
	// MaxAttempts is the total amount of attempts, including the first one.
	MaxAttempts int
	// Delay is multiplied by the number of failed attempts to get the wait before the next one.
	Delay time.Duration
}

// Notify is called after failed attempt which is going to be retried.
type Notify func(err error, attempt int, next time.Duration)

// Option configures Do.
type Option func(*options)

type options struct {
	notify Notify
	timer  backoff.Timer
}

// WithNotify sets callback for failed attempts.
func WithNotify(notify Notify) Option {
	return func(o *options) { o.notify = notify }
}

// WithTimer replaces timer used to wait between attempts.
func WithTimer(timer backoff.Timer) Option {
	return func(o *options) { o.timer = timer }
}

// Linear is a backoff.BackOff with wait growing linearly with attempt number.
type Linear struct {
	Delay       time.Duration
	MaxAttempts int

	attempt   int
	immediate bool
}

var _ backoff.BackOff = (*Linear)(nil)

// NextBackOff returns wait before the next attempt or backoff.Stop if attempts are exhausted.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	if l.attempt >= l.MaxAttempts {
		return backoff.Stop
	}

	if l.immediate {
		l.immediate = false
		return 0
	}

	return l.Delay * time.Duration(l.attempt)
}

// Reset restarts attempts counting.
func (l *Linear) Reset() {
	l.attempt = 0
	l.immediate = false
}

// immediateError marks error to be retried without waiting.
type immediateError struct {
	err error
}

func (e *immediateError) Error() string { return e.err.Error() }

func (e *immediateError) Unwrap() error { return e.err }

// Immediate wraps err so the next attempt starts without delay, still counted against attempts.
func Immediate(err error) error {
	if err == nil {
		return nil
	}

	return &immediateError{err: err}
}

// Permanent wraps err so it is returned without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns permanent error, attempts are exhausted or ctx is done.
// The error of the last attempt is returned unwrapped.
func Do[T any](ctx context.Context, config Config, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		result  T
		attempt int
		policy  = &Linear{Delay: config.Delay, MaxAttempts: max(config.MaxAttempts, 1)}
	)

	operation := func() error {
		attempt++

		value, err := op(ctx, attempt)
		if err != nil {
			var immediate *immediateError
			if errors.As(err, &immediate) {
				policy.immediate = true
				return immediate.err
			}

			return err
		}

		result = value
		return nil
	}

	var notify backoff.Notify
	if o.notify != nil {
		notify = func(err error, next time.Duration) { o.notify(err, attempt, next) }
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(policy, ctx), notify, o.timer)
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
