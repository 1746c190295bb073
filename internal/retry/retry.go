// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package retry runs operations under a bounded exponential backoff: a fixed
// number of attempts, a delay that starts at Initial and doubles, no jitter.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ccos/internal/apierr"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Initial is the wait after the first failure. It doubles after each further failure.
	Initial time.Duration
	// Max caps a single wait. Zero means no cap.
	Max time.Duration

	// Retryable classifies failures. Defaults to apierr.IsRetryable.
	Retryable func(error) bool
	// Notify is called before each wait with the attempt that just failed.
	Notify func(attempt int, err error, wait time.Duration)
	// Timer replaces the wall clock, for tests.
	Timer backoff.Timer
}

// Default is three attempts with 1s and 2s waits.
func Default() Policy {
	return Policy{Attempts: 3, Initial: time.Second}
}

// Stop marks err as final so that Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maxWait := p.Max
	if maxWait <= 0 {
		maxWait = 24 * time.Hour
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = maxWait
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable error, the context
// is cancelled, or the attempts are exhausted. On exhaustion the last error is
// returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = apierr.IsRetryable
	}

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if p.Notify != nil {
			p.Notify(attempt, err, wait)
		}
	}

	return backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), notify, p.Timer)
}
