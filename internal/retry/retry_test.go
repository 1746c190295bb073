// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ccos/internal/apierr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTimer fires immediately and records every wait it was asked for.
type fakeTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.waits = append(f.waits, d)
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func total(waits []time.Duration) time.Duration {
	var sum time.Duration
	for _, w := range waits {
		sum += w
	}
	return sum
}

func TestExhaustionSleepsDoublingDelays(t *testing.T) {
	for _, attempts := range []int{1, 3, 5} {
		timer := newFakeTimer()
		calls := 0
		err := Do(context.Background(), Policy{Attempts: attempts, Initial: time.Second, Timer: timer}, func(context.Context) error {
			calls++
			return apierr.HTTPStatus(503, nil)
		})

		require.Error(t, err)
		assert.Equal(t, 503, apierr.StatusCode(err))
		assert.Equal(t, attempts, calls)
		assert.Len(t, timer.waits, attempts-1)
		// 1 + 2 + ... + 2^(N-2) seconds
		assert.Equal(t, time.Duration(1<<(attempts-1)-1)*time.Second, total(timer.waits), "attempts=%d", attempts)
	}
}

func TestWaitsAreExact(t *testing.T) {
	timer := newFakeTimer()
	_ = Do(context.Background(), Policy{Attempts: 5, Initial: time.Second, Timer: timer}, func(context.Context) error {
		return apierr.Transport(errors.New("reset"))
	})
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, timer.waits)
}

func TestSucceedsAfterTransientFailure(t *testing.T) {
	timer := newFakeTimer()
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Initial: time.Second, Timer: timer}, func(context.Context) error {
		calls++
		if calls == 1 {
			return apierr.HTTPStatus(429, []byte("rate limited"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, timer.waits)
}

func TestNonRetryableReturnsImmediately(t *testing.T) {
	timer := newFakeTimer()
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 5, Initial: time.Second, Timer: timer}, func(context.Context) error {
		calls++
		return apierr.HTTPStatus(401, []byte("bad key"))
	})
	require.Error(t, err)
	assert.Equal(t, 401, apierr.StatusCode(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.waits)
}

func TestStopEndsRetries(t *testing.T) {
	sentinel := errors.New("done")
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Timer: newFakeTimer(), Retryable: func(error) bool { return true }}, func(context.Context) error {
		calls++
		return Stop(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestNotifyReportsAttempts(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), Policy{
		Attempts: 3,
		Initial:  time.Second,
		Timer:    newFakeTimer(),
		Notify: func(attempt int, err error, wait time.Duration) {
			seen = append(seen, attempt)
		},
	}, func(context.Context) error {
		return apierr.HTTPStatus(500, nil)
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestCancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Initial: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return apierr.HTTPStatus(500, nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestMaxCapsEachWait(t *testing.T) {
	timer := newFakeTimer()
	_ = Do(context.Background(), Policy{Attempts: 4, Initial: 500 * time.Millisecond, Max: time.Second, Timer: timer}, func(context.Context) error {
		return apierr.HTTPStatus(502, nil)
	})
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, time.Second}, timer.waits)
}
