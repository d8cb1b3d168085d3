// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/internal/retry"
)

// recordingTimer fires immediately and records requested waits.
type recordingTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(duration time.Duration) {
	t.waits = append(t.waits, duration)
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func (t *recordingTimer) total() (total time.Duration) {
	for _, wait := range t.waits {
		total += wait
	}

	return total
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	errBroadcast := errors.New("broadcast rejected")
	config := retry.Config{MaxAttempts: 3, Delay: time.Second}

	t.Run("succeeds on third attempt", func(t *testing.T) {
		timer := newRecordingTimer()
		var notified []int

		txID, err := retry.Do(ctx, config, func(ctx context.Context, attempt int) (string, error) {
			if attempt < 3 {
				return "", errBroadcast
			}

			return "txid", nil
		}, retry.WithTimer(timer), retry.WithNotify(func(err error, attempt int, next time.Duration) {
			require.ErrorIs(t, err, errBroadcast)
			notified = append(notified, attempt)
		}))
		require.NoError(t, err)
		require.Equal(t, "txid", txID)
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.waits)
		require.Equal(t, 3*time.Second, timer.total())
		require.Equal(t, []int{1, 2}, notified)
	})

	t.Run("exhausted attempts return last error", func(t *testing.T) {
		timer := newRecordingTimer()
		calls := 0

		_, err := retry.Do(ctx, config, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errors.Join(errBroadcast, errors.New(time.Duration(attempt).String()))
		}, retry.WithTimer(timer))
		require.ErrorIs(t, err, errBroadcast)
		require.ErrorContains(t, err, "3ns")
		require.Equal(t, 3, calls)
		require.Len(t, timer.waits, 2)
	})

	t.Run("permanent error stops retries", func(t *testing.T) {
		timer := newRecordingTimer()
		calls := 0

		_, err := retry.Do(ctx, config, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, retry.Permanent(errBroadcast)
		}, retry.WithTimer(timer))
		require.ErrorIs(t, err, errBroadcast)
		require.Equal(t, 1, calls)
		require.Empty(t, timer.waits)
	})

	t.Run("immediate retry skips wait", func(t *testing.T) {
		timer := newRecordingTimer()

		value, err := retry.Do(ctx, config, func(ctx context.Context, attempt int) (int, error) {
			switch attempt {
			case 1:
				return 0, retry.Immediate(errBroadcast)
			case 2:
				return 0, errBroadcast
			default:
				return attempt, nil
			}
		}, retry.WithTimer(timer))
		require.NoError(t, err)
		require.Equal(t, 3, value)
		require.Equal(t, []time.Duration{0, 2 * time.Second}, timer.waits)
	})

	t.Run("single attempt", func(t *testing.T) {
		calls := 0
		_, err := retry.Do(ctx, retry.Config{}, func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, errBroadcast
		})
		require.ErrorIs(t, err, errBroadcast)
		require.Equal(t, 1, calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := retry.Do(ctx, retry.Config{MaxAttempts: 5, Delay: time.Hour}, func(ctx context.Context, attempt int) (int, error) {
			return 0, errBroadcast
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestLinear(t *testing.T) {
	l := &retry.Linear{Delay: 10 * time.Millisecond, MaxAttempts: 3}
	require.Equal(t, 10*time.Millisecond, l.NextBackOff())
	require.Equal(t, 20*time.Millisecond, l.NextBackOff())
	require.EqualValues(t, -1, l.NextBackOff())

	l.Reset()
	require.Equal(t, 10*time.Millisecond, l.NextBackOff())
}
