// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package confirm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/confirm"
	"github.com/BoostyLabs/brc20/explorer"
)

const testTxID = "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"

func statusSequence(statuses ...func() (*explorer.TxStatus, error)) (*explorer.Mock, *int) {
	var calls int
	return &explorer.Mock{
		GetTxStatusFn: func(ctx context.Context, txID string) (*explorer.TxStatus, error) {
			idx := min(calls, len(statuses)-1)
			calls++
			return statuses[idx]()
		},
	}, &calls
}

func unconfirmed() (*explorer.TxStatus, error) { return &explorer.TxStatus{}, nil }

func notFound() (*explorer.TxStatus, error) { return nil, explorer.ErrTxNotFound }

func confirmedWith(n int64) func() (*explorer.TxStatus, error) {
	return func() (*explorer.TxStatus, error) {
		return &explorer.TxStatus{Confirmed: true, Confirmations: n, BlockHeight: 840000}, nil
	}
}

func TestWaiter(t *testing.T) {
	ctx := context.Background()
	fast := confirm.Config{Confirmations: 1, Timeout: time.Second, PollInterval: time.Millisecond}

	t.Run("disabled", func(t *testing.T) {
		client, calls := statusSequence(unconfirmed)
		log, _ := test.NewNullLogger()

		status, err := confirm.NewWaiter(client, confirm.Config{}, log).Wait(ctx, testTxID)
		require.NoError(t, err)
		require.Nil(t, status)
		require.Zero(t, *calls)
	})

	t.Run("confirmed after polls", func(t *testing.T) {
		failed := func() (*explorer.TxStatus, error) { return nil, errors.New("502 bad gateway") }
		client, calls := statusSequence(notFound, failed, unconfirmed, confirmedWith(0))
		log, hook := test.NewNullLogger()

		status, err := confirm.NewWaiter(client, fast, log).Wait(ctx, testTxID)
		require.NoError(t, err)
		require.True(t, status.Confirmed)
		require.Equal(t, 4, *calls)
		require.Len(t, hook.AllEntries(), 4)
	})

	t.Run("waits for depth", func(t *testing.T) {
		client, calls := statusSequence(confirmedWith(1), confirmedWith(2), confirmedWith(3))
		log, _ := test.NewNullLogger()

		config := fast
		config.Confirmations = 3

		status, err := confirm.NewWaiter(client, config, log).Wait(ctx, testTxID)
		require.NoError(t, err)
		require.EqualValues(t, 3, status.Confirmations)
		require.Equal(t, 3, *calls)
	})

	t.Run("timeout", func(t *testing.T) {
		client, _ := statusSequence(unconfirmed)
		log, _ := test.NewNullLogger()

		config := fast
		config.Timeout = 20 * time.Millisecond

		_, err := confirm.NewWaiter(client, config, log).Wait(ctx, testTxID)
		require.ErrorIs(t, err, confirm.ErrConfirmationTimeout)
		require.NotErrorIs(t, err, explorer.ErrTxNotFound)
	})

	t.Run("dropped", func(t *testing.T) {
		client, _ := statusSequence(notFound)
		log, _ := test.NewNullLogger()

		config := fast
		config.Timeout = 20 * time.Millisecond

		_, err := confirm.NewWaiter(client, config, log).Wait(ctx, testTxID)
		require.ErrorIs(t, err, confirm.ErrConfirmationTimeout)
		require.ErrorIs(t, err, explorer.ErrTxNotFound)
	})

	t.Run("canceled", func(t *testing.T) {
		client, _ := statusSequence(unconfirmed)
		log, _ := test.NewNullLogger()

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := confirm.NewWaiter(client, fast, log).Wait(canceled, testTxID)
		require.ErrorIs(t, err, context.Canceled)
	})
}
