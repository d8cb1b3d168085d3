// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/explorer"
)

// ErrConfirmationTimeout defines that transaction was not confirmed in time.
var ErrConfirmationTimeout = errors.New("confirmation timeout")

const (
	// DefaultTimeout defines default overall confirmation wait.
	DefaultTimeout = 10 * time.Minute
	// DefaultPollInterval defines default interval between status polls.
	DefaultPollInterval = 30 * time.Second
)

// Config defines confirmation wait parameters.
type Config struct {
	// Confirmations is the required amount of confirmations, zero disables waiting.
	Confirmations int64
	Timeout       time.Duration
	PollInterval  time.Duration
}

// Waiter polls transaction status until it reaches required confirmations.
type Waiter struct {
	client explorer.Client
	config Config
	log    logrus.FieldLogger
}

// NewWaiter is a constructor for Waiter.
func NewWaiter(client explorer.Client, config Config, log logrus.FieldLogger) *Waiter {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	return &Waiter{client: client, config: config, log: log}
}

// Wait blocks until txID has required confirmations.
// Returns nil status if waiting is disabled.
// Failed polls are logged and retried, transaction absent until the timeout
// is reported as ErrConfirmationTimeout joined with explorer.ErrTxNotFound.
func (w *Waiter) Wait(ctx context.Context, txID string) (*explorer.TxStatus, error) {
	if w.config.Confirmations <= 0 {
		return nil, nil
	}

	log := w.log.WithFields(logrus.Fields{"txid": txID, "confirmations": w.config.Confirmations})
	log.Info("waiting for transaction confirmations")

	waitCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := w.client.GetTxStatus(waitCtx, txID)
		switch {
		case err == nil:
			lastErr = nil
			if confirmations(status) >= w.config.Confirmations {
				log.WithField("height", status.BlockHeight).Info("transaction confirmed")
				return status, nil
			}
		case errors.Is(err, explorer.ErrTxNotFound):
			lastErr = err
			log.Warn("transaction not found")
		default:
			lastErr = err
			log.WithError(err).Warn("could not get transaction status")
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			timeoutErr := fmt.Errorf("%w: %s not confirmed in %s", ErrConfirmationTimeout, txID, w.config.Timeout)
			if errors.Is(lastErr, explorer.ErrTxNotFound) {
				return nil, errors.Join(timeoutErr, lastErr)
			}

			return nil, timeoutErr
		case <-ticker.C:
		}
	}
}

// confirmations returns confirmations of status, confirmed status without depth counts as one.
func confirmations(status *explorer.TxStatus) int64 {
	if status == nil || !status.Confirmed {
		return 0
	}

	return max(status.Confirmations, 1)
}
