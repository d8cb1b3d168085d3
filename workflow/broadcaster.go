// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/internal/metrics"
	"github.com/BoostyLabs/brc20/internal/retry"
)

// Transaction kinds used in logs and metrics.
const (
	KindCommit = "commit"
	KindReveal = "reveal"
	KindSend   = "send"
)

// Broadcaster pushes signed transactions to the network with bounded linear backoff.
// Rebroadcast of the same transaction is harmless, its id does not change.
type Broadcaster struct {
	client explorer.Client
	config retry.Config
	log    logrus.FieldLogger
	opts   []retry.Option
}

// NewBroadcaster is a constructor for Broadcaster.
func NewBroadcaster(client explorer.Client, config retry.Config, log logrus.FieldLogger, opts ...retry.Option) *Broadcaster {
	return &Broadcaster{client: client, config: config, log: log, opts: opts}
}

// Broadcast submits txHex and returns transaction id.
// The error of the last attempt, carrying backend detail, is returned when attempts are exhausted.
func (b *Broadcaster) Broadcast(ctx context.Context, kind, txHex string) (string, error) {
	defer metrics.ObservePhase("broadcast_"+kind, time.Now())

	log := b.log.WithField("kind", kind)

	return retry.Do(ctx, b.config, func(ctx context.Context, attempt int) (string, error) {
		txID, err := b.client.Broadcast(ctx, txHex)
		metrics.BroadcastAttempts.WithLabelValues(kind, metrics.Result(err)).Inc()
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"attempt":     attempt,
				"maxAttempts": b.config.MaxAttempts,
			}).Error("broadcast failed")
			return "", err
		}

		log.WithFields(logrus.Fields{"txid": txID, "attempt": attempt}).Info("transaction broadcasted")
		return txID, nil
	}, b.opts...)
}
