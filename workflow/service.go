// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
	"github.com/BoostyLabs/brc20/bitcoin/wallet"
	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/confirm"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/internal/metrics"
	"github.com/BoostyLabs/brc20/internal/retry"
	"github.com/BoostyLabs/brc20/journal"
	"github.com/BoostyLabs/brc20/pending"
)

// Workflow names used in metrics.
const (
	workflowMint            = "mint"
	workflowTransferPrepare = "transfer_prepare"
	workflowTransferSend    = "transfer_send"
)

// ErrDryRunSend defines that send step could not be simulated.
var ErrDryRunSend = errors.New("send step does not support dry run")

// Option configures Service.
type Option func(*Service)

// WithRetryOptions passes options to every retried operation.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(s *Service) { s.retryOpts = append(s.retryOpts, opts...) }
}

// WithClock replaces time source of records and summaries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs inscription batches. Items are processed strictly one after another,
// every item spends utxos of the same wallet.
type Service struct {
	config  *config.Config
	client  explorer.Client
	repo    pending.Repository
	journal *journal.Journal
	log     logrus.FieldLogger

	builder *txbuilder.TxBuilder
	sender  *Broadcaster
	waiter  *confirm.Waiter

	now       func() time.Time
	retryOpts []retry.Option

	// spent holds outpoints spent by transactions broadcasted during the run.
	spent map[string]struct{}
}

// New is a constructor for Service. Repository may be nil for mint only usage.
func New(cfg *config.Config, client explorer.Client, repo pending.Repository, journal *journal.Journal,
	log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		config:  cfg,
		client:  client,
		repo:    repo,
		journal: journal,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.builder = txbuilder.NewTxBuilder(cfg.Params).WithDustLimit(cfg.Inscription.DustLimit)
	s.sender = NewBroadcaster(client, retry.Config{MaxAttempts: cfg.Retry.SendMaxAttempts, Delay: cfg.Retry.SendDelay},
		log, s.retryOpts...)
	s.waiter = confirm.NewWaiter(client, confirm.Config{
		Confirmations: cfg.Transfer.WaitConfirms,
		Timeout:       cfg.Transfer.WaitTimeout,
		PollInterval:  cfg.Transfer.WaitPollInterval,
	}, log)

	return s
}

// inscriberFor returns inscriber with reveal delay of the batch.
func (s *Service) inscriberFor(revealDelay time.Duration) *Inscriber {
	retryConfig := retry.Config{MaxAttempts: s.config.Retry.MaxAttempts, Delay: s.config.Retry.Delay}

	return NewInscriber(s.config.Params, s.builder, s.client,
		NewBroadcaster(s.client, retryConfig, s.log, s.retryOpts...),
		InscriberConfig{
			ContentType:   s.config.Inscription.ContentType,
			OutputValue:   s.config.Inscription.RevealOutputValue,
			CommitFeeRate: s.config.Fees.Commit,
			RevealFeeRate: s.config.Fees.Reveal,
			Backoff:       s.config.Inscription.Backoff,
			Retry:         retryConfig,
			RevealDelay:   revealDelay,
			MinUTXOValue:  s.config.Inscription.MinUTXOValue,
			DryRun:        s.config.DryRun,
		}, s.log, s.retryOpts...)
}

// MainWallet returns wallet derived from the configured mnemonic.
// Dry run without mnemonic uses random wallet suitable for estimation only.
func MainWallet(cfg *config.Config, log logrus.FieldLogger) (*wallet.Wallet, error) {
	if cfg.Mnemonic != "" {
		return wallet.FromMnemonic(cfg.Mnemonic, cfg.Params)
	}

	if !cfg.DryRun {
		return nil, fmt.Errorf("%w: %s is required", config.ErrInvalidConfig, config.KeyMnemonic)
	}

	log.Warn("dry run without mnemonic, random wallet is used for estimation only")

	return wallet.Random(cfg.Params)
}

// batch tracks items of a run and persists its summary after every item.
type batch[T any] struct {
	service *Service
	name    string
	summary journal.Summary[T]
}

func newBatch[T any](s *Service, name string, results T) *batch[T] {
	return &batch[T]{
		service: s,
		name:    name,
		summary: journal.Summary[T]{
			Run:     journal.NewRun(s.now()),
			DryRun:  s.config.DryRun,
			Results: results,
		},
	}
}

// done accounts finished item, persists summary and returns error aborting the batch in fail fast mode.
func (b *batch[T]) done(workflow string, err error) error {
	result := metrics.Result(err)
	if err == nil && b.service.config.DryRun {
		result = metrics.ResultSkipped
	}
	metrics.ItemsTotal.WithLabelValues(workflow, result).Inc()

	if err != nil {
		b.summary.Failed++
	} else {
		b.summary.Succeeded++
	}

	if persistErr := b.persist(); persistErr != nil {
		return persistErr
	}

	if err != nil && b.service.config.FailFast {
		return err
	}

	return nil
}

// persist writes summary snapshot.
func (b *batch[T]) persist() error {
	b.summary.FinishedAt = b.service.now()

	path, err := b.service.journal.Summary(b.name, b.summary)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	b.service.log.WithField("path", path).Debug("summary updated")

	return nil
}

// pause waits item delay between broadcasting items.
func (s *Service) pause(ctx context.Context) error {
	if s.config.DryRun {
		return nil
	}

	return sleep(ctx, s.config.ItemDelay)
}

// logJournalErr logs failed journal append, journals are audit only and never fail the item.
func (s *Service) logJournalErr(err error) {
	if err != nil {
		s.log.WithError(err).Error("could not append journal")
	}
}
