// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/journal"
)

// MintSummary describes mint batch.
type MintSummary = journal.Summary[[]*Inscription]

// Mint inscribes configured amount of mint payloads one after another.
// Failed items are journaled as index,reason.
func (s *Service) Mint(ctx context.Context, w Wallet) (*MintSummary, error) {
	if err := s.config.ValidateMint(); err != nil {
		return nil, err
	}

	name := "mint-summary.json"
	if s.config.DryRun {
		name = "mint-dryrun.json"
	}

	var (
		b         = newBatch(s, name, make([]*Inscription, 0, s.config.Mint.Count))
		inscriber = s.inscriberFor(s.config.Mint.RevealDelay)
		payload   = brc20.NewMint(s.config.Inscription.Tick, s.config.Mint.Amt)
	)

	s.log.WithFields(logrus.Fields{
		"address":        w.Address(),
		"receiveAddress": s.config.Mint.ReceiveAddress,
		"count":          s.config.Mint.Count,
		"dryRun":         s.config.DryRun,
	}).Info("mint started")

	for idx := 0; idx < s.config.Mint.Count; idx++ {
		label := strconv.Itoa(idx + 1)

		inscription, err := inscriber.Inscribe(ctx, InscribeParams{
			Label:          label,
			Wallet:         w,
			Payload:        payload,
			ReceiveAddress: s.config.Mint.ReceiveAddress,
		})
		if err != nil {
			s.log.WithError(err).WithField("label", label).Error("mint failed")
			s.logJournalErr(s.journal.Failure(journal.MintFailed, label, err.Error()))
		} else {
			b.summary.Results = append(b.summary.Results, inscription)
			if !s.config.DryRun {
				s.logJournalErr(s.journal.Success(journal.MintSuccess, inscription))
			}
		}

		if err = b.done(workflowMint, err); err != nil {
			return &b.summary, fmt.Errorf("mint %s: %w", label, err)
		}

		if idx+1 < s.config.Mint.Count {
			if err = s.pause(ctx); err != nil {
				return &b.summary, err
			}
		}
	}

	s.log.WithFields(logrus.Fields{"succeeded": b.summary.Succeeded, "failed": b.summary.Failed}).Info("mint finished")

	return &b.summary, nil
}
