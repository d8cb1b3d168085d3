// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/wallet"
	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/journal"
	"github.com/BoostyLabs/brc20/pending"
)

// sourceSeparator separates mnemonic and amount in sources file line.
const sourceSeparator = "----"

// ErrInvalidSource defines malformed sources file entry.
var ErrInvalidSource = errors.New("invalid collect source")

// Source is a wallet collected to the target address.
type Source struct {
	// Index is a position among sources, used to re-derive record owner.
	Index    int
	Mnemonic string
	// Amt is empty when the line has no amount.
	Amt string
}

// LoadSources reads collect sources file. Every non empty line which is not a
// comment is "mnemonic" or "mnemonic----amt".
func LoadSources(path string) (_ []Source, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources: %w", err)
	}
	defer func() { err = errors.Join(err, file.Close()) }()

	var sources []Source
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		mnemonic, amt, _ := strings.Cut(line, sourceSeparator)
		mnemonic = strings.Join(strings.Fields(mnemonic), " ")
		if mnemonic == "" {
			return nil, fmt.Errorf("%w: line %d: empty mnemonic", ErrInvalidSource, lineNum)
		}

		sources = append(sources, Source{
			Index:    len(sources),
			Mnemonic: mnemonic,
			Amt:      strings.TrimSpace(amt),
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return sources, nil
}

// sourceWallet derives the wallet of the collect record and checks it owns the record.
func sourceWallet(sources []Source, record pending.Record, cfg *config.Config) (Wallet, error) {
	if record.SourceIndex == nil || *record.SourceIndex < 0 || *record.SourceIndex >= len(sources) {
		return nil, fmt.Errorf("%w: no source for record %s", ErrInvalidSource, record.OrdinalID)
	}

	w, err := wallet.FromMnemonic(sources[*record.SourceIndex].Mnemonic, cfg.Params)
	if err != nil {
		return nil, err
	}

	owner := record.SourceAddress
	if owner == "" {
		owner = record.Owner
	}
	if w.Address() != owner {
		return nil, fmt.Errorf("%w: source %d is %s, record owner is %s", ErrWalletMismatch, *record.SourceIndex, w.Address(), owner)
	}

	return w, nil
}

// collect inscribes transfer in every source wallet for the target address.
func (s *Service) collect(ctx context.Context, b *batch[*TransferResults]) error {
	sources, err := LoadSources(s.config.Transfer.CollectSourceFile)
	if err != nil {
		return err
	}

	for idx := range sources {
		if sources[idx].Amt == "" {
			sources[idx].Amt = s.config.Transfer.CollectDefaultAmt
		}
		if sources[idx].Amt == "" {
			return fmt.Errorf("%w: %w: source %d", config.ErrInvalidConfig, ErrMissingAmount, idx+1)
		}
		if err = brc20.ValidateAmount(sources[idx].Amt); err != nil {
			return fmt.Errorf("%w: source %d: %w", config.ErrInvalidConfig, idx+1, err)
		}
	}

	if len(sources) == 0 {
		s.log.Warn("no collect sources")
		return b.persist()
	}

	target := s.config.Transfer.CollectTargetAddress
	inscriber := s.inscriberFor(s.config.Transfer.RevealDelay)
	for idx, source := range sources {
		label := fmt.Sprintf("collect-%d", source.Index+1)

		w, result, err := s.prepareSource(ctx, inscriber, label, source, target)
		if err != nil {
			var address string
			if w != nil {
				address = w.Address()
			}

			s.log.WithError(err).WithFields(logrus.Fields{"label": label, "source": address}).Error("collect prepare failed")
			s.logJournalErr(s.journal.Failure(journal.TransferFailed, label, address, err.Error()))
		} else {
			b.summary.Results.Prepares = append(b.summary.Results.Prepares, *result)
		}

		if err = b.done(workflowTransferPrepare, err); err != nil {
			return fmt.Errorf("collect %s: %w", label, err)
		}

		if result != nil && result.Record != nil && s.config.Transfer.Step == config.StepAuto {
			if err = s.sendOne(ctx, b, *result.Record, staticWallet(w), nil); err != nil {
				return fmt.Errorf("send %s: %w", label, err)
			}
		}

		if idx+1 < len(sources) {
			if err = s.pause(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// prepareSource inscribes transfer of the source wallet funded by its largest utxo.
func (s *Service) prepareSource(ctx context.Context, inscriber *Inscriber, label string, source Source,
	target string) (*wallet.Wallet, *PrepareResult, error) {
	w, err := wallet.FromMnemonic(source.Mnemonic, s.config.Params)
	if err != nil {
		return nil, nil, err
	}

	var funding []bitcoin.UTXO
	if !s.config.DryRun {
		utxos, err := explorer.GetUTXOs(ctx, s.client, w.Address())
		if err != nil {
			return w, nil, fmt.Errorf("get utxos: %w", err)
		}

		packed := explorer.PackUTXOs(utxos, s.config.Inscription.MinUTXOValue)
		if len(packed) == 0 {
			return w, nil, fmt.Errorf("%w: %s", ErrNoUTXO, w.Address())
		}
		funding = packed[:1]
	}

	index := source.Index
	result, err := s.prepare(ctx, inscriber, prepareParams{
		Label:       label,
		Wallet:      w,
		Address:     target,
		Amt:         source.Amt,
		UTXOs:       funding,
		Mode:        pending.ModeCollect,
		SourceIndex: &index,
	})

	return w, result, err
}
