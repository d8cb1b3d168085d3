// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/journal"
	"github.com/BoostyLabs/brc20/pending"
)

var (
	// ErrMissingAmount defines transfer without amount.
	ErrMissingAmount = errors.New("transfer amount is not set")
	// ErrWalletMismatch defines that record is owned by another wallet.
	ErrWalletMismatch = errors.New("record is owned by another wallet")
	// ErrNoWallet defines that wallet required by the step is not configured.
	ErrNoWallet = errors.New("wallet is not configured")
)

// PrepareResult describes inscribed transfer.
type PrepareResult struct {
	Label         string          `json:"label"`
	Address       string          `json:"address"`
	Amt           string          `json:"amt"`
	SourceAddress string          `json:"sourceAddress,omitempty"`
	Inscription   *Inscription    `json:"inscription"`
	Record        *pending.Record `json:"record,omitempty"`
}

// SendResult describes transfer inscription sent to destination.
type SendResult struct {
	OrdinalID string   `json:"ordinalId"`
	Label     string   `json:"label,omitempty"`
	Address   string   `json:"address"`
	Amt       string   `json:"amt"`
	SendTxID  string   `json:"sendTxId"`
	SendFee   int64    `json:"sendFee"`
	VSize     int64    `json:"vsize"`
	Change    int64    `json:"change"`
	Inputs    []string `json:"inputs"`
}

// sendEntry is a send journal line.
type sendEntry struct {
	OrdinalID string `json:"ordinalId"`
	SendTxID  string `json:"sendTxId"`
	Fee       int64  `json:"fee"`
	Address   string `json:"address"`
	Amt       string `json:"amt"`
}

// TransferResults describes transfer batch.
type TransferResults struct {
	Prepares []PrepareResult `json:"prepares,omitempty"`
	Sends    []SendResult    `json:"sends,omitempty"`
}

// TransferSummary describes transfer batch run.
type TransferSummary = journal.Summary[*TransferResults]

// resolver returns wallet owning the record.
type resolver func(record pending.Record) (Wallet, error)

// Transfer runs transfer batch of configured mode and step.
// Main wallet may be nil in collect mode.
func (s *Service) Transfer(ctx context.Context, main Wallet) (*TransferSummary, error) {
	if err := s.config.ValidateTransfer(); err != nil {
		return nil, err
	}

	step, mode := s.config.Transfer.Step, s.config.Transfer.Mode
	if step == config.StepSend && s.config.DryRun {
		return nil, ErrDryRunSend
	}

	records, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending records: %w", err)
	}

	suffix := "summary"
	if s.config.DryRun {
		suffix = "dryrun"
	}
	name := fmt.Sprintf("transfer-%s-%s.json", step, suffix)
	if mode == config.TransferModeCollect && step != config.StepSend {
		name = fmt.Sprintf("transfer-collect-%s-%s.json", step, suffix)
	}

	b := newBatch(s, name, &TransferResults{})

	s.log.WithFields(logrus.Fields{
		"mode":    mode,
		"step":    step,
		"pending": len(records),
		"dryRun":  s.config.DryRun,
	}).Info("transfer started")

	switch {
	case step == config.StepSend:
		err = s.sendPending(ctx, b, records, s.recordWallet(main))
	case mode == config.TransferModeCollect:
		err = s.collect(ctx, b)
	default:
		err = s.fanout(ctx, b, main)
	}

	s.log.WithFields(logrus.Fields{"succeeded": b.summary.Succeeded, "failed": b.summary.Failed}).Info("transfer finished")

	return &b.summary, err
}

// NormalizeTransfers drops items without address and applies amount override.
// Item without amount is a configuration error.
func NormalizeTransfers(items []config.TransferItem, overrideAmt string, log logrus.FieldLogger) ([]config.TransferItem, error) {
	normalized := make([]config.TransferItem, 0, len(items))
	for idx, item := range items {
		if item.Address == "" {
			log.WithField("index", idx).Warn("skipping transfer without address")
			continue
		}

		if overrideAmt != "" {
			item.Amt = overrideAmt
		}
		if item.Amt == "" {
			return nil, fmt.Errorf("%w: %w: %s", config.ErrInvalidConfig, ErrMissingAmount, item.Address)
		}
		if err := brc20.ValidateAmount(item.Amt); err != nil {
			return nil, fmt.Errorf("%w: transfer to %s: %w", config.ErrInvalidConfig, item.Address, err)
		}

		normalized = append(normalized, item)
	}

	return normalized, nil
}

// fanout inscribes transfer for every destination, each funded by its own wallet utxo.
func (s *Service) fanout(ctx context.Context, b *batch[*TransferResults], w Wallet) error {
	if w == nil {
		return ErrNoWallet
	}

	items, err := NormalizeTransfers(s.config.Transfer.Items, s.config.Transfer.Amt, s.log)
	if err != nil {
		return err
	}

	if s.config.Transfer.SkipCompleted {
		completed, err := s.journal.SucceededAddresses(journal.TransferSuccess)
		if err != nil {
			return fmt.Errorf("read completed transfers: %w", err)
		}

		items = slices.DeleteFunc(items, func(item config.TransferItem) bool {
			_, ok := completed[item.Address]
			if ok {
				s.log.WithField("address", item.Address).Info("skipping completed transfer")
			}
			return ok
		})
	}

	if len(items) == 0 {
		s.log.Warn("no transfers to inscribe")
		return b.persist()
	}

	var utxos []bitcoin.UTXO
	if !s.config.DryRun {
		fetched, err := explorer.GetUTXOs(ctx, s.client, w.Address())
		if err != nil {
			return fmt.Errorf("get utxos: %w", err)
		}

		utxos = explorer.PackUTXOs(fetched, s.config.Inscription.MinUTXOValue)
	}

	inscriber := s.inscriberFor(s.config.Transfer.RevealDelay)
	for idx, item := range items {
		label := fmt.Sprintf("fanout-%d", idx+1)

		var funding []bitcoin.UTXO
		if !s.config.DryRun && len(utxos) > 0 {
			funding, utxos = utxos[:1], utxos[1:]
		}

		var result *PrepareResult
		if !s.config.DryRun && len(funding) == 0 {
			err = fmt.Errorf("%w: %s", ErrNoUTXO, w.Address())
		} else {
			result, err = s.prepare(ctx, inscriber, prepareParams{
				Label:   label,
				Wallet:  w,
				Address: item.Address,
				Amt:     item.Amt,
				UTXOs:   funding,
				Mode:    pending.ModeFanout,
			})
		}
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"label": label, "address": item.Address}).Error("transfer prepare failed")
			s.logJournalErr(s.journal.Failure(journal.TransferFailed, item.Address, err.Error()))
		} else {
			b.summary.Results.Prepares = append(b.summary.Results.Prepares, *result)
		}

		if err = b.done(workflowTransferPrepare, err); err != nil {
			return fmt.Errorf("transfer %s: %w", label, err)
		}

		if result != nil && result.Record != nil && s.config.Transfer.Step == config.StepAuto {
			if err = s.sendOne(ctx, b, *result.Record, staticWallet(w), utxos); err != nil {
				return fmt.Errorf("send %s: %w", label, err)
			}
		}

		if idx+1 < len(items) {
			if err = s.pause(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// prepareParams describes single transfer inscription.
type prepareParams struct {
	Label       string
	Wallet      Wallet
	Address     string
	Amt         string
	UTXOs       []bitcoin.UTXO
	Mode        pending.Mode
	SourceIndex *int
}

// prepare inscribes transfer to the wallet itself and stores prepared record.
func (s *Service) prepare(ctx context.Context, inscriber *Inscriber, params prepareParams) (*PrepareResult, error) {
	inscription, err := inscriber.Inscribe(ctx, InscribeParams{
		Label:   params.Label,
		Wallet:  params.Wallet,
		Payload: brc20.NewTransfer(s.config.Inscription.Tick, params.Amt),
		UTXOs:   params.UTXOs,
	})
	if err != nil {
		return nil, err
	}

	result := &PrepareResult{
		Label:       params.Label,
		Address:     params.Address,
		Amt:         params.Amt,
		Inscription: inscription,
	}
	if params.Mode == pending.ModeCollect {
		result.SourceAddress = params.Wallet.Address()
	}

	if s.config.DryRun {
		return result, nil
	}
	s.markSpent(inscription.Inputs...)

	record := pending.NewPrepared(inscription.RevealTxID, txbuilder.RevealInscriptionOutput, s.now())
	record.Label = params.Label
	record.Tick = s.config.Inscription.Tick
	record.Amt = params.Amt
	record.Address = params.Address
	record.Owner = params.Wallet.Address()
	record.CommitTxID = inscription.CommitTxID
	record.CommitAmount = inscription.CommitAmount
	record.RevealFee = inscription.RevealFee
	record.ChangeVout = inscription.ChangeVout
	record.ChangeAmount = inscription.ChangeAmount
	record.ChangeAddress = inscription.ChangeAddress
	record.OutputValue = s.config.Inscription.RevealOutputValue
	record.Mode = params.Mode
	record.SourceIndex = params.SourceIndex
	record.SourceAddress = result.SourceAddress

	s.logJournalErr(s.journal.Success(journal.TransferSuccess, record))

	if err = s.repo.Upsert(ctx, record); err != nil {
		s.log.WithError(err).WithField("ordinalId", record.OrdinalID).Error("inscribed transfer is not stored, see transfer success journal")
		return nil, fmt.Errorf("store pending record: %w", err)
	}

	result.Record = &record

	s.log.WithFields(logrus.Fields{
		"label":     params.Label,
		"ordinalId": record.OrdinalID,
		"owner":     record.Owner,
	}).Info("transfer prepared")

	return result, nil
}

// sendPending sends every prepared record.
func (s *Service) sendPending(ctx context.Context, b *batch[*TransferResults], records []pending.Record, resolve resolver) error {
	if len(records) == 0 {
		s.log.Warn("no pending transfers, run prepare or auto step first")
		return b.persist()
	}

	for idx, record := range records {
		if err := s.sendOne(ctx, b, record, resolve, nil); err != nil {
			return fmt.Errorf("send %s: %w", record.OrdinalID, err)
		}

		if idx+1 < len(records) {
			if err := s.pause(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// sendOne sends prepared record and updates the store.
// Failed send keeps the record prepared, returned error means the batch has to stop.
func (s *Service) sendOne(ctx context.Context, b *batch[*TransferResults], record pending.Record, resolve resolver, reserved []bitcoin.UTXO) error {
	log := s.log.WithFields(logrus.Fields{"ordinalId": record.OrdinalID, "label": record.Label, "address": record.Address})

	result, err := func() (*SendResult, error) {
		if record.Status != pending.StatusPrepared {
			return nil, fmt.Errorf("%w: record is %s", pending.ErrInvalidTransition, record.Status)
		}

		w, err := resolve(record)
		if err != nil {
			return nil, err
		}

		return s.send(ctx, w, record, reserved)
	}()
	if err != nil {
		log.WithError(err).Error("transfer send failed")
		s.logJournalErr(s.journal.Failure(journal.TransferFailed, record.Address, err.Error()))

		failed, transitionErr := pending.Transition(record, pending.Event{Kind: pending.EventSendFailed, Err: err, At: s.now()})
		if transitionErr == nil {
			if storeErr := s.repo.Upsert(ctx, failed); storeErr != nil {
				return fmt.Errorf("store pending record: %w", storeErr)
			}
		}

		return b.done(workflowTransferSend, err)
	}

	sent, err := pending.Transition(record, pending.Event{
		Kind:     pending.EventSendSucceeded,
		SendTxID: result.SendTxID,
		SendFee:  result.SendFee,
		At:       s.now(),
	})
	if err != nil {
		return err
	}

	if err = s.repo.Remove(ctx, sent.OrdinalID); err != nil {
		return fmt.Errorf("remove pending record: %w", err)
	}

	s.logJournalErr(s.journal.Success(journal.TransferSend, sendEntry{
		OrdinalID: sent.OrdinalID,
		SendTxID:  sent.SendTxID,
		Fee:       sent.SendFee,
		Address:   sent.Address,
		Amt:       sent.Amt,
	}))

	b.summary.Results.Sends = append(b.summary.Results.Sends, *result)
	log.WithField("sendTxid", result.SendTxID).Info("transfer sent")

	return b.done(workflowTransferSend, nil)
}

// send waits for reveal confirmations, builds and broadcasts send transaction.
// Reserved utxos and outputs spent during the run are not used for funding.
func (s *Service) send(ctx context.Context, w Wallet, record pending.Record, reserved []bitcoin.UTXO) (*SendResult, error) {
	if _, err := s.waiter.Wait(ctx, record.RevealTxID); err != nil {
		return nil, err
	}

	if record.OutputValue == 0 {
		record.OutputValue = s.config.Inscription.RevealOutputValue
	}
	inscription := record.InscriptionUTXO(w.PkScript())
	inscription.Address = w.Address()

	walletUTXOs, err := explorer.GetUTXOs(ctx, s.client, w.Address())
	if err != nil {
		s.log.WithError(err).WithField("address", w.Address()).Warn("could not get funding utxos")
	}

	candidates := txbuilder.SendFundingCandidates(
		explorer.PackUTXOs(walletUTXOs, s.config.Inscription.MinUTXOValue),
		inscription,
		record.ChangeUTXO(w.PkScript()),
		s.config.Inscription.DustLimit,
	)
	candidates = slices.DeleteFunc(candidates, func(utxo bitcoin.UTXO) bool {
		if s.isSpent(utxo.Outpoint()) {
			return true
		}

		return slices.ContainsFunc(reserved, func(r bitcoin.UTXO) bool { return r.Outpoint() == utxo.Outpoint() })
	})

	tx, err := s.builder.BuildSendTx(txbuilder.SendParams{
		Wallet:          w,
		Inscription:     inscription,
		Funding:         candidates,
		Destination:     record.Address,
		OutputValue:     record.OutputValue,
		SatoshiPerVByte: s.config.Fees.Send,
	})
	if err != nil {
		return nil, err
	}

	txID, err := s.sender.Broadcast(ctx, KindSend, tx.TxHex)
	if err != nil {
		return nil, err
	}
	if txID == "" {
		txID = tx.TxID
	}

	inputs := []string{inscription.Outpoint()}
	for _, utxo := range tx.UsedUTXOs {
		inputs = append(inputs, utxo.Outpoint())
	}
	s.markSpent(inputs...)

	return &SendResult{
		OrdinalID: record.OrdinalID,
		Label:     record.Label,
		Address:   record.Address,
		Amt:       record.Amt,
		SendTxID:  txID,
		SendFee:   tx.Fee,
		VSize:     tx.VSize,
		Change:    tx.Change,
		Inputs:    inputs,
	}, nil
}

// recordWallet returns resolver of main wallet for fanout records and source wallets for collect records.
func (s *Service) recordWallet(main Wallet) resolver {
	var (
		sources []Source
		loaded  bool
		loadErr error
	)

	return func(record pending.Record) (Wallet, error) {
		if record.Mode != pending.ModeCollect {
			if main == nil {
				return nil, ErrNoWallet
			}
			if record.Owner != "" && record.Owner != main.Address() {
				return nil, fmt.Errorf("%w: %s", ErrWalletMismatch, record.Owner)
			}

			return main, nil
		}

		if !loaded {
			sources, loadErr = LoadSources(s.config.Transfer.CollectSourceFile)
			loaded = true
		}
		if loadErr != nil {
			return nil, loadErr
		}

		return sourceWallet(sources, record, s.config)
	}
}

// staticWallet resolves every record to w.
func staticWallet(w Wallet) resolver {
	return func(pending.Record) (Wallet, error) { return w, nil }
}

func (s *Service) markSpent(outpoints ...string) {
	if s.spent == nil {
		s.spent = make(map[string]struct{})
	}
	for _, outpoint := range outpoints {
		s.spent[outpoint] = struct{}{}
	}
}

func (s *Service) isSpent(outpoint string) bool {
	_, ok := s.spent[outpoint]
	return ok
}
