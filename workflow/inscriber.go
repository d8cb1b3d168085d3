// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/internal/metrics"
	"github.com/BoostyLabs/brc20/internal/retry"
)

var (
	// ErrInsufficientFunds defines that commit target could not be lowered above the floor.
	ErrInsufficientFunds = errors.New("insufficient funds for inscription")
	// ErrNoUTXO defines that wallet has no utxo to fund the inscription.
	ErrNoUTXO = errors.New("no utxo")
)

// dryRunFunding defines satoshi above output value assumed available in dry run without utxos.
const dryRunFunding int64 = 100000

// Wallet is a single key taproot wallet inscribing and sending.
type Wallet interface {
	txbuilder.Wallet
	// PubKey returns compressed public key.
	PubKey() []byte
	// PkScript returns wallet output script.
	PkScript() []byte
}

// InscriberConfig defines single inscription parameters.
type InscriberConfig struct {
	ContentType   string
	OutputValue   int64
	CommitFeeRate float64
	RevealFeeRate float64
	Backoff       txbuilder.BalanceBackoff
	Retry         retry.Config
	RevealDelay   time.Duration
	MinUTXOValue  int64
	DryRun        bool
}

// Inscriber runs commit and reveal of a single inscription.
type Inscriber struct {
	networkParams *chaincfg.Params
	builder       *txbuilder.TxBuilder
	client        explorer.Client
	broadcaster   *Broadcaster
	config        InscriberConfig
	log           logrus.FieldLogger
	opts          []retry.Option
}

// NewInscriber is a constructor for Inscriber.
func NewInscriber(networkParams *chaincfg.Params, builder *txbuilder.TxBuilder, client explorer.Client, broadcaster *Broadcaster,
	config InscriberConfig, log logrus.FieldLogger, opts ...retry.Option) *Inscriber {
	return &Inscriber{
		networkParams: networkParams,
		builder:       builder,
		client:        client,
		broadcaster:   broadcaster,
		config:        config,
		log:           log,
		opts:          opts,
	}
}

// InscribeParams describes single inscription.
type InscribeParams struct {
	Label   string
	Wallet  Wallet
	Payload brc20.Payload
	// UTXOs fund the commit. Mint spends all of them, transfer spends the first one.
	// Wallet utxos are fetched when empty.
	UTXOs []bitcoin.UTXO
	// ReceiveAddress gets the inscription, wallet address is used when empty.
	ReceiveAddress string
}

// Inscription describes inscribed payload or dry run estimation.
type Inscription struct {
	Label          string        `json:"label,omitempty"`
	Payload        brc20.Payload `json:"payload"`
	CommitAddress  string        `json:"commitAddress"`
	CommitTxID     string        `json:"commitTxId,omitempty"`
	CommitAmount   int64         `json:"commitAmount"`
	CommitFee      int64         `json:"commitFee,omitempty"`
	RevealTxID     string        `json:"revealTxId,omitempty"`
	RevealFee      int64         `json:"revealFee"`
	RevealVSize    int64         `json:"revealVSize"`
	ReceiveAddress string        `json:"receiveAddress"`
	ChangeAddress  string        `json:"changeAddress"`
	ChangeAmount   int64         `json:"changeAmount"`
	ChangeVout     *uint32       `json:"changeVout,omitempty"`
	InscriptionID  string        `json:"inscriptionId,omitempty"`
	// Inputs lists outpoints spent by the commit.
	Inputs []string `json:"inputs,omitempty"`
	DryRun bool     `json:"dryRun,omitempty"`
}

// Inscribe builds commit and reveal transactions and broadcasts them in order.
// Dry run returns estimation without building transactions.
func (i *Inscriber) Inscribe(ctx context.Context, params InscribeParams) (_ *Inscription, err error) {
	defer metrics.ObservePhase("inscribe", time.Now())

	log := i.log.WithFields(logrus.Fields{"label": params.Label, "op": params.Payload.Op, "amt": params.Payload.Amt})

	if err = params.Payload.Validate(); err != nil {
		return nil, errors.Join(inscriptions.ErrEnvelopeConstruction, err)
	}

	body, err := params.Payload.Bytes()
	if err != nil {
		return nil, errors.Join(inscriptions.ErrEnvelopeConstruction, err)
	}

	envelope, err := inscriptions.NewEnvelope(params.Wallet.PubKey(), i.config.ContentType, body, i.networkParams)
	if err != nil {
		return nil, err
	}

	receiveAddress := params.ReceiveAddress
	if receiveAddress == "" {
		receiveAddress = params.Wallet.Address()
	}

	revealFee, err := i.builder.EstimateRevealFee(txbuilder.RevealEstimateParams{
		Envelope:       envelope,
		ReceiveAddress: receiveAddress,
		OutputValue:    i.config.OutputValue,
	}, i.config.RevealFeeRate)
	if err != nil {
		return nil, err
	}

	utxos, err := i.fundingUTXOs(ctx, params)
	if err != nil {
		return nil, err
	}

	target, floor := i.commitTarget(params.Payload.Op, utxos, revealFee)
	if target <= floor {
		return nil, fmt.Errorf("%w: commit target %d, required more than %d", ErrInsufficientFunds, target, floor)
	}

	inscription := &Inscription{
		Label:          params.Label,
		Payload:        params.Payload,
		CommitAddress:  envelope.Address.EncodeAddress(),
		ReceiveAddress: receiveAddress,
		ChangeAddress:  params.Wallet.Address(),
	}

	log.WithFields(logrus.Fields{
		"commitAddress": inscription.CommitAddress,
		"commitTarget":  target,
		"revealFee":     revealFee,
	}).Info("inscription planned")

	revealParams := txbuilder.RevealParams{
		Envelope:        envelope,
		ReceiveAddress:  receiveAddress,
		OutputValue:     i.config.OutputValue,
		ChangeAddress:   params.Wallet.Address(),
		SatoshiPerVByte: i.config.RevealFeeRate,
		PrivateKey:      params.Wallet.PrivateKey(),
	}

	if i.config.DryRun {
		revealParams.CommitValue = target
		plan, err := i.builder.ConvergeRevealFee(revealParams)
		if err != nil {
			return nil, err
		}

		inscription.DryRun = true
		inscription.CommitAmount = target
		inscription.RevealFee = plan.Fee
		inscription.RevealVSize = plan.VSize
		inscription.ChangeAmount = plan.Change

		return inscription, nil
	}

	commit, err := i.commit(ctx, log, params.Wallet, utxos, inscription.CommitAddress, target, floor)
	if err != nil {
		return nil, err
	}

	revealParams.CommitTxID = commit.TxID
	revealParams.CommitVout = commit.Vout
	revealParams.CommitValue = commit.Value

	reveal, err := i.builder.BuildRevealTx(revealParams)
	if err != nil {
		return nil, err
	}

	inscription.CommitTxID = commit.TxID
	inscription.CommitAmount = commit.Value
	inscription.CommitFee = commit.Fee
	inscription.RevealFee = reveal.Fee
	inscription.RevealVSize = reveal.VSize
	inscription.ChangeAmount = reveal.Change
	inscription.ChangeVout = reveal.ChangeVout
	for _, utxo := range commit.UsedUTXOs {
		inscription.Inputs = append(inscription.Inputs, utxo.Outpoint())
	}

	log.WithFields(logrus.Fields{
		"commitTxid":  commit.TxID,
		"revealFee":   reveal.Fee,
		"revealVSize": reveal.VSize,
		"change":      reveal.Change,
	}).Info("commit and reveal signed")

	if _, err = i.broadcaster.Broadcast(ctx, KindCommit, commit.TxHex); err != nil {
		return nil, fmt.Errorf("broadcast commit: %w", err)
	}

	if i.config.RevealDelay > 0 {
		log.WithField("delay", i.config.RevealDelay).Debug("waiting before reveal broadcast")
		if err = sleep(ctx, i.config.RevealDelay); err != nil {
			return nil, err
		}
	}

	revealTxID, err := i.broadcaster.Broadcast(ctx, KindReveal, reveal.TxHex)
	if err != nil {
		log.WithFields(logrus.Fields{"commitTxid": commit.TxID, "revealTx": reveal.TxHex}).
			Error("commit is broadcasted but reveal is not, reveal transaction has to be pushed manually")
		return nil, fmt.Errorf("broadcast reveal: %w", err)
	}
	if revealTxID == "" {
		revealTxID = reveal.TxID
	}

	inscription.RevealTxID = revealTxID
	inscription.InscriptionID = inscriptions.FormatID(revealTxID, txbuilder.RevealInscriptionOutput)

	log.WithField("inscriptionId", inscription.InscriptionID).Info("inscription revealed")

	return inscription, nil
}

// fundingUTXOs returns utxos funding the commit.
func (i *Inscriber) fundingUTXOs(ctx context.Context, params InscribeParams) ([]bitcoin.UTXO, error) {
	utxos := params.UTXOs
	if len(utxos) == 0 {
		if i.config.DryRun {
			return []bitcoin.UTXO{bitcoin.NewUTXO("", 0, i.config.OutputValue+dryRunFunding, params.Wallet.PkScript(), params.Wallet.Address())}, nil
		}

		fetched, err := explorer.GetUTXOs(ctx, i.client, params.Wallet.Address())
		if err != nil {
			return nil, fmt.Errorf("get utxos: %w", err)
		}

		utxos = explorer.PackUTXOs(fetched, i.config.MinUTXOValue)
	}

	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUTXO, params.Wallet.Address())
	}

	if params.Payload.Op == brc20.OpTransfer {
		return utxos[:1], nil
	}

	return utxos, nil
}

// commitTarget returns initial commit target and the value it has to stay above.
func (i *Inscriber) commitTarget(op brc20.Op, utxos []bitcoin.UTXO, revealFee int64) (target, floor int64) {
	if op == brc20.OpTransfer {
		floor = i.config.OutputValue + revealFee
		return txbuilder.TransferCommitTarget(utxos[0].Satoshi(), i.config.CommitFeeRate, floor, i.config.Backoff), floor
	}

	return txbuilder.MintCommitTarget(utxos, i.config.CommitFeeRate), i.config.OutputValue
}

// commit builds commit transaction, lowering the target by balance backoff step while balance is insufficient.
func (i *Inscriber) commit(ctx context.Context, log logrus.FieldLogger, wallet Wallet, utxos []bitcoin.UTXO,
	commitAddress string, target, floor int64) (*txbuilder.CommitResult, error) {
	defer metrics.ObservePhase(KindCommit, time.Now())

	result, err := retry.Do(ctx, i.config.Retry, func(ctx context.Context, attempt int) (*txbuilder.CommitResult, error) {
		result, err := i.builder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          wallet,
			UTXOs:           utxos,
			CommitAddress:   commitAddress,
			Target:          target,
			SatoshiPerVByte: i.config.CommitFeeRate,
		})
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, txbuilder.ErrInsufficientBalance):
			reduced, ok := i.config.Backoff.Reduce(target, i.config.CommitFeeRate, floor)
			if !ok {
				return nil, retry.Permanent(errors.Join(ErrInsufficientFunds, err))
			}

			metrics.BalanceBackoffTotal.Inc()
			log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "target": reduced}).
				Warn("lowering commit target")
			target = reduced

			return nil, retry.Immediate(err)
		case errors.Is(err, txbuilder.ErrInvalidCommitTarget), errors.Is(err, inscriptions.ErrEnvelopeConstruction):
			return nil, retry.Permanent(err)
		default:
			log.WithError(err).WithField("attempt", attempt).Error("could not build commit transaction")
			return nil, err
		}
	}, i.opts...)
	if err != nil {
		if errors.Is(err, txbuilder.ErrInsufficientBalance) && !errors.Is(err, ErrInsufficientFunds) {
			err = errors.Join(ErrInsufficientFunds, err)
		}

		return nil, err
	}

	return result, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
