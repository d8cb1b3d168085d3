// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/bitcoin/signer"
	"github.com/BoostyLabs/brc20/bitcoin/utils"
	"github.com/BoostyLabs/brc20/internal/numbers"
)

const (
	// maxConvergenceRounds defines maximal fee and change recalculation rounds.
	maxConvergenceRounds = 3

	// RevealInscriptionOutput defines reveal transaction output index with the inscription.
	RevealInscriptionOutput uint32 = 0
	// RevealChangeOutput defines reveal transaction change output index.
	RevealChangeOutput uint32 = 1
)

// RevealParams describes data needed to build reveal transaction.
type RevealParams struct {
	Envelope        *inscriptions.Envelope
	CommitTxID      string
	CommitVout      uint32
	CommitValue     int64
	ReceiveAddress  string
	OutputValue     int64
	ChangeAddress   string
	SatoshiPerVByte float64
	PrivateKey      *btcec.PrivateKey
}

// RevealPlan describes converged reveal fee and change.
type RevealPlan struct {
	EstimatedFee int64 // fee for estimated size at the fee rate.
	Fee          int64 // commit value minus outputs, includes dropped dust change.
	Change       int64
	VSize        int64
	Rounds       int
	Converged    bool
}

// RevealResult describes signed reveal transaction.
type RevealResult struct {
	Tx         *wire.MsgTx
	TxHex      string
	TxID       string
	Fee        int64
	VSize      int64
	Change     int64
	ChangeVout *uint32 // nil when there is no change output.
}

// ConvergeRevealFee iteratively recalculates reveal fee and change until both stop changing,
// at most three rounds. Change below dust limit is normalized to zero.
func (b *TxBuilder) ConvergeRevealFee(params RevealParams) (*RevealPlan, error) {
	var (
		available = params.CommitValue - params.OutputValue
		change    = max(available, 0)
		plan      = new(RevealPlan)
	)

	for plan.Rounds < maxConvergenceRounds {
		plan.Rounds++

		vsize, err := b.EstimateRevealVSize(RevealEstimateParams{
			Envelope:       params.Envelope,
			ReceiveAddress: params.ReceiveAddress,
			OutputValue:    params.OutputValue,
			ChangeAddress:  params.ChangeAddress,
			Change:         change,
		})
		if err != nil {
			return nil, err
		}

		fee := EstimatedFee(vsize, params.SatoshiPerVByte)
		possibleChange := max(available-fee, 0)
		if possibleChange < b.dustLimit {
			possibleChange = 0
		}

		converged := possibleChange == change && fee == plan.EstimatedFee
		plan.EstimatedFee, plan.VSize, change = fee, vsize, possibleChange
		if converged {
			plan.Converged = true
			break
		}
	}

	if params.CommitValue < params.OutputValue+plan.EstimatedFee {
		return nil, ErrCommitOutputInsufficient.clarify(
			big.NewInt(params.OutputValue+plan.EstimatedFee), big.NewInt(params.CommitValue))
	}

	plan.Change = change
	plan.Fee = available - change

	return plan, nil
}

// BuildRevealTx constructs and signs transaction spending commit output through the envelope script path.
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ inscription  │ output value sent to receive address.  │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, if change is not dust.       │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildRevealTx(params RevealParams) (*RevealResult, error) {
	plan, err := b.ConvergeRevealFee(params)
	if err != nil {
		return nil, err
	}

	commitHash, err := chainhash.NewHashFromStr(params.CommitTxID)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(wire.NewOutPoint(commitHash, params.CommitVout), nil, nil)
	txIn.Sequence = rbfSequence
	tx.AddTxIn(txIn)

	unallocated := big.NewInt(params.CommitValue - plan.Fee)
	if err = b.addOutput(tx, params.OutputValue, unallocated, params.ReceiveAddress); err != nil {
		return nil, err
	}

	var changeVout *uint32
	if plan.Change > 0 {
		if err = b.addOutput(tx, plan.Change, unallocated, params.ChangeAddress); err != nil {
			return nil, err
		}

		vout := RevealChangeOutput
		changeVout = &vout
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	input := &packet.Inputs[0]
	input.WitnessUtxo = wire.NewTxOut(params.CommitValue, params.Envelope.PkScript)
	input.TaprootInternalKey = params.Envelope.XOnlyInternalKey()
	input.WitnessScript = params.Envelope.Script
	input.SighashType = signHashType
	if err = utils.UpdatePSBTInputWithTapScriptLeafData(input, params.Envelope.Tree); err != nil {
		return nil, err
	}

	err = b.signer.SignTaproot(signer.SignTaprootParams{
		Packet:     packet,
		Inputs:     []int{0},
		PrivateKey: params.PrivateKey,
	})
	if err != nil {
		return nil, err
	}

	signed, err := finalizeAndExtract(packet)
	if err != nil {
		return nil, err
	}

	actualFee := params.CommitValue - outputsSum(signed)
	if actualFee != plan.Fee {
		return nil, fmt.Errorf("reveal fee mismatch: planned %d, actual %d", plan.Fee, actualFee)
	}

	txHex, err := SerializeTx(signed)
	if err != nil {
		return nil, err
	}

	return &RevealResult{
		Tx:         signed,
		TxHex:      txHex,
		TxID:       signed.TxHash().String(),
		Fee:        actualFee,
		VSize:      VirtualSize(signed),
		Change:     plan.Change,
		ChangeVout: changeVout,
	}, nil
}

// EstimatedFee returns fee in satoshi for virtual size at fee rate, rounded up.
func EstimatedFee(vsize int64, satoshiPerVByte float64) int64 {
	return numbers.CeilMul(vsize, satoshiPerVByte)
}
