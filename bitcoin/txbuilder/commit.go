// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/signer"
)

const (
	// commitFeeReserveMin defines minimal amount in satoshi reserved for commit fee.
	commitFeeReserveMin int64 = 300
	// commitBaseVBytes defines rough commit transaction size without inputs.
	commitBaseVBytes int64 = 150
	// commitInputVBytes defines rough size of commit input used for fee reserve.
	commitInputVBytes int64 = 20

	// commitOutput defines commit transaction output index with envelope funds.
	commitOutput uint32 = 0

	// DefaultBalanceStepMin defines minimal target reduction on insufficient balance.
	DefaultBalanceStepMin int64 = 100
	// DefaultBalanceStepPerFeeRate defines target reduction per fee rate unit on insufficient balance.
	DefaultBalanceStepPerFeeRate float64 = 50
)

// ErrInvalidCommitTarget defines that commit target does not exceed required minimum.
var ErrInvalidCommitTarget = errors.New("commit target is not above the minimum")

// CommitParams describes data needed to build commit transaction.
type CommitParams struct {
	Wallet          Wallet
	UTXOs           []bitcoin.UTXO
	CommitAddress   string
	Target          int64   // satoshi sent to commit address.
	SatoshiPerVByte float64 // fee rate.
}

// CommitResult describes signed commit transaction.
type CommitResult struct {
	Tx        *wire.MsgTx
	TxHex     string
	TxID      string
	Vout      uint32
	Value     int64
	Fee       int64
	VSize     int64
	Change    int64
	UsedUTXOs []bitcoin.UTXO
}

// BalanceBackoff describes commit target reduction policy on insufficient balance.
type BalanceBackoff struct {
	MinStep        int64
	StepPerFeeRate float64
}

// DefaultBalanceBackoff returns reduction policy of max(100, feeRate*50) satoshi.
func DefaultBalanceBackoff() BalanceBackoff {
	return BalanceBackoff{MinStep: DefaultBalanceStepMin, StepPerFeeRate: DefaultBalanceStepPerFeeRate}
}

// Step returns target reduction in satoshi for fee rate.
func (bb BalanceBackoff) Step(satoshiPerVByte float64) int64 {
	return max(bb.MinStep, int64(math.Ceil(satoshiPerVByte*bb.StepPerFeeRate)))
}

// Reduce returns reduced target and false if it falls at or below the floor.
func (bb BalanceBackoff) Reduce(target int64, satoshiPerVByte float64, floor int64) (int64, bool) {
	reduced := target - bb.Step(satoshiPerVByte)
	return reduced, reduced > floor
}

// CommitFeeReserve returns satoshi kept aside for commit fee when spending inputs: max(300, ceil((150+20*inputs)*rate)).
func CommitFeeReserve(inputs int, satoshiPerVByte float64) int64 {
	vbytes := commitBaseVBytes + commitInputVBytes*int64(inputs)
	return max(commitFeeReserveMin, int64(math.Ceil(float64(vbytes)*satoshiPerVByte)))
}

// MintCommitTarget returns initial commit target spending whole balance of utxos.
func MintCommitTarget(utxos []bitcoin.UTXO, satoshiPerVByte float64) int64 {
	return bitcoin.TotalAmount(utxos).Int64() - CommitFeeReserve(len(utxos), satoshiPerVByte)
}

// TransferCommitTarget returns initial commit target for transfer inscription funded by single utxo.
// Falls back to balance step reduction when fee reserve leaves less than the floor.
func TransferCommitTarget(utxoValue int64, satoshiPerVByte float64, floor int64, backoff BalanceBackoff) int64 {
	target := utxoValue - CommitFeeReserve(0, satoshiPerVByte)
	if target <= floor {
		target = utxoValue - backoff.Step(satoshiPerVByte)
	}

	return target
}

// BuildCommitTx constructs and signs transaction sending exactly target value to commit address.
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ commit       │ target value locked to envelope        │
//	│         │              │ taproot address.                       │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, wallet change if not dust.   │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildCommitTx(params CommitParams) (*CommitResult, error) {
	if params.Target < b.dustLimit {
		return nil, fmt.Errorf("%w: target %d, dust limit %d", ErrInvalidCommitTarget, params.Target, b.dustLimit)
	}

	inputBuilder, err := NewPSBTInputBuilder(params.Wallet.XOnlyPubKey(), params.Wallet.Address(), b.networkParams)
	if err != nil {
		return nil, err
	}

	commitScript, err := b.payToAddress(params.CommitAddress)
	if err != nil {
		return nil, err
	}

	candidates := slices.Clone(params.UTXOs)
	SortUTXOs(candidates)

	funds, err := b.fund(fundingParams{
		candidates:      candidates,
		outputs:         []*wire.TxOut{wire.NewTxOut(params.Target, commitScript)},
		changeScript:    inputBuilder.PkScript(),
		satoshiPerVByte: params.SatoshiPerVByte,
	})
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	for _, utxo := range funds.used {
		if err = addInput(tx, utxo, rbfSequence); err != nil {
			return nil, err
		}
	}

	unallocated := big.NewInt(funds.inputsValue - funds.fee)
	if err = b.addOutput(tx, params.Target, unallocated, params.CommitAddress); err != nil {
		return nil, err
	}
	if funds.change > 0 {
		if err = b.addOutput(tx, funds.change, unallocated, params.Wallet.Address()); err != nil {
			return nil, err
		}
	}

	signed, err := b.signKeySpend(tx, inputBuilder, funds.used, params.Wallet)
	if err != nil {
		return nil, err
	}

	txHex, err := SerializeTx(signed)
	if err != nil {
		return nil, err
	}

	used := make([]bitcoin.UTXO, 0, len(funds.used))
	for _, utxo := range funds.used {
		used = append(used, *utxo)
	}

	return &CommitResult{
		Tx:        signed,
		TxHex:     txHex,
		TxID:      signed.TxHash().String(),
		Vout:      commitOutput,
		Value:     params.Target,
		Fee:       funds.inputsValue - outputsSum(signed),
		VSize:     VirtualSize(signed),
		Change:    funds.change,
		UsedUTXOs: used,
	}, nil
}

// signKeySpend signs all transaction inputs through the wallet key path, inputs must match utxos order.
func (b *TxBuilder) signKeySpend(tx *wire.MsgTx, inputBuilder *PSBTInputBuilder, utxos []*bitcoin.UTXO, wallet Wallet) (*wire.MsgTx, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	inputs := make([]int, len(utxos))
	for idx, utxo := range utxos {
		inputBuilder.PrepareInput(&packet.Inputs[idx], utxo)
		inputs[idx] = idx
	}

	err = b.signer.SignTaproot(signer.SignTaprootParams{
		Packet:     packet,
		Inputs:     inputs,
		PrivateKey: wallet.PrivateKey(),
	})
	if err != nil {
		return nil, err
	}

	return finalizeAndExtract(packet)
}
