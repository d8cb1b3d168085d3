// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
)

// ErrNoInscriptionUTXO defines that inscription utxo is not provided.
var ErrNoInscriptionUTXO = errors.New("no inscription utxo")

// SendParams describes data needed to build inscription send transaction.
type SendParams struct {
	Wallet          Wallet
	Inscription     bitcoin.UTXO   // inscribed output owned by the wallet.
	Funding         []bitcoin.UTXO // wallet utxos paying the fee.
	Destination     string
	OutputValue     int64
	SatoshiPerVByte float64
}

// SendResult describes signed inscription send transaction.
type SendResult struct {
	Tx        *wire.MsgTx
	TxHex     string
	TxID      string
	Fee       int64
	VSize     int64
	Change    int64
	UsedUTXOs []bitcoin.UTXO
}

// SendFundingCandidates returns funding utxos for sending the inscription: reveal change goes first
// if it is not dust, followed by wallet utxos, inscription outpoint and duplicates excluded.
func SendFundingCandidates(walletUTXOs []bitcoin.UTXO, inscription bitcoin.UTXO, revealChange *bitcoin.UTXO, dustLimit int64) []bitcoin.UTXO {
	var (
		candidates = make([]bitcoin.UTXO, 0, len(walletUTXOs)+1)
		seen       = map[string]struct{}{inscription.Outpoint(): {}}
	)

	add := func(utxo bitcoin.UTXO) {
		if _, ok := seen[utxo.Outpoint()]; ok {
			return
		}

		seen[utxo.Outpoint()] = struct{}{}
		candidates = append(candidates, utxo)
	}

	if revealChange != nil && revealChange.Satoshi() >= dustLimit {
		add(*revealChange)
	}
	for _, utxo := range walletUTXOs {
		add(utxo)
	}

	return candidates
}

// BuildSendTx constructs and signs transaction moving inscription utxo to destination.
//
//	inputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│  index  │     type     │             description                │
//	├=========┼==============┼========================================┤
//	│       0 │ inscription  │ inscribed utxo, always first to keep   │
//	│         │              │ inscription in the first output.       │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│   1 - n │ funding      │ wallet utxos paying the fee.           │
//	└─────────┴──────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬──────────────┬────────────────────────────────────────┐
//	│       0 │ destination  │ output value with the inscription.     │
//	├─────────┼──────────────┼────────────────────────────────────────┤
//	│       1 │ change       │ optional, wallet change if not dust.   │
//	└─────────┴──────────────┴────────────────────────────────────────┘
func (b *TxBuilder) BuildSendTx(params SendParams) (*SendResult, error) {
	if params.Inscription.TxHash == "" || params.Inscription.Amount == nil {
		return nil, ErrNoInscriptionUTXO
	}

	inputBuilder, err := NewPSBTInputBuilder(params.Wallet.XOnlyPubKey(), params.Wallet.Address(), b.networkParams)
	if err != nil {
		return nil, err
	}

	destinationScript, err := b.payToAddress(params.Destination)
	if err != nil {
		return nil, err
	}

	candidates := SendFundingCandidates(params.Funding, params.Inscription, nil, 0)
	SortUTXOs(candidates)

	funds, err := b.fund(fundingParams{
		candidates:       candidates,
		fixedInputs:      1,
		fixedInputsValue: params.Inscription.Satoshi(),
		outputs:          []*wire.TxOut{wire.NewTxOut(params.OutputValue, destinationScript)},
		changeScript:     inputBuilder.PkScript(),
		satoshiPerVByte:  params.SatoshiPerVByte,
	})
	if err != nil {
		return nil, err
	}

	inscription := params.Inscription
	inputs := append([]*bitcoin.UTXO{&inscription}, funds.used...)

	tx := wire.NewMsgTx(txVersion)
	for _, utxo := range inputs {
		if err = addInput(tx, utxo, rbfSequence); err != nil {
			return nil, err
		}
	}

	unallocated := big.NewInt(funds.inputsValue - funds.fee)
	if err = b.addOutput(tx, params.OutputValue, unallocated, params.Destination); err != nil {
		return nil, err
	}
	if funds.change > 0 {
		if err = b.addOutput(tx, funds.change, unallocated, params.Wallet.Address()); err != nil {
			return nil, err
		}
	}

	signed, err := b.signKeySpend(tx, inputBuilder, inputs, params.Wallet)
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

	return &SendResult{
		Tx:        signed,
		TxHex:     txHex,
		TxID:      signed.TxHash().String(),
		Fee:       funds.inputsValue - outputsSum(signed),
		VSize:     VirtualSize(signed),
		Change:    funds.change,
		UsedUTXOs: used,
	}, nil
}
