// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/internal/numbers"
)

// RevealEstimateParams describes reveal transaction shape to estimate.
type RevealEstimateParams struct {
	Envelope       *inscriptions.Envelope
	ReceiveAddress string
	OutputValue    int64
	ChangeAddress  string
	Change         int64 // change output is estimated only when positive.
}

// VirtualSize returns transaction virtual size in vBytes.
func VirtualSize(tx *wire.MsgTx) int64 {
	return mempool.GetTxVirtualSize(btcutil.NewTx(tx))
}

// EstimateRevealVSize returns virtual size of the reveal transaction with the given shape.
// Uses zero signature of the real signature size, so estimation equals the size of signed transaction.
func (b *TxBuilder) EstimateRevealVSize(params RevealEstimateParams) (int64, error) {
	tx, err := b.fakeRevealTx(params)
	if err != nil {
		return 0, err
	}

	return VirtualSize(tx), nil
}

// EstimateRevealFee returns reveal fee in satoshi, rounded up.
func (b *TxBuilder) EstimateRevealFee(params RevealEstimateParams, satoshiPerVByte float64) (int64, error) {
	vsize, err := b.EstimateRevealVSize(params)
	if err != nil {
		return 0, err
	}

	return numbers.CeilMul(vsize, satoshiPerVByte), nil
}

// fakeRevealTx constructs unsigned reveal transaction with placeholder witness.
func (b *TxBuilder) fakeRevealTx(params RevealEstimateParams) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(txVersion)

	txIn := wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, 0), nil, nil)
	txIn.Sequence = rbfSequence
	txIn.Witness = wire.TxWitness{
		make([]byte, schnorr.SignatureSize),
		params.Envelope.Script,
		params.Envelope.ControlBlock,
	}
	tx.AddTxIn(txIn)

	receiveScript, err := b.payToAddress(params.ReceiveAddress)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(params.OutputValue, receiveScript))

	if params.Change > 0 {
		changeScript, err := b.payToAddress(params.ChangeAddress)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(params.Change, changeScript))
	}

	return tx, nil
}

// estimateKeySpendVSize returns virtual size of transaction spending inputs taproot key path outputs
// into provided outputs.
func estimateKeySpendVSize(inputs int, outputs []*wire.TxOut) int64 {
	tx := wire.NewMsgTx(txVersion)
	for i := 0; i < inputs; i++ {
		txIn := wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, uint32(i)), nil, nil)
		txIn.Sequence = rbfSequence
		txIn.Witness = wire.TxWitness{make([]byte, schnorr.SignatureSize)}
		tx.AddTxIn(txIn)
	}

	for _, out := range outputs {
		tx.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}

	return VirtualSize(tx)
}

// estimateKeySpendFee returns fee in satoshi for key path spending transaction, rounded up.
func estimateKeySpendFee(inputs int, outputs []*wire.TxOut, satoshiPerVByte float64) int64 {
	return numbers.CeilMul(estimateKeySpendVSize(inputs, outputs), satoshiPerVByte)
}
