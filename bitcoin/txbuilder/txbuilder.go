// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/signer"
	"github.com/BoostyLabs/brc20/internal/numbers"
)

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// signHashType define signature hash type for input signing, keeps schnorr signatures 64 bytes long.
	signHashType = txscript.SigHashDefault
	// rbfSequence defines input sequence signalling replace-by-fee.
	rbfSequence uint32 = wire.MaxTxInSequenceNum - 2
)

// TxBuilder provides transaction building related logic.
type TxBuilder struct {
	networkParams *chaincfg.Params
	signer        *signer.Signer
	dustLimit     int64
}

// NewTxBuilder is a constructor for TxBuilder.
func NewTxBuilder(networkParams *chaincfg.Params) *TxBuilder {
	return &TxBuilder{
		networkParams: networkParams,
		signer:        signer.NewSigner(networkParams),
		dustLimit:     bitcoin.DustLimit,
	}
}

// WithDustLimit returns builder copy with custom dust threshold, non-positive values are ignored.
func (b *TxBuilder) WithDustLimit(dustLimit int64) *TxBuilder {
	clone := *b
	if dustLimit > 0 {
		clone.dustLimit = dustLimit
	}

	return &clone
}

// DustLimit returns dust threshold used by the builder.
func (b *TxBuilder) DustLimit() int64 {
	return b.dustLimit
}

// SelectUTXO is a partly greedy selection algorithm for UTXOs with 'requiredUTXOs' parameter.
// Returns list of selected by algorithm UTXOs with total amount, counted by passed amount function.
// UTXOs must be sorted by amount desc.
func SelectUTXO(utxos []bitcoin.UTXO, amountFn func(*bitcoin.UTXO) *big.Int, minAmount *big.Int, requiredUTXOs int,
	insufficientBalanceError error) (usedUTXOs []*bitcoin.UTXO, totalAmount *big.Int, _ error) {
	if len(utxos) < requiredUTXOs || requiredUTXOs < 1 {
		return nil, nil, bitcoin.ErrInvalidUTXOAmount
	}

	usedUTXOs = make([]*bitcoin.UTXO, 0, requiredUTXOs)
	totalAmount = big.NewInt(0)
	var startIdx = 0
	var usedIdxs = make([]int, 0, requiredUTXOs)

	// find the closest by amount UTXO that is grater then minAmount or take the biggest possible.
	for idx := range utxos {
		if numbers.IsGreater(minAmount, amountFn(&utxos[idx])) {
			break
		}

		startIdx = idx
	}

	usedIdxs = append(usedIdxs, startIdx)
	totalAmount.Add(totalAmount, amountFn(&utxos[startIdx]))
	usedUTXOs = append(usedUTXOs, &utxos[startIdx])
	requiredUTXOs--

	// pick bigger amount if total amount do not cover minAmount, otherwise - the smallest to pass requiredUTXOs.
	for ; requiredUTXOs > 0; requiredUTXOs-- {
		idx := selectUnused(0, len(utxos), usedIdxs, !numbers.IsGreater(minAmount, totalAmount))
		if idx == -1 {
			return nil, nil, bitcoin.ErrInvalidUTXOAmount
		}

		usedIdxs = append(usedIdxs, idx)
		totalAmount.Add(totalAmount, amountFn(&utxos[idx]))
		usedUTXOs = append(usedUTXOs, &utxos[idx])
	}

	if numbers.IsGreater(minAmount, totalAmount) {
		return nil, nil, insufficientBalanceError
	}

	return usedUTXOs, totalAmount, nil
}

// SortUTXOs sorts utxos by amount desc in place, keeping order of equal amounts.
func SortUTXOs(utxos []bitcoin.UTXO) {
	slices.SortStableFunc(utxos, func(a, b bitcoin.UTXO) int {
		return b.Amount.Cmp(a.Amount)
	})
}

// payToAddress returns output script for the address on builder network.
func (b *TxBuilder) payToAddress(address string) ([]byte, error) {
	recipientAddress, err := btcutil.DecodeAddress(address, b.networkParams)
	if err != nil {
		return nil, err
	}

	if !recipientAddress.IsForNet(b.networkParams) {
		return nil, errors.New("address is not for the builder network")
	}

	return txscript.PayToAddrScript(recipientAddress)
}

// addOutput adds output to transaction, subtracts amount from unallocated amount.
func (b *TxBuilder) addOutput(tx *wire.MsgTx, amount int64, unallocatedAmount *big.Int, address string) error {
	if numbers.IsLess(unallocatedAmount, big.NewInt(amount)) {
		return errors.New("unallocated amount is less than the amount in provided inputs")
	}

	destinationAddrByte, err := b.payToAddress(address)
	if err != nil {
		return err
	}

	tx.AddTxOut(wire.NewTxOut(amount, destinationAddrByte))
	unallocatedAmount.Sub(unallocatedAmount, big.NewInt(amount))

	return nil
}

// addInput adds input spending provided utxo.
func addInput(tx *wire.MsgTx, utxo *bitcoin.UTXO, sequence uint32) error {
	utxoHash, err := chainhash.NewHashFromStr(utxo.TxHash)
	if err != nil {
		return err
	}

	txIn := wire.NewTxIn(wire.NewOutPoint(utxoHash, utxo.Index), nil, nil)
	txIn.Sequence = sequence
	tx.AddTxIn(txIn)

	return nil
}

// finalizeAndExtract finalizes all packet inputs and returns signed transaction.
func finalizeAndExtract(packet *psbt.Packet) (*wire.MsgTx, error) {
	for idx := range packet.Inputs {
		if err := psbt.Finalize(packet, idx); err != nil {
			return nil, err
		}
	}

	return psbt.Extract(packet)
}

// SerializeTx returns hex encoded transaction with witness data.
func SerializeTx(tx *wire.MsgTx) (string, error) {
	w := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(w); err != nil {
		return "", err
	}

	return hex.EncodeToString(w.Bytes()), nil
}

// DeserializeTx decodes hex encoded transaction.
func DeserializeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	if err = tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}

	return tx, nil
}

// outputsSum returns sum of transaction outputs values.
func outputsSum(tx *wire.MsgTx) int64 {
	var sum int64
	for _, out := range tx.TxOut {
		sum += out.Value
	}

	return sum
}

// selectUnused returns first unused idx depending on search direction.
func selectUnused(start, end int, usedIdxs []int, reversed bool) int {
	if reversed {
		for idx := end - 1; idx >= start; idx-- {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	} else {
		for idx := start; idx < end; idx++ {
			if !slices.Contains(usedIdxs, idx) {
				return idx
			}
		}
	}

	return -1
}
