// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
)

// Wallet describes key path spending wallet funding transactions.
type Wallet interface {
	Address() string
	XOnlyPubKey() []byte
	PrivateKey() *btcec.PrivateKey
}

// fundingParams describes transaction to fund by wallet utxos.
type fundingParams struct {
	candidates       []bitcoin.UTXO // sorted by amount desc.
	fixedInputs      int            // inputs present in the transaction regardless of selection.
	fixedInputsValue int64
	outputs          []*wire.TxOut
	changeScript     []byte
	satoshiPerVByte  float64
}

// funding describes selected inputs and resulting fee and change.
type funding struct {
	used        []*bitcoin.UTXO
	inputsValue int64
	fee         int64
	change      int64 // zero if change would be dust.
}

// fund selects candidates to cover outputs and exact key path spend fee.
// Change below dust limit is not created and left to the fee.
func (b *TxBuilder) fund(params fundingParams) (*funding, error) {
	var outputsValue int64
	for _, out := range params.outputs {
		outputsValue += out.Value
	}

	withChange := append(append(make([]*wire.TxOut, 0, len(params.outputs)+1), params.outputs...),
		wire.NewTxOut(0, params.changeScript))

	allocate := func(used []*bitcoin.UTXO, inputsValue int64) *funding {
		inputs := params.fixedInputs + len(used)
		result := &funding{used: used, inputsValue: inputsValue}

		change := inputsValue - outputsValue - estimateKeySpendFee(inputs, withChange, params.satoshiPerVByte)
		if change >= b.dustLimit {
			result.change = change
		}
		result.fee = inputsValue - outputsValue - result.change

		return result
	}

	if params.fixedInputs > 0 {
		fee := estimateKeySpendFee(params.fixedInputs, params.outputs, params.satoshiPerVByte)
		if params.fixedInputsValue >= outputsValue+fee {
			return allocate(nil, params.fixedInputsValue), nil
		}
	}

	satFn := func(u *bitcoin.UTXO) *big.Int { return u.Amount }
	for i := 1; i <= len(params.candidates); i++ {
		fee := estimateKeySpendFee(params.fixedInputs+i, params.outputs, params.satoshiPerVByte)
		minAmount := big.NewInt(outputsValue + fee - params.fixedInputsValue)

		used, total, err := SelectUTXO(params.candidates, satFn, minAmount, i, bitcoin.ErrInsufficientNativeBalance)
		if err != nil {
			if errors.Is(err, bitcoin.ErrInsufficientNativeBalance) {
				continue
			}

			return nil, err
		}

		return allocate(used, total.Int64()+params.fixedInputsValue), nil
	}

	need := outputsValue + estimateKeySpendFee(params.fixedInputs+max(len(params.candidates), 1), params.outputs, params.satoshiPerVByte)
	have := bitcoin.TotalAmount(params.candidates).Int64() + params.fixedInputsValue

	return nil, ErrInsufficientBalance.clarify(big.NewInt(need), big.NewInt(have))
}
