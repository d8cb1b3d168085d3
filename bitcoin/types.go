// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInsufficientNativeBalance defines that utxos do not cover requested bitcoin amount.
var ErrInsufficientNativeBalance = errors.New("insufficient native balance")

// ErrInvalidUTXOAmount defines that there are less utxos than required by selection.
var ErrInvalidUTXOAmount = errors.New("invalid utxo amount")

// DustLimit defines the smallest output value in satoshi that is not considered dust.
const DustLimit int64 = 546

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash  string
	Index   uint32   // output index in transaction outputs.
	Amount  *big.Int // in Satoshi.
	Script  []byte   // ScriptPubKey.
	Address string   // output recipient address.
}

// NewUTXO is a constructor for UTXO with amount given in satoshi.
func NewUTXO(txHash string, index uint32, satoshi int64, script []byte, address string) UTXO {
	return UTXO{
		TxHash:  txHash,
		Index:   index,
		Amount:  big.NewInt(satoshi),
		Script:  script,
		Address: address,
	}
}

// Outpoint returns utxo reference in "txid:vout" form.
func (u *UTXO) Outpoint() string {
	return fmt.Sprintf("%s:%d", u.TxHash, u.Index)
}

// Satoshi returns utxo amount as int64.
func (u *UTXO) Satoshi() int64 {
	if u.Amount == nil {
		return 0
	}

	return u.Amount.Int64()
}

// TotalAmount returns sum of provided utxos amounts in satoshi.
func TotalAmount(utxos []UTXO) *big.Int {
	total := big.NewInt(0)
	for _, utxo := range utxos {
		if utxo.Amount != nil {
			total.Add(total, utxo.Amount)
		}
	}

	return total
}
