// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/utils"
)

// ErrPSBTInputBuilder defines errors class for prepare address data method.
var ErrPSBTInputBuilder = errors.New("prepare address data")

// ErrUnsupportedScriptType defines that inputs of the address type could not be signed by the wallet.
var ErrUnsupportedScriptType = errors.New("unsupported script type")

const (
	// P2PKH defines P2PK (public key hash) script type over which the address is built.
	P2PKH = "P2PKH"
	// P2SH defines P2SH (script hash) script type over which the address is built.
	P2SH = "P2SH"
	// P2WPKH defines P2WPKH (witness public key hash) script type over which the address is built.
	P2WPKH = "P2WPKH"
	// P2WSH defines P2WSH (witness script hash) script type over which the address is built.
	P2WSH = "P2WSH"
	// P2TR defines P2TR (taproot) script type over which the address is built.
	P2TR = "P2TR"
)

// PSBTInputBuilder is a helping tool to prepare psbt inputs spending wallet owned outputs.
type PSBTInputBuilder struct {
	params      *chaincfg.Params
	scriptType  string
	address     btcutil.Address
	pkScript    []byte
	xOnlyPubKey []byte
}

// NewPSBTInputBuilder is a constructor for PSBTInputBuilder.
func NewPSBTInputBuilder(pubKey []byte, address string, networkParams *chaincfg.Params) (pib *PSBTInputBuilder, err error) {
	pib = &PSBTInputBuilder{params: networkParams}

	defer func(err *error) {
		if err != nil && *err != nil {
			*err = errors.Join(ErrPSBTInputBuilder, *err)
		}
	}(&err)

	publicKey, err := utils.XOnlyPubKey(pubKey)
	if err != nil {
		return pib, err
	}
	pib.xOnlyPubKey = publicKey.SerializeCompressed()[1:]

	pib.address, err = btcutil.DecodeAddress(address, pib.params)
	if err != nil {
		return pib, err
	}

	switch pib.address.(type) {
	case *btcutil.AddressTaproot:
		pib.scriptType = P2TR
	case *btcutil.AddressWitnessPubKeyHash:
		pib.scriptType = P2WPKH
	case *btcutil.AddressWitnessScriptHash:
		pib.scriptType = P2WSH
	case *btcutil.AddressPubKeyHash:
		pib.scriptType = P2PKH
	case *btcutil.AddressScriptHash:
		pib.scriptType = P2SH
	default:
		return pib, btcutil.ErrUnknownAddressType
	}

	if pib.scriptType != P2TR {
		return pib, ErrUnsupportedScriptType
	}

	pib.pkScript, err = txscript.PayToAddrScript(pib.address)
	if err != nil {
		return pib, err
	}

	return pib, nil
}

// PrepareInput updates input with previous output and key data required for key path signing.
// Utxos without script are considered to be locked to the builder address.
func (pib *PSBTInputBuilder) PrepareInput(input *psbt.PInput, utxo *bitcoin.UTXO) {
	script := utxo.Script
	if len(script) == 0 {
		script = pib.pkScript
	}

	input.WitnessUtxo = wire.NewTxOut(utxo.Satoshi(), script)
	input.TaprootInternalKey = pib.xOnlyPubKey
	input.SighashType = signHashType
}

// PkScript returns output script of the builder address.
func (pib *PSBTInputBuilder) PkScript() []byte {
	return pib.pkScript
}

// ScriptType returns underlying script type.
func (pib *PSBTInputBuilder) ScriptType() string {
	return pib.scriptType
}
