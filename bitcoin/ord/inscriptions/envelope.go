// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/brc20/bitcoin/utils"
)

// ErrEnvelopeConstruction defines errors class for envelope building, it is never retried.
var ErrEnvelopeConstruction = errors.New("envelope construction failed")

// Envelope describes inscription script committed into single leaf taproot output.
// Envelope is immutable and fully determined by internal key, content type and body.
type Envelope struct {
	// Script is the tapscript leaf: <xonly> OP_CHECKSIG OP_FALSE OP_IF ... OP_ENDIF.
	Script []byte
	// InternalKey is the taproot internal key, the same key signs the leaf.
	InternalKey  *btcec.PublicKey
	TapLeaf      txscript.TapLeaf
	Tree         *txscript.IndexedTapScriptTree
	ControlBlock []byte
	// Address is the commitment address funded by the commit transaction.
	Address  *btcutil.AddressTaproot
	PkScript []byte
}

// NewEnvelope builds envelope for provided 32-byte x-only or 33-byte compressed public key,
// content type and body.
func NewEnvelope(pubKey []byte, contentType string, body []byte, chainParams *chaincfg.Params) (_ *Envelope, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrEnvelopeConstruction, err)
		}
	}()

	internalKey, err := utils.XOnlyPubKey(pubKey)
	if err != nil {
		return nil, err
	}

	inscription := Inscription{ContentType: contentType, Body: body}
	script := inscription.IntoScriptForWitness(schnorr.SerializePubKey(internalKey))

	tree, err := utils.NewTapScriptTreeFromRawScripts(script)
	if err != nil {
		return nil, err
	}

	leafControlBlock := tree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlock, err := leafControlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	address, err := utils.NewTaprootAddressFromScripts(chainParams, internalKey, script)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}
	if len(pkScript) == 0 {
		return nil, errors.New("commitment has no output script")
	}

	return &Envelope{
		Script:       script,
		InternalKey:  internalKey,
		TapLeaf:      txscript.NewBaseTapLeaf(script),
		Tree:         tree,
		ControlBlock: controlBlock,
		Address:      address,
		PkScript:     pkScript,
	}, nil
}

// XOnlyInternalKey returns serialized 32-byte internal key.
func (e *Envelope) XOnlyInternalKey() []byte {
	return schnorr.SerializePubKey(e.InternalKey)
}
