// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrInvalidInputIndex defines that input index is out of packet inputs range.
var ErrInvalidInputIndex = errors.New("invalid input index")

// SignTaprootParams defines parameters for SignTaproot method.
type SignTaprootParams struct {
	Packet     *psbt.Packet
	Inputs     []int // inputs indexes.
	PrivateKey *btcec.PrivateKey
}

// signTaprootInputParams defines parameters for signTaprootInput method.
type signTaprootInputParams struct {
	packet     *psbt.Packet
	input      int
	sigHashes  *txscript.TxSigHashes
	privateKey *btcec.PrivateKey
}

// Signer provides transaction signing related logic.
type Signer struct {
	networkParams *chaincfg.Params
}

// NewSigner is a constructor for Signer.
func NewSigner(networkParams *chaincfg.Params) *Signer {
	return &Signer{
		networkParams: networkParams,
	}
}

// SignTaproot signs taproot inputs of the packet by provided indexes.
// Inputs with witness script are signed through the script path, others through the key path.
func (signer *Signer) SignTaproot(params SignTaprootParams) error {
	var (
		tx                   = params.Packet.UnsignedTx
		prevOutputFetcherMap = make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	)
	for idx, in := range params.Packet.Inputs {
		if in.WitnessUtxo == nil {
			return fmt.Errorf("input %d: no witness utxo", idx)
		}

		prevOutputFetcherMap[tx.TxIn[idx].PreviousOutPoint] = in.WitnessUtxo
	}

	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewMultiPrevOutFetcher(prevOutputFetcherMap))
	for _, input := range params.Inputs {
		if input < 0 || len(params.Packet.Inputs) <= input {
			return ErrInvalidInputIndex
		}

		err := signer.signTaprootInput(signTaprootInputParams{
			packet:     params.Packet,
			input:      input,
			sigHashes:  sigHashes,
			privateKey: params.PrivateKey,
		})
		if err != nil {
			return fmt.Errorf("input %d: %w", input, err)
		}
	}

	return nil
}

// signTaprootInput signs taproot input with or without witness script.
func (signer *Signer) signTaprootInput(params signTaprootInputParams) error {
	var (
		input       = &params.packet.Inputs[params.input]
		value       = input.WitnessUtxo.Value
		pkScript    = input.WitnessUtxo.PkScript
		sigHashType = input.SighashType
	)

	if len(input.WitnessScript) != 0 {
		var (
			tapLeaf  = txscript.NewBaseTapLeaf(input.WitnessScript)
			leafHash = tapLeaf.TapHash()
		)

		ctrlBlockBytes, err := signer.controlBlock(input, tapLeaf, params.privateKey)
		if err != nil {
			return err
		}

		sig, err := txscript.RawTxInTapscriptSignature(
			params.packet.UnsignedTx, params.sigHashes, params.input,
			value, pkScript, tapLeaf, sigHashType, params.privateKey,
		)
		if err != nil {
			return err
		}

		if len(sig) > schnorr.SignatureSize {
			sig = sig[:schnorr.SignatureSize]
		}
		input.TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
			XOnlyPubKey: schnorr.SerializePubKey(params.privateKey.PubKey()),
			LeafHash:    leafHash.CloneBytes(),
			Signature:   sig,
			SigHash:     sigHashType,
		}}

		input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
			ControlBlock: ctrlBlockBytes,
			Script:       tapLeaf.Script,
			LeafVersion:  tapLeaf.LeafVersion,
		}}

		return nil
	}

	witness, err := txscript.TaprootWitnessSignature(
		params.packet.UnsignedTx, params.sigHashes, params.input,
		value, pkScript, sigHashType, params.privateKey)
	if err != nil {
		return err
	}

	input.TaprootKeySpendSig = witness[0]

	return nil
}

// controlBlock returns control block prepared for the leaf in the input, otherwise builds it
// for single leaf tree committed to signing key.
func (signer *Signer) controlBlock(input *psbt.PInput, tapLeaf txscript.TapLeaf, privateKey *btcec.PrivateKey) ([]byte, error) {
	for _, leafScript := range input.TaprootLeafScript {
		if bytes.Equal(leafScript.Script, tapLeaf.Script) && len(leafScript.ControlBlock) != 0 {
			return leafScript.ControlBlock, nil
		}
	}

	tapScriptTree := txscript.AssembleTaprootScriptTree(tapLeaf)
	ctrlBlock := tapScriptTree.LeafMerkleProofs[0].ToControlBlock(privateKey.PubKey())

	return ctrlBlock.ToBytes()
}
