// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrNoLeafScripts defines tree without leaves.
	ErrNoLeafScripts = errors.New("no leaf scripts provided")
	// ErrIncompleteTapInput defines psbt input missing internal key or witness script.
	ErrIncompleteTapInput = errors.New("taproot input is incomplete")
	// ErrLeafNotInTree defines witness script which is not a leaf of the tree.
	ErrLeafNotInTree = errors.New("witness script is not a leaf of the tree")
)

// NewTapScriptTreeFromRawScripts builds tapscript tree of base version leaves.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, ErrNoLeafScripts
	}

	leaves := make([]txscript.TapLeaf, 0, len(leafScripts))
	for _, leafScript := range leafScripts {
		leaves = append(leaves, txscript.NewBaseTapLeaf(leafScript))
	}

	return txscript.AssembleTaprootScriptTree(leaves...), nil
}

// UpdatePSBTInputWithTapScriptLeafData sets leaf script, control block and merkle root of the input
// witness script, so the input can be signed through that leaf.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, tree *txscript.IndexedTapScriptTree) error {
	if len(input.TaprootInternalKey) == 0 || len(input.WitnessScript) == 0 {
		return ErrIncompleteTapInput
	}

	internalKey, err := schnorr.ParsePubKey(input.TaprootInternalKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteTapInput, err)
	}

	leaf := txscript.NewBaseTapLeaf(input.WitnessScript)
	proofIdx, ok := tree.LeafProofIndex[leaf.TapHash()]
	if !ok {
		return ErrLeafNotInTree
	}

	controlBlock := tree.LeafMerkleProofs[proofIdx].ToControlBlock(internalKey)
	controlBlockBytes, err := controlBlock.ToBytes()
	if err != nil {
		return err
	}

	input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
		ControlBlock: controlBlockBytes,
		Script:       leaf.Script,
		LeafVersion:  leaf.LeafVersion,
	}}
	input.TaprootMerkleRoot = controlBlock.RootHash(leaf.Script)

	return nil
}
