// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package signer_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/bitcoin/signer"
	"github.com/BoostyLabs/brc20/bitcoin/utils"
)

func TestSigner(t *testing.T) {
	s := signer.NewSigner(&chaincfg.MainNetParams)

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	pubKey := privKey.PubKey()

	newTx := func() *wire.MsgTx {
		tx := wire.NewMsgTx(2)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(mustHash("5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"), 0), nil, nil))
		tx.AddTxOut(wire.NewTxOut(43000, mustHex("512015ae9a1bdfb273684b8c1107cc2dccf51f2235d8c79fe8b8e6555ad826415011")))

		return tx
	}

	t.Run("tap script", func(t *testing.T) {
		envelope, err := inscriptions.NewEnvelope(pubKey.SerializeCompressed(), "text/plain", make([]byte, 21), &chaincfg.MainNetParams)
		require.NoError(t, err)

		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(44000, envelope.PkScript)
		packet.Inputs[0].TaprootInternalKey = envelope.XOnlyInternalKey()
		packet.Inputs[0].WitnessScript = envelope.Script
		require.NoError(t, utils.UpdatePSBTInputWithTapScriptLeafData(&packet.Inputs[0], envelope.Tree))

		err = s.SignTaproot(signer.SignTaprootParams{
			Packet:     packet,
			Inputs:     []int{0},
			PrivateKey: privKey,
		})
		require.NoError(t, err)
		require.Len(t, packet.Inputs[0].TaprootScriptSpendSig, 1)
		require.Equal(t, envelope.ControlBlock, packet.Inputs[0].TaprootLeafScript[0].ControlBlock)

		verify(t, packet, envelope.PkScript, 44000)
	})

	t.Run("simple taproot", func(t *testing.T) {
		taprootAddr, err := utils.NewTaprootKeySpendAddress(&chaincfg.MainNetParams, pubKey)
		require.NoError(t, err)

		taprootAddrScript, err := txscript.PayToAddrScript(taprootAddr)
		require.NoError(t, err)

		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(44000, taprootAddrScript)
		packet.Inputs[0].TaprootInternalKey = pubKey.SerializeCompressed()[1:]

		require.NoError(t, s.SignTaproot(signer.SignTaprootParams{Packet: packet, Inputs: []int{0}, PrivateKey: privKey}))
		require.Len(t, packet.Inputs[0].TaprootKeySpendSig, 64)

		verify(t, packet, taprootAddrScript, 44000)
	})

	t.Run("sighash all", func(t *testing.T) {
		taprootAddr, err := utils.NewTaprootKeySpendAddress(&chaincfg.MainNetParams, pubKey)
		require.NoError(t, err)

		taprootAddrScript, err := txscript.PayToAddrScript(taprootAddr)
		require.NoError(t, err)

		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(44000, taprootAddrScript)
		packet.Inputs[0].SighashType = txscript.SigHashAll

		require.NoError(t, s.SignTaproot(signer.SignTaprootParams{Packet: packet, Inputs: []int{0}, PrivateKey: privKey}))
		verify(t, packet, taprootAddrScript, 44000)
	})

	t.Run("invalid input index", func(t *testing.T) {
		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)
		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(44000, mustHex("512015ae9a1bdfb273684b8c1107cc2dccf51f2235d8c79fe8b8e6555ad826415011"))

		err = s.SignTaproot(signer.SignTaprootParams{Packet: packet, Inputs: []int{1}, PrivateKey: privKey})
		require.ErrorIs(t, err, signer.ErrInvalidInputIndex)
	})

	t.Run("missing witness utxo", func(t *testing.T) {
		packet, err := psbt.NewFromUnsignedTx(newTx())
		require.NoError(t, err)

		err = s.SignTaproot(signer.SignTaprootParams{Packet: packet, Inputs: []int{0}, PrivateKey: privKey})
		require.Error(t, err)
	})
}

// verify finalizes packet and executes the script of the first input.
func verify(t *testing.T, packet *psbt.Packet, pkScript []byte, value int64) {
	t.Helper()

	require.NoError(t, psbt.Finalize(packet, 0))

	signedTx, err := psbt.Extract(packet)
	require.NoError(t, err)

	prevFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, value)
	sigHashes := txscript.NewTxSigHashes(signedTx, prevFetcher)

	vm, err := txscript.NewEngine(
		pkScript, signedTx, 0, txscript.StandardVerifyFlags,
		nil, sigHashes, value, prevFetcher,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func mustHex(s string) []byte {
	b, _ := hex.DecodeString(s)

	return b
}

func mustHash(s string) *chainhash.Hash {
	h, _ := chainhash.NewHashFromStr(s)

	return h
}
