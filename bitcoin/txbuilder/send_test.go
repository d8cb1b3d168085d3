// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
)

func TestSendFundingCandidates(t *testing.T) {
	inscription := bitcoin.NewUTXO(testTxHash, 0, 546, nil, "")
	walletUTXOs := []bitcoin.UTXO{
		bitcoin.NewUTXO(testTxHash, 0, 546, nil, ""),
		bitcoin.NewUTXO("b", 1, 20000, nil, ""),
		bitcoin.NewUTXO(testTxHash, 1, 9000, nil, ""),
		bitcoin.NewUTXO("b", 1, 20000, nil, ""),
	}

	t.Run("reveal change first", func(t *testing.T) {
		change := bitcoin.NewUTXO(testTxHash, 1, 9000, nil, "")

		candidates := txbuilder.SendFundingCandidates(walletUTXOs, inscription, &change, 546)
		require.Len(t, candidates, 2)
		require.Equal(t, testTxHash+":1", candidates[0].Outpoint())
		require.Equal(t, "b:1", candidates[1].Outpoint())
	})

	t.Run("dust change skipped", func(t *testing.T) {
		change := bitcoin.NewUTXO("c", 1, 300, nil, "")

		candidates := txbuilder.SendFundingCandidates(walletUTXOs, inscription, &change, 546)
		require.Len(t, candidates, 2)
		require.Equal(t, "b:1", candidates[0].Outpoint())
		require.Equal(t, testTxHash+":1", candidates[1].Outpoint())
	})
}

func TestBuildSendTx(t *testing.T) {
	var (
		txBuilder   = txbuilder.NewTxBuilder(&chaincfg.MainNetParams)
		w           = testWallet(t)
		destination = randomWallet(t)
		inscription = bitcoin.NewUTXO(testTxHash, 0, 546, w.PkScript(), w.Address())
	)

	t.Run("inscription first, change returned", func(t *testing.T) {
		funding := []bitcoin.UTXO{
			inscription,
			bitcoin.NewUTXO(testTxHash, 1, 10000, w.PkScript(), w.Address()),
		}

		result, err := txBuilder.BuildSendTx(txbuilder.SendParams{
			Wallet:          w,
			Inscription:     inscription,
			Funding:         funding,
			Destination:     destination.Address(),
			OutputValue:     546,
			SatoshiPerVByte: 2,
		})
		require.NoError(t, err)

		require.Len(t, result.Tx.TxIn, 2)
		require.Equal(t, inscription.Outpoint(), result.Tx.TxIn[0].PreviousOutPoint.String())
		require.Len(t, result.UsedUTXOs, 1)
		require.Equal(t, funding[1].Outpoint(), result.UsedUTXOs[0].Outpoint())

		require.Len(t, result.Tx.TxOut, 2)
		require.EqualValues(t, 546, result.Tx.TxOut[0].Value)
		require.Equal(t, destination.PkScript(), result.Tx.TxOut[0].PkScript)
		require.EqualValues(t, 424, result.Fee)
		require.EqualValues(t, 212, result.VSize)
		require.EqualValues(t, 10000-424, result.Change)
		require.Equal(t, w.PkScript(), result.Tx.TxOut[1].PkScript)

		verifyTx(t, result.Tx, prevOutsOf(t, funding...))
	})

	t.Run("insufficient funding", func(t *testing.T) {
		_, err := txBuilder.BuildSendTx(txbuilder.SendParams{
			Wallet:          w,
			Inscription:     inscription,
			Funding:         []bitcoin.UTXO{bitcoin.NewUTXO(testTxHash, 1, 100, w.PkScript(), w.Address())},
			Destination:     destination.Address(),
			OutputValue:     546,
			SatoshiPerVByte: 2,
		})
		require.ErrorIs(t, err, txbuilder.ErrInsufficientBalance)
	})

	t.Run("no inscription utxo", func(t *testing.T) {
		_, err := txBuilder.BuildSendTx(txbuilder.SendParams{
			Wallet:      w,
			Destination: destination.Address(),
			OutputValue: 546,
		})
		require.ErrorIs(t, err, txbuilder.ErrNoInscriptionUTXO)
	})
}
