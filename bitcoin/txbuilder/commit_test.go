// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
)

func TestCommitTargets(t *testing.T) {
	t.Run("fee reserve", func(t *testing.T) {
		tests := []struct {
			inputs  int
			rate    float64
			reserve int64
		}{
			{1, 3, 510},
			{0, 1, 300},
			{0, 3, 450},
			{5, 10, 2500},
			{2, 0.5, 300},
		}

		for _, test := range tests {
			require.Equal(t, test.reserve, txbuilder.CommitFeeReserve(test.inputs, test.rate))
		}
	})

	t.Run("mint target", func(t *testing.T) {
		utxos := []bitcoin.UTXO{bitcoin.NewUTXO(testTxHash, 0, 100000, nil, "")}
		require.EqualValues(t, 99490, txbuilder.MintCommitTarget(utxos, 3))
	})

	t.Run("transfer target", func(t *testing.T) {
		backoff := txbuilder.DefaultBalanceBackoff()
		require.EqualValues(t, 9550, txbuilder.TransferCommitTarget(10000, 3, 546, backoff))
		require.EqualValues(t, 850, txbuilder.TransferCommitTarget(1000, 3, 600, backoff))
	})

	t.Run("balance step", func(t *testing.T) {
		backoff := txbuilder.DefaultBalanceBackoff()
		require.EqualValues(t, 100, backoff.Step(1))
		require.EqualValues(t, 150, backoff.Step(3))
		require.EqualValues(t, 125, backoff.Step(2.5))

		custom := txbuilder.BalanceBackoff{MinStep: 10, StepPerFeeRate: 1}
		require.EqualValues(t, 10, custom.Step(3))
	})

	t.Run("reduction is monotonic and bounded", func(t *testing.T) {
		var (
			backoff = txbuilder.DefaultBalanceBackoff()
			target  = int64(1000)
			targets []int64
		)

		for attempt := 0; attempt < 10; attempt++ {
			reduced, ok := backoff.Reduce(target, 3, 546)
			if !ok {
				break
			}

			require.Less(t, reduced, target)
			target = reduced
			targets = append(targets, target)
		}

		require.Equal(t, []int64{850, 700, 550}, targets)
	})
}

func TestBuildCommitTx(t *testing.T) {
	var (
		txBuilder = txbuilder.NewTxBuilder(&chaincfg.MainNetParams)
		w         = testWallet(t)
	)

	body, err := brc20.NewMint("ordi", "1000").Bytes()
	require.NoError(t, err)

	envelope, err := inscriptions.NewEnvelope(w.XOnlyPubKey(), brc20.DefaultContentType, body, &chaincfg.MainNetParams)
	require.NoError(t, err)

	t.Run("dust change dropped", func(t *testing.T) {
		utxo := bitcoin.NewUTXO(testTxHash, 1, 100000, w.PkScript(), w.Address())

		result, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			UTXOs:           []bitcoin.UTXO{utxo},
			CommitAddress:   envelope.Address.String(),
			Target:          99490,
			SatoshiPerVByte: 3,
		})
		require.NoError(t, err)
		require.Len(t, result.Tx.TxOut, 1)
		require.EqualValues(t, 0, result.Vout)
		require.EqualValues(t, 99490, result.Value)
		require.EqualValues(t, 99490, result.Tx.TxOut[0].Value)
		require.Equal(t, envelope.PkScript, result.Tx.TxOut[0].PkScript)
		require.EqualValues(t, 510, result.Fee)
		require.EqualValues(t, 111, result.VSize)
		require.EqualValues(t, 0, result.Change)
		require.Equal(t, result.Tx.TxHash().String(), result.TxID)
		require.Equal(t, uint32(0xfffffffd), result.Tx.TxIn[0].Sequence)

		verifyTx(t, result.Tx, prevOutsOf(t, utxo))

		decoded, err := txbuilder.DeserializeTx(result.TxHex)
		require.NoError(t, err)
		require.Equal(t, result.TxID, decoded.TxHash().String())
	})

	t.Run("with change", func(t *testing.T) {
		utxos := []bitcoin.UTXO{
			bitcoin.NewUTXO(testTxHash, 2, 5000, w.PkScript(), w.Address()),
			bitcoin.NewUTXO(testTxHash, 3, 200000, w.PkScript(), w.Address()),
		}

		result, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			UTXOs:           utxos,
			CommitAddress:   envelope.Address.String(),
			Target:          10000,
			SatoshiPerVByte: 3,
		})
		require.NoError(t, err)
		require.Len(t, result.Tx.TxIn, 1)
		require.Len(t, result.UsedUTXOs, 1)
		require.EqualValues(t, 200000, result.UsedUTXOs[0].Satoshi())
		require.Len(t, result.Tx.TxOut, 2)
		require.EqualValues(t, 462, result.Fee)
		require.EqualValues(t, 154, result.VSize)
		require.EqualValues(t, 200000-10000-462, result.Change)
		require.Equal(t, w.PkScript(), result.Tx.TxOut[1].PkScript)

		verifyTx(t, result.Tx, prevOutsOf(t, utxos...))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		_, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			UTXOs:           []bitcoin.UTXO{bitcoin.NewUTXO(testTxHash, 0, 1000, w.PkScript(), w.Address())},
			CommitAddress:   envelope.Address.String(),
			Target:          900,
			SatoshiPerVByte: 3,
		})
		require.ErrorIs(t, err, txbuilder.ErrInsufficientBalance)

		var insufficient *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficient)
		require.EqualValues(t, 233, insufficient.Shortfall())
	})

	t.Run("no utxos", func(t *testing.T) {
		_, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			CommitAddress:   envelope.Address.String(),
			Target:          900,
			SatoshiPerVByte: 3,
		})
		require.ErrorIs(t, err, txbuilder.ErrInsufficientBalance)
	})

	t.Run("dust target", func(t *testing.T) {
		_, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			UTXOs:           []bitcoin.UTXO{bitcoin.NewUTXO(testTxHash, 0, 1000, w.PkScript(), w.Address())},
			CommitAddress:   envelope.Address.String(),
			Target:          500,
			SatoshiPerVByte: 3,
		})
		require.ErrorIs(t, err, txbuilder.ErrInvalidCommitTarget)
	})

	t.Run("foreign network address", func(t *testing.T) {
		_, err := txBuilder.BuildCommitTx(txbuilder.CommitParams{
			Wallet:          w,
			UTXOs:           []bitcoin.UTXO{bitcoin.NewUTXO(testTxHash, 0, 100000, w.PkScript(), w.Address())},
			CommitAddress:   "tb1peymd09grxec8qg7tn5vqsmf7j7fhuvw9w8lua3msmzzqhr3qtfjqlj50zg",
			Target:          10000,
			SatoshiPerVByte: 3,
		})
		require.Error(t, err)
	})
}
