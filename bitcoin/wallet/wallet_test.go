// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package wallet_test

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin/wallet"
)

// bip86Mnemonic defines mnemonic of BIP86 test vectors.
const bip86Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestWallet(t *testing.T) {
	t.Run("FromMnemonic", func(t *testing.T) {
		w, err := wallet.FromMnemonic(bip86Mnemonic, &chaincfg.MainNetParams)
		require.NoError(t, err)
		require.Equal(t, "bc1p5cyxnuxmeuwuvkwfem96lqzszd02n6xdcjrs20cac6yqjjwudpxqkedrcr", w.Address())
		require.Len(t, w.XOnlyPubKey(), 32)
		require.Len(t, w.PubKey(), 33)
		require.Equal(t, w.PubKey()[1:], w.XOnlyPubKey())
		require.Len(t, w.PkScript(), 34)

		spaced, err := wallet.FromMnemonic("  "+strings.ReplaceAll(bip86Mnemonic, " ", "   ")+"\n", &chaincfg.MainNetParams)
		require.NoError(t, err)
		require.Equal(t, w.Address(), spaced.Address())
	})

	t.Run("invalid mnemonic", func(t *testing.T) {
		_, err := wallet.FromMnemonic("abandon abandon", &chaincfg.MainNetParams)
		require.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
	})

	t.Run("Random", func(t *testing.T) {
		first, err := wallet.Random(&chaincfg.MainNetParams)
		require.NoError(t, err)
		second, err := wallet.Random(&chaincfg.MainNetParams)
		require.NoError(t, err)
		require.NotEqual(t, first.Address(), second.Address())
	})

	t.Run("Generate", func(t *testing.T) {
		generated, err := wallet.Generate(3, &chaincfg.MainNetParams)
		require.NoError(t, err)
		require.Len(t, generated, 3)

		for _, g := range generated {
			require.Len(t, strings.Fields(g.Mnemonic), 12)

			w, err := wallet.FromMnemonic(g.Mnemonic, &chaincfg.MainNetParams)
			require.NoError(t, err)
			require.Equal(t, g.Address, w.Address())
		}
	})
}
