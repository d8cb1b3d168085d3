// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
)

const testRevealTxID = "521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da"

func TestID(t *testing.T) {
	t.Run("ParseID", func(t *testing.T) {
		tests := []struct {
			value string
			index uint32
			valid bool
		}{
			{testRevealTxID + "i0", 0, true},
			{testRevealTxID + "i1", 1, true},
			{testRevealTxID + "i4294967295", 4294967295, true},
			{testRevealTxID + "i4294967296", 0, false},
			{testRevealTxID + "i", 0, false},
			{testRevealTxID + "i-1", 0, false},
			{testRevealTxID, 0, false},
			{"521f8eccffa4c41a3a7728ddi12ea5a4a02feed81f41159231251ecf1e5c79dai0", 0, false},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f411251ecf1e5c79dai0", 0, false},
			{"zz1f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79dai0", 0, false},
		}
		for _, test := range tests {
			id, err := inscriptions.ParseID(test.value)
			if !test.valid {
				require.ErrorIs(t, err, inscriptions.ErrInvalidID, test.value)
				continue
			}

			require.NoError(t, err, test.value)
			require.Equal(t, testRevealTxID, id.TxID.String())
			require.Equal(t, test.index, id.Index)
			require.Equal(t, test.value, id.String())
		}
	})

	t.Run("FormatID", func(t *testing.T) {
		require.Equal(t, testRevealTxID+"i0", inscriptions.FormatID(testRevealTxID, 0))
		require.Equal(t, "abci12", inscriptions.FormatID("abc", 12))
	})
}
