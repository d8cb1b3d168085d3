// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package sequencereader_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/internal/sequencereader"
)

func TestSequenceReader(t *testing.T) {
	seq := []string{"0", "OP_IF", "6f7264", "OP_ENDIF"}

	t.Run("Next", func(t *testing.T) {
		sr := sequencereader.New(seq)
		for _, expected := range seq {
			require.True(t, sr.HasNext())
			val, err := sr.Next()
			require.NoError(t, err)
			require.Equal(t, expected, val)
		}
		require.False(t, sr.HasNext())

		_, err := sr.Next()
		require.ErrorIs(t, err, sequencereader.ErrSequenceEnded)
	})

	t.Run("Peek", func(t *testing.T) {
		sr := sequencereader.New(seq)
		val, err := sr.Peek()
		require.NoError(t, err)
		require.Equal(t, "0", val)
		require.Equal(t, len(seq), sr.Len())

		_, _ = sr.Next()
		val, err = sr.Peek()
		require.NoError(t, err)
		require.Equal(t, "OP_IF", val)
		require.Equal(t, len(seq)-1, sr.Len())
	})

	t.Run("Skip", func(t *testing.T) {
		sr := sequencereader.New(seq)
		sr.Skip(3)
		require.Equal(t, 1, sr.Len())

		val, err := sr.Next()
		require.NoError(t, err)
		require.Equal(t, "OP_ENDIF", val)

		sr.Skip(10)
		require.Equal(t, 0, sr.Len())
		_, err = sr.Peek()
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		sr := sequencereader.New[int](nil)
		require.False(t, sr.HasNext())
		require.Zero(t, sr.Len())
	})
}
