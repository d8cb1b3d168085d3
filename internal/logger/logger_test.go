// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/internal/logger"
)

func TestNew(t *testing.T) {
	t.Run("file output", func(t *testing.T) {
		dir := t.TempDir()

		log, closer, err := logger.New(logger.Config{Level: "debug", Dir: dir})
		require.NoError(t, err)
		require.Equal(t, logrus.DebugLevel, log.GetLevel())

		log.WithField("item", 1).Info("minted")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(filepath.Join(dir, "brc20.log"))
		require.NoError(t, err)
		require.Contains(t, string(data), "minted")
		require.Contains(t, string(data), "item=1")
	})

	t.Run("default level", func(t *testing.T) {
		log, closer, err := logger.New(logger.Config{})
		require.NoError(t, err)
		require.NoError(t, closer.Close())
		require.Equal(t, logrus.InfoLevel, log.GetLevel())
	})

	t.Run("production level", func(t *testing.T) {
		log, _, err := logger.New(logger.Config{Level: logger.LevelProduction})
		require.NoError(t, err)
		require.Equal(t, logrus.WarnLevel, log.GetLevel())
	})

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := logger.New(logger.Config{Level: "loud"})
		require.Error(t, err)
	})
}
