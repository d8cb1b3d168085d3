// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// fileName defines name of the rotated log file inside log directory.
const fileName = "brc20.log"

// Config defines logger configuration.
type Config struct {
	Level string
	// Dir enables rotated file output in addition to stderr when not empty.
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// LevelProduction logs warnings and errors only.
const LevelProduction = "production"

// New returns configured logger and closer of its file output.
func New(config Config) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})

	level := logrus.InfoLevel
	switch config.Level {
	case "":
	case LevelProduction:
		level = logrus.WarnLevel
	default:
		var err error
		level, err = logrus.ParseLevel(config.Level)
		if err != nil {
			return nil, nil, err
		}
	}
	log.SetLevel(level)
	if level >= logrus.DebugLevel {
		log.SetReportCaller(true)
	}

	if config.Dir == "" {
		log.SetOutput(os.Stderr)
		return log, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(config.Dir, fileName),
		MaxSize:    max(config.MaxSizeMB, 10),
		MaxBackups: max(config.MaxBackups, 3),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))

	return log, file, nil
}
