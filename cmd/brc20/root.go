// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/internal/logger"
	"github.com/BoostyLabs/brc20/internal/metrics"
	"github.com/BoostyLabs/brc20/journal"
	"github.com/BoostyLabs/brc20/pending"
	"github.com/BoostyLabs/brc20/workflow"
)

// app holds configuration shared by commands.
type app struct {
	viper      *viper.Viper
	configFile string
}

func newRootCmd() *cobra.Command {
	a := &app{viper: config.NewViper()}

	root := &cobra.Command{
		Use:           "brc20",
		Short:         "Inscribes BRC-20 mint and transfer payloads on Bitcoin",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile
			if path == "" {
				path = a.viper.GetString(config.KeyConfigFile)
			}

			return config.ReadFile(a.viper, path)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file, json, yaml, toml or env")
	flags.Bool("dry-run", false, "estimate fees without broadcasting")
	flags.String("network", "", "mainnet, testnet, signet or regtest")
	flags.String("log-level", "", "log level")
	flags.Bool("fail-fast", false, "stop the batch on the first failed item")
	a.bind(flags, map[string]string{
		"dry-run":   config.KeyDryRun,
		"network":   config.KeyNetwork,
		"log-level": config.KeyLogLevel,
		"fail-fast": config.KeyFailFast,
	})

	root.AddCommand(newMintCmd(a), newTransferCmd(a), newWalletCmd(a), newInspectCmd())

	return root
}

// bind maps flags to configuration keys, flag value wins over environment and file when set.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := a.viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// runtime is a set of dependencies of a batch command.
type runtime struct {
	config  config.Config
	log     *logrus.Logger
	client  explorer.Client
	journal *journal.Journal
	repo    pending.Repository
	service *workflow.Service

	closers []func() error
}

// setup loads configuration and opens every dependency of the batch.
func (a *app) setup(ctx context.Context) (_ *runtime, err error) {
	cfg, err := config.Load(a.viper)
	if err != nil {
		return nil, err
	}

	rt := &runtime{config: cfg}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close())
		}
	}()

	log, logCloser, err := logger.New(logger.Config{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	rt.log = log
	rt.closers = append(rt.closers, logCloser.Close)

	switch cfg.Explorer.Backend {
	case config.ExplorerBitcoind:
		bitcoind, err := explorer.NewBitcoind(cfg.Explorer.Bitcoind, cfg.Params)
		if err != nil {
			return nil, err
		}
		rt.client = bitcoind
		rt.closers = append(rt.closers, func() error { bitcoind.Close(); return nil })
	default:
		rt.client = explorer.NewEsplora(cfg.Explorer.URL, cfg.Explorer.Timeout, cfg.Params)
	}

	if rt.journal, err = journal.New(cfg.LogDir, cfg.OutputDir); err != nil {
		return nil, err
	}

	if rt.repo, err = pending.Open(cfg.Transfer.PendingBackend, pendingPath(cfg), log); err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.repo.Close)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.ListenAndServe(ctx, cfg.MetricsAddr); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	rt.service = workflow.New(&rt.config, rt.client, rt.repo, rt.journal, log)

	log.WithFields(logrus.Fields{
		"network":  cfg.Network,
		"explorer": cfg.Explorer.Backend,
		"dryRun":   cfg.DryRun,
	}).Debug("runtime ready")

	return rt, nil
}

// Close releases dependencies in reverse order.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil

	return errors.Join(errs...)
}

// pendingPath places bare pending file name into output dir.
func pendingPath(cfg config.Config) string {
	path := cfg.Transfer.PendingFile
	if filepath.IsAbs(path) || filepath.Dir(path) != "." {
		return path
	}

	return filepath.Join(cfg.OutputDir, path)
}

// printJSON writes v to w as indented json.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
