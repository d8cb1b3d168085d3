// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/workflow"
)

func newTransferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Inscribes transfer payloads and sends them to destinations",
		Long: `Transfer runs in fanout mode, one main wallet inscribing a transfer for every
TRANSFERS destination, or in collect mode, every wallet of COLLECT_SOURCE_FILE
inscribing a transfer for COLLECT_TARGET_ADDRESS.

The prepare step inscribes transfers and stores them as pending, the send step
sends stored transfers, the auto step sends every transfer right after it is inscribed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, rt.Close()) }()

			var main workflow.Wallet
			if rt.config.Mnemonic != "" || rt.config.Transfer.Mode == config.TransferModeFanout {
				w, err := workflow.MainWallet(&rt.config, rt.log)
				if err != nil {
					return err
				}
				main = w
			}

			summary, err := rt.service.Transfer(cmd.Context(), main)
			if summary != nil && rt.config.DryRun {
				if printErr := printJSON(cmd.OutOrStdout(), summary); printErr != nil {
					return errors.Join(err, printErr)
				}
			}

			return err
		},
	}

	flags := cmd.Flags()
	flags.String("mode", "", "fanout or collect")
	flags.String("step", "", "prepare, send or auto")
	flags.String("amt", "", "amount overriding every transfer amount")
	flags.Bool("skip-completed", false, "skip fanout destinations inscribed by previous runs")
	a.bind(flags, map[string]string{
		"mode":           config.KeyTransferMode,
		"step":           config.KeyTransferStep,
		"amt":            config.KeyTransferAmt,
		"skip-completed": config.KeySkipCompleted,
	})

	return cmd
}
