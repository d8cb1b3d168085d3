// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/workflow"
)

func newMintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Inscribes BRC20_MINT_COUNT mint payloads one after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rt, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, rt.Close()) }()

			w, err := workflow.MainWallet(&rt.config, rt.log)
			if err != nil {
				return err
			}

			summary, err := rt.service.Mint(cmd.Context(), w)
			if summary != nil && rt.config.DryRun {
				if printErr := printJSON(cmd.OutOrStdout(), summary); printErr != nil {
					return errors.Join(err, printErr)
				}
			}

			return err
		},
	}

	flags := cmd.Flags()
	flags.String("tick", "", "token ticker")
	flags.String("amt", "", "amount of every mint")
	flags.Int("count", 0, "amount of mint inscriptions")
	flags.String("receive-address", "", "address receiving inscriptions, wallet address by default")
	a.bind(flags, map[string]string{
		"tick":            config.KeyTick,
		"amt":             config.KeyMintAmt,
		"count":           config.KeyMintCount,
		"receive-address": config.KeyReceiveAddress,
	})

	return cmd
}
