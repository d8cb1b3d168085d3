// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/brc20/bitcoin/wallet"
	"github.com/BoostyLabs/brc20/config"
)

// walletsFile stores generated wallets as address---mnemonic lines.
const walletsFile = "btc-wallet.txt"

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet utilities",
	}

	var count int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generates taproot wallets and appends them to OUTPUT_DIR/" + walletsFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("%w: count must be at least 1", config.ErrInvalidConfig)
			}

			params, err := config.NetworkParams(a.viper.GetString(config.KeyNetwork))
			if err != nil {
				return err
			}

			generated, err := wallet.Generate(count, params)
			if err != nil {
				return err
			}

			path, err := appendWallets(a.viper.GetString(config.KeyOutputDir), generated)
			if err != nil {
				return err
			}

			for _, g := range generated {
				fmt.Fprintln(cmd.OutOrStdout(), g.Address)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d wallets appended to %s\n", len(generated), path)

			return nil
		},
	}
	generate.Flags().IntVarP(&count, "count", "n", 1, "amount of wallets")

	cmd.AddCommand(generate)

	return cmd
}

// appendWallets appends generated wallets to the wallets file of dir.
func appendWallets(dir string, generated []wallet.Generated) (_ string, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, walletsFile)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	defer func() { err = errors.Join(err, file.Close()) }()

	var sb strings.Builder
	for _, g := range generated {
		sb.WriteString(g.Address + "---" + g.Mnemonic + "\n")
	}

	_, err = file.WriteString(sb.String())

	return path, err
}
