// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/brc20/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
)

// inspection describes inscription revealed by a transaction.
type inspection struct {
	TxID            string `json:"txid"`
	InscriptionID   string `json:"inscriptionId"`
	ContentType     string `json:"contentType"`
	ContentEncoding string `json:"contentEncoding,omitempty"`
	Metaprotocol    string `json:"metaprotocol,omitempty"`
	Body            string `json:"body,omitempty"`
	RawBody         []byte `json:"rawBody,omitempty"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <rawTxHex>",
		Short: "Prints inscription revealed by a raw transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := txbuilder.DeserializeTx(args[0])
			if err != nil {
				return err
			}

			inscription, err := inscriptions.ParseRevealTx(tx)
			if err != nil {
				return err
			}

			txID := tx.TxHash().String()
			result := inspection{
				TxID:            txID,
				InscriptionID:   inscriptions.FormatID(txID, txbuilder.RevealInscriptionOutput),
				ContentType:     inscription.ContentType,
				ContentEncoding: inscription.ContentEncoding,
				Metaprotocol:    string(inscription.Metaprotocol),
			}
			if utf8.Valid(inscription.Body) {
				result.Body = string(inscription.Body)
			} else {
				result.RawBody = inscription.Body
			}

			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
