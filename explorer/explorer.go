// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package explorer

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/internal/retry"
)

var (
	// ErrTxNotFound defines that transaction is not known to the backend.
	ErrTxNotFound = errors.New("transaction not found")
	// ErrBroadcastRejected defines that backend refused to accept the transaction.
	ErrBroadcastRejected = errors.New("broadcast rejected")
)

const (
	// DefaultMinUTXOValue defines minimal value of utxo used for funding, smaller ones may carry inscriptions.
	DefaultMinUTXOValue int64 = 1000

	// utxosAttempts defines attempts to fetch address utxos.
	utxosAttempts = 3
	// utxosRetryDelay defines base delay between utxos fetching attempts.
	utxosRetryDelay = 10 * time.Millisecond
)

// knownTxErrors lists backend messages meaning the transaction is already accepted.
var knownTxErrors = []string{
	"transaction already in block chain",
	"txn-already-known",
	"txn-already-in-mempool",
}

// BroadcastError carries backend provided detail of rejected broadcast.
type BroadcastError struct {
	Detail string
	Err    error
}

// Error returns error description.
func (e *BroadcastError) Error() string {
	msg := ErrBroadcastRejected.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns underlying error.
func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// Is reports ErrBroadcastRejected equality.
func (e *BroadcastError) Is(target error) bool {
	return target == ErrBroadcastRejected
}

// TxStatus describes transaction confirmation status.
type TxStatus struct {
	Confirmed bool
	// Confirmations is zero for unconfirmed transaction.
	Confirmations int64
	BlockHeight   int64
	BlockHash     string
	BlockTime     int64
}

// Client is the blockchain backend used by inscription workflows.
type Client interface {
	// GetUTXOs returns unspent outputs of the address.
	GetUTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error)
	// Broadcast pushes raw transaction hex to the network, returns transaction id.
	Broadcast(ctx context.Context, txHex string) (string, error)
	// GetTxStatus returns transaction confirmation status or ErrTxNotFound.
	GetTxStatus(ctx context.Context, txID string) (*TxStatus, error)
}

// PackUTXOs returns utxos with value not less than minValue sorted by value desc.
func PackUTXOs(utxos []bitcoin.UTXO, minValue int64) []bitcoin.UTXO {
	packed := make([]bitcoin.UTXO, 0, len(utxos))
	for _, utxo := range utxos {
		if utxo.Satoshi() >= minValue {
			packed = append(packed, utxo)
		}
	}

	slices.SortStableFunc(packed, func(a, b bitcoin.UTXO) int {
		return b.Amount.Cmp(a.Amount)
	})

	return packed
}

// GetUTXOs fetches address utxos retrying transient failures.
func GetUTXOs(ctx context.Context, client Client, address string) ([]bitcoin.UTXO, error) {
	return retry.Do(ctx, retry.Config{MaxAttempts: utxosAttempts, Delay: utxosRetryDelay},
		func(ctx context.Context, _ int) ([]bitcoin.UTXO, error) {
			return client.GetUTXOs(ctx, address)
		})
}

// isKnownTx reports whether backend message means transaction is already accepted.
func isKnownTx(msg string) bool {
	msg = strings.ToLower(msg)
	for _, known := range knownTxErrors {
		if strings.Contains(msg, known) {
			return true
		}
	}

	return false
}

// decodeTx decodes hex encoded transaction.
func decodeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(txHex))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	tx := new(wire.MsgTx)
	if err = tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	return tx, nil
}
