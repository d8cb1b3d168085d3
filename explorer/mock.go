// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package explorer

import (
	"context"

	"github.com/BoostyLabs/brc20/bitcoin"
)

// Mock is a test double for Client.
// All function fields must be set before the corresponding method is called.
type Mock struct {
	GetUTXOsFn    func(ctx context.Context, address string) ([]bitcoin.UTXO, error)
	BroadcastFn   func(ctx context.Context, txHex string) (string, error)
	GetTxStatusFn func(ctx context.Context, txID string) (*TxStatus, error)
}

var _ Client = (*Mock)(nil)

func (m *Mock) GetUTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	return m.GetUTXOsFn(ctx, address)
}
func (m *Mock) Broadcast(ctx context.Context, txHex string) (string, error) {
	return m.BroadcastFn(ctx, txHex)
}
func (m *Mock) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	return m.GetTxStatusFn(ctx, txID)
}
