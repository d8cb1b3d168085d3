// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package explorer

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/BoostyLabs/brc20/bitcoin"
)

// maxConfirmations defines upper bound of confirmations for unspent outputs listing.
const maxConfirmations = 9999999

// BitcoindConfig defines bitcoind rpc connection.
type BitcoindConfig struct {
	Host string
	User string
	Pass string
}

// Bitcoind is a Client over bitcoind json rpc.
// Listing utxos requires the address to be watched by the node wallet.
type Bitcoind struct {
	client        *rpcclient.Client
	networkParams *chaincfg.Params
}

var _ Client = (*Bitcoind)(nil)

// NewBitcoind is a constructor for Bitcoind.
func NewBitcoind(config BitcoindConfig, networkParams *chaincfg.Params) (*Bitcoind, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         config.Host,
		User:         config.User,
		Pass:         config.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, err
	}

	return &Bitcoind{client: client, networkParams: networkParams}, nil
}

// Close shuts rpc client down.
func (b *Bitcoind) Close() {
	b.client.Shutdown()
}

// GetUTXOs returns unspent outputs of the address known to node wallet.
func (b *Bitcoind) GetUTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := btcutil.DecodeAddress(address, b.networkParams)
	if err != nil {
		return nil, err
	}

	unspent, err := b.client.ListUnspentMinMaxAddresses(0, maxConfirmations, []btcutil.Address{addr})
	if err != nil {
		return nil, err
	}

	utxos := make([]bitcoin.UTXO, 0, len(unspent))
	for _, u := range unspent {
		amount, err := btcutil.NewAmount(u.Amount)
		if err != nil {
			return nil, err
		}

		script, err := hex.DecodeString(u.ScriptPubKey)
		if err != nil {
			return nil, err
		}

		utxos = append(utxos, bitcoin.NewUTXO(u.TxID, u.Vout, int64(amount), script, address))
	}

	return utxos, nil
}

// Broadcast pushes raw transaction, already known transactions are considered broadcasted.
func (b *Bitcoind) Broadcast(ctx context.Context, txHex string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tx, err := decodeTx(txHex)
	if err != nil {
		return "", &BroadcastError{Err: err}
	}

	hash, err := b.client.SendRawTransaction(tx, false)
	if err != nil {
		if isKnownTx(err.Error()) {
			return tx.TxHash().String(), nil
		}

		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) {
			return "", &BroadcastError{Detail: rpcErr.Message}
		}

		return "", &BroadcastError{Err: err}
	}

	return hash.String(), nil
}

// GetTxStatus returns transaction confirmation status, requires node transaction index for mined transactions.
func (b *Bitcoind) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return nil, err
	}

	raw, err := b.client.GetRawTransactionVerbose(hash)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return nil, ErrTxNotFound
		}

		return nil, err
	}

	status := &TxStatus{
		Confirmed:     raw.Confirmations > 0,
		Confirmations: int64(raw.Confirmations),
		BlockHash:     raw.BlockHash,
		BlockTime:     raw.Blocktime,
	}
	if !status.Confirmed || raw.BlockHash == "" {
		return status, nil
	}

	blockHash, err := chainhash.NewHashFromStr(raw.BlockHash)
	if err != nil {
		return nil, err
	}

	header, err := b.client.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return nil, err
	}
	status.BlockHeight = int64(header.Height)

	return status, nil
}
