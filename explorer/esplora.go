// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/brc20/bitcoin"
)

// DefaultTimeout defines default http request timeout.
const DefaultTimeout = 30 * time.Second

// esploraUTXO describes utxo in esplora api response.
type esploraUTXO struct {
	TxID   string        `json:"txid"`
	Vout   uint32        `json:"vout"`
	Value  int64         `json:"value"`
	Status esploraStatus `json:"status"`
}

// esploraStatus describes transaction status in esplora api response.
type esploraStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	BlockTime   int64  `json:"block_time"`
}

// Esplora is a Client over esplora compatible http api (mempool.space, blockstream.info).
type Esplora struct {
	baseURL       string
	client        *http.Client
	networkParams *chaincfg.Params
}

var _ Client = (*Esplora)(nil)

// NewEsplora is a constructor for Esplora.
func NewEsplora(baseURL string, timeout time.Duration, networkParams *chaincfg.Params) *Esplora {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Esplora{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		networkParams: networkParams,
	}
}

// GetUTXOs returns unspent outputs of the address.
func (e *Esplora) GetUTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	addr, err := btcutil.DecodeAddress(address, e.networkParams)
	if err != nil {
		return nil, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	body, err := e.do(ctx, http.MethodGet, "/address/"+address+"/utxo", nil)
	if err != nil {
		return nil, err
	}

	var payload []esploraUTXO
	if err = json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode utxos: %w", err)
	}

	utxos := make([]bitcoin.UTXO, 0, len(payload))
	for _, u := range payload {
		utxos = append(utxos, bitcoin.NewUTXO(u.TxID, u.Vout, u.Value, script, address))
	}

	return utxos, nil
}

// Broadcast pushes raw transaction, already known transactions are considered broadcasted.
func (e *Esplora) Broadcast(ctx context.Context, txHex string) (string, error) {
	tx, err := decodeTx(txHex)
	if err != nil {
		return "", &BroadcastError{Err: err}
	}
	id := tx.TxHash().String()

	body, err := e.do(ctx, http.MethodPost, "/tx", strings.NewReader(txHex))
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			if isKnownTx(statusErr.body) {
				return id, nil
			}

			return "", &BroadcastError{Detail: statusErr.body}
		}

		return "", &BroadcastError{Err: err}
	}

	if returned := strings.TrimSpace(string(body)); returned != "" {
		id = returned
	}

	return id, nil
}

// GetTxStatus returns transaction confirmation status.
func (e *Esplora) GetTxStatus(ctx context.Context, txID string) (*TxStatus, error) {
	body, err := e.do(ctx, http.MethodGet, "/tx/"+txID+"/status", nil)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return nil, ErrTxNotFound
		}

		return nil, err
	}

	var status esploraStatus
	if err = json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode tx status: %w", err)
	}

	txStatus := &TxStatus{
		Confirmed:   status.Confirmed,
		BlockHeight: status.BlockHeight,
		BlockHash:   status.BlockHash,
		BlockTime:   status.BlockTime,
	}
	if !status.Confirmed {
		return txStatus, nil
	}

	tip, err := e.tipHeight(ctx)
	if err != nil {
		return nil, err
	}
	txStatus.Confirmations = max(tip-status.BlockHeight+1, 1)

	return txStatus, nil
}

// tipHeight returns height of the best known block.
func (e *Esplora) tipHeight(ctx context.Context) (int64, error) {
	body, err := e.do(ctx, http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode tip height: %w", err)
	}

	return height, nil
}

// statusError describes unexpected http status.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// do performs request and returns body of successful response.
func (e *Esplora) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}
