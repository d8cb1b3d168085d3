// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package workflow_test

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
	"github.com/BoostyLabs/brc20/config"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/internal/retry"
	"github.com/BoostyLabs/brc20/journal"
	"github.com/BoostyLabs/brc20/pending"
	"github.com/BoostyLabs/brc20/workflow"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testTxHash   = "5aa4e4e957b467d07413aa75cdab5e4ce9ff2b714cd81b6af0e90bfee5ff070c"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// chainOutput is an unspent output known to fakeChain.
type chainOutput struct {
	txOut   *wire.TxOut
	address string
}

// fakeChain is an in memory chain accepting only transactions with valid signatures spending known outputs.
type fakeChain struct {
	t      *testing.T
	params *chaincfg.Params

	mu             sync.Mutex
	seq            uint32
	unspent        map[wire.OutPoint]chainOutput
	txs            map[string]*wire.MsgTx
	broadcasts     []string
	failBroadcasts int
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t:       t,
		params:  &chaincfg.TestNet3Params,
		unspent: make(map[wire.OutPoint]chainOutput),
		txs:     make(map[string]*wire.MsgTx),
	}
}

// fund creates outputs of values paying to address.
func (c *fakeChain) fund(address string, values ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr, err := btcutil.DecodeAddress(address, c.params)
	require.NoError(c.t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(c.t, err)

	c.seq++
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: c.seq}, nil, nil))
	for _, value := range values {
		tx.AddTxOut(wire.NewTxOut(value, script))
	}

	hash := tx.TxHash()
	for idx, out := range tx.TxOut {
		c.unspent[wire.OutPoint{Hash: hash, Index: uint32(idx)}] = chainOutput{txOut: out, address: address}
	}
}

// balance returns values of unspent outputs of address.
func (c *fakeChain) balance(address string) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var values []int64
	for _, out := range c.unspent {
		if out.address == address {
			values = append(values, out.txOut.Value)
		}
	}
	slices.Sort(values)

	return values
}

// failNext makes next n broadcasts fail.
func (c *fakeChain) failNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failBroadcasts = n
}

func (c *fakeChain) broadcasted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.broadcasts)
}

func (c *fakeChain) client() *explorer.Mock {
	return &explorer.Mock{
		GetUTXOsFn:    c.getUTXOs,
		BroadcastFn:   c.broadcast,
		GetTxStatusFn: c.getTxStatus,
	}
}

func (c *fakeChain) getUTXOs(_ context.Context, address string) ([]bitcoin.UTXO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var utxos []bitcoin.UTXO
	for outpoint, out := range c.unspent {
		if out.address == address {
			utxos = append(utxos, bitcoin.NewUTXO(outpoint.Hash.String(), outpoint.Index, out.txOut.Value, out.txOut.PkScript, address))
		}
	}
	slices.SortFunc(utxos, func(a, b bitcoin.UTXO) int { return strings.Compare(a.Outpoint(), b.Outpoint()) })

	return utxos, nil
}

func (c *fakeChain) broadcast(_ context.Context, txHex string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failBroadcasts > 0 {
		c.failBroadcasts--
		return "", &explorer.BroadcastError{Detail: "mempool min fee not met"}
	}

	tx, err := txbuilder.DeserializeTx(txHex)
	if err != nil {
		return "", err
	}

	var inputsValue, outputsValue int64
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	for _, in := range tx.TxIn {
		out, ok := c.unspent[in.PreviousOutPoint]
		if !ok {
			return "", &explorer.BroadcastError{Detail: "bad-txns-inputs-missingorspent " + in.PreviousOutPoint.String()}
		}

		prevOuts[in.PreviousOutPoint] = out.txOut
		inputsValue += out.txOut.Value
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, in := range tx.TxIn {
		prevOut := prevOuts[in.PreviousOutPoint]

		vm, err := txscript.NewEngine(prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags, nil, sigHashes, prevOut.Value, fetcher)
		if err != nil {
			return "", err
		}
		if err = vm.Execute(); err != nil {
			return "", fmt.Errorf("input %d: %w", idx, err)
		}
	}

	for _, out := range tx.TxOut {
		if out.Value < bitcoin.DustLimit {
			return "", &explorer.BroadcastError{Detail: "dust"}
		}
		outputsValue += out.Value
	}
	if outputsValue > inputsValue {
		return "", &explorer.BroadcastError{Detail: "bad-txns-in-belowout"}
	}

	for _, in := range tx.TxIn {
		delete(c.unspent, in.PreviousOutPoint)
	}

	hash := tx.TxHash()
	for idx, out := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, c.params)
		require.NoError(c.t, err)
		require.Len(c.t, addrs, 1)

		c.unspent[wire.OutPoint{Hash: hash, Index: uint32(idx)}] = chainOutput{txOut: out, address: addrs[0].EncodeAddress()}
	}

	c.txs[hash.String()] = tx
	c.broadcasts = append(c.broadcasts, hash.String())

	return hash.String(), nil
}

func (c *fakeChain) getTxStatus(_ context.Context, txID string) (*explorer.TxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.txs[txID]; !ok {
		return nil, explorer.ErrTxNotFound
	}

	return &explorer.TxStatus{Confirmed: true, Confirmations: 1, BlockHeight: 840000}, nil
}

// instantTimer fires immediately and records requested waits.
type instantTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(duration time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, duration)
	t.mu.Unlock()

	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

// testConfig returns config of auto fanout on testnet without delays.
func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()

	return &config.Config{
		Network:  "testnet",
		Params:   &chaincfg.TestNet3Params,
		Mnemonic: testMnemonic,
		Fees:     config.Fees{Commit: 3, Reveal: 3, Send: 3},
		Retry: config.Retry{
			MaxAttempts:     5,
			Delay:           time.Second,
			SendMaxAttempts: 3,
			SendDelay:       time.Second,
		},
		Inscription: config.Inscription{
			Tick:              "ordi",
			ContentType:       brc20.DefaultContentType,
			RevealOutputValue: 546,
			DustLimit:         546,
			MinUTXOValue:      1000,
			Backoff:           txbuilder.DefaultBalanceBackoff(),
		},
		Mint: config.Mint{Amt: "1000", Count: 1},
		Transfer: config.Transfer{
			Mode:             config.TransferModeFanout,
			Step:             config.StepAuto,
			WaitConfirms:     1,
			WaitTimeout:      time.Second,
			WaitPollInterval: 10 * time.Millisecond,
			PendingFile:      filepath.Join(dir, "output", "pending-transfers.json"),
			PendingBackend:   pending.BackendJSON,
		},
		OutputDir: filepath.Join(dir, "output"),
		LogDir:    filepath.Join(dir, "logs"),
	}
}

// testEnv is a service wired to fake chain with its stores.
type testEnv struct {
	service *workflow.Service
	repo    pending.Repository
	journal *journal.Journal
	hook    *test.Hook
}

func newTestEnv(t *testing.T, cfg *config.Config, client explorer.Client) *testEnv {
	log, hook := test.NewNullLogger()

	j, err := journal.New(cfg.LogDir, cfg.OutputDir)
	require.NoError(t, err)

	repo, err := pending.Open(cfg.Transfer.PendingBackend, cfg.Transfer.PendingFile, log)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repo.Close()) })

	service := workflow.New(cfg, client, repo, j, log,
		workflow.WithRetryOptions(retry.WithTimer(newInstantTimer())),
		workflow.WithClock(func() time.Time { return testTime }),
	)

	return &testEnv{service: service, repo: repo, journal: j, hook: hook}
}
