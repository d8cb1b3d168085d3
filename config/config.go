// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	"github.com/BoostyLabs/brc20/bitcoin"
	"github.com/BoostyLabs/brc20/bitcoin/brc20"
	"github.com/BoostyLabs/brc20/bitcoin/txbuilder"
	"github.com/BoostyLabs/brc20/explorer"
	"github.com/BoostyLabs/brc20/pending"
)

// ErrInvalidConfig defines that configuration values are inconsistent.
var ErrInvalidConfig = errors.New("invalid config")

// Configuration keys, every key is also read from the environment variable of the same name.
const (
	KeyConfigFile = "BRC20_CONFIG"

	KeyMnemonic    = "MAIN_WALLET_MNEMONIC"
	KeyNetwork     = "NETWORK"
	KeyDryRun      = "DRY_RUN"
	KeyTick        = "BRC20_TICK"
	KeyContentType = "BRC20_CONTENT_TYPE"

	KeyMintAmt        = "BRC20_MINT_AMT"
	KeyMintCount      = "BRC20_MINT_COUNT"
	KeyReceiveAddress = "BRC20_RECEIVE_ADDRESS"

	KeyFeeRate       = "FEE_RATE"
	KeyCommitFeeRate = "BRC20_COMMIT_FEE_RATE"
	KeyRevealFeeRate = "BRC20_REVEAL_FEE_RATE"
	KeySendFeeRate   = "BRC20_SEND_FEE_RATE"

	KeyRevealOutputValue = "BRC20_REVEAL_OUTPUT_VALUE"
	KeyDustLimit         = "BRC20_DUST_LIMIT"
	KeyMinUTXOValue      = "BRC20_MIN_UTXO_VALUE"
	KeyBalanceStepMin    = "BRC20_BALANCE_STEP_MIN"
	KeyBalanceStepRate   = "BRC20_BALANCE_STEP_PER_RATE"

	KeyRevealDelay    = "BRC20_REVEAL_DELAY"
	KeyMaxRetry       = "BRC20_MAX_RETRY"
	KeyRetryDelay     = "BRC20_RETRY_DELAY"
	KeySendMaxRetry   = "BRC20_SEND_MAX_RETRY"
	KeySendRetryDelay = "BRC20_SEND_RETRY_DELAY"
	KeyItemDelay      = "BRC20_ITEM_DELAY"
	KeyFailFast       = "BRC20_FAIL_FAST"

	KeyTransferMode         = "BRC20_TRANSFER_MODE"
	KeyTransferStep         = "BRC20_TRANSFER_STEP"
	KeyTransferAmt          = "BRC20_TRANSFER_AMT"
	KeyTransfers            = "TRANSFERS"
	KeyWaitConfirms         = "BRC20_TRANSFER_WAIT_CONFIRMS"
	KeyWaitTimeout          = "BRC20_TRANSFER_WAIT_TIMEOUT"
	KeyWaitPollInterval     = "BRC20_TRANSFER_WAIT_POLL_INTERVAL"
	KeyCollectSourceFile    = "COLLECT_SOURCE_FILE"
	KeyCollectTargetAddress = "COLLECT_TARGET_ADDRESS"
	KeyCollectDefaultAmt    = "COLLECT_DEFAULT_AMT"
	KeyPendingFile          = "BRC20_PENDING_FILE"
	KeyPendingBackend       = "BRC20_PENDING_BACKEND"
	KeySkipCompleted        = "BRC20_SKIP_COMPLETED"

	KeyExplorerBackend = "EXPLORER_BACKEND"
	KeyExplorerURL     = "EXPLORER_URL"
	KeyExplorerTimeout = "EXPLORER_TIMEOUT"
	KeyBitcoindHost    = "BITCOIND_HOST"
	KeyBitcoindUser    = "BITCOIND_USER"
	KeyBitcoindPass    = "BITCOIND_PASS"

	KeyOutputDir   = "OUTPUT_DIR"
	KeyLogDir      = "LOG_DIR"
	KeyLogLevel    = "LOG_LEVEL"
	KeyMetricsAddr = "METRICS_ADDR"
)

const (
	defaultFeeRate             = 3
	defaultMintRevealDelay     = 3000 * time.Millisecond
	defaultTransferRevealDelay = 2000 * time.Millisecond
)

// TransferMode defines how transfers are distributed.
type TransferMode string

const (
	// TransferModeFanout inscribes transfers from main wallet to many destinations.
	TransferModeFanout TransferMode = "fanout"
	// TransferModeCollect inscribes transfers from many source wallets to one destination.
	TransferModeCollect TransferMode = "collect"
)

// TransferStep defines which part of the transfer lifecycle is executed.
type TransferStep string

const (
	// StepPrepare inscribes transfers and stores them as pending.
	StepPrepare TransferStep = "prepare"
	// StepSend sends stored pending transfers.
	StepSend TransferStep = "send"
	// StepAuto prepares and immediately sends every transfer.
	StepAuto TransferStep = "auto"
)

// TransferItem describes single fanout destination.
type TransferItem struct {
	Address string `json:"address" mapstructure:"address"`
	Amt     string `json:"amt" mapstructure:"amt"`
}

// Fees defines fee rates in satoshi per virtual byte.
type Fees struct {
	Commit float64
	Reveal float64
	Send   float64
}

// Retry defines broadcast retry policy.
type Retry struct {
	MaxAttempts     int
	Delay           time.Duration
	SendMaxAttempts int
	SendDelay       time.Duration
}

// Inscription defines output values used by every inscription.
type Inscription struct {
	Tick              string
	ContentType       string
	RevealOutputValue int64
	DustLimit         int64
	MinUTXOValue      int64
	Backoff           txbuilder.BalanceBackoff
}

// Mint defines mint batch.
type Mint struct {
	Amt            string
	Count          int
	ReceiveAddress string
	RevealDelay    time.Duration
}

// Transfer defines transfer batches.
type Transfer struct {
	Mode        TransferMode
	Step        TransferStep
	Amt         string
	Items       []TransferItem
	RevealDelay time.Duration

	WaitConfirms     int64
	WaitTimeout      time.Duration
	WaitPollInterval time.Duration

	CollectSourceFile    string
	CollectTargetAddress string
	CollectDefaultAmt    string

	PendingFile    string
	PendingBackend pending.Backend
	// SkipCompleted excludes fanout destinations already inscribed by previous runs.
	SkipCompleted bool
}

// Explorer defines blockchain backend.
type Explorer struct {
	Backend  string
	URL      string
	Timeout  time.Duration
	Bitcoind explorer.BitcoindConfig
}

// Config is the immutable application configuration.
type Config struct {
	Network  string
	Params   *chaincfg.Params
	Mnemonic string
	DryRun   bool
	FailFast bool

	ItemDelay time.Duration

	Fees        Fees
	Retry       Retry
	Inscription Inscription
	Mint        Mint
	Transfer    Transfer
	Explorer    Explorer

	OutputDir   string
	LogDir      string
	LogLevel    string
	MetricsAddr string
}

// Explorer backends.
const (
	ExplorerEsplora  = "esplora"
	ExplorerBitcoind = "bitcoind"
)

// NewViper returns viper with defaults and environment lookup.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyNetwork, "mainnet")
	v.SetDefault(KeyContentType, brc20.DefaultContentType)
	v.SetDefault(KeyMintCount, 1)
	v.SetDefault(KeyRevealOutputValue, bitcoin.DustLimit)
	v.SetDefault(KeyDustLimit, bitcoin.DustLimit)
	v.SetDefault(KeyMinUTXOValue, explorer.DefaultMinUTXOValue)
	v.SetDefault(KeyBalanceStepMin, txbuilder.DefaultBalanceStepMin)
	v.SetDefault(KeyBalanceStepRate, txbuilder.DefaultBalanceStepPerFeeRate)
	v.SetDefault(KeyMaxRetry, 3)
	v.SetDefault(KeyRetryDelay, 2000)
	v.SetDefault(KeyItemDelay, 1000)
	v.SetDefault(KeyTransferMode, string(TransferModeFanout))
	v.SetDefault(KeyTransferStep, string(StepPrepare))
	v.SetDefault(KeyWaitTimeout, 600000)
	v.SetDefault(KeyWaitPollInterval, 30000)
	v.SetDefault(KeyOutputDir, "outputs")
	v.SetDefault(KeyLogDir, "logs")
	v.SetDefault(KeyPendingFile, "transfer-pending.json")
	v.SetDefault(KeyPendingBackend, string(pending.BackendJSON))
	v.SetDefault(KeyExplorerBackend, ExplorerEsplora)
	v.SetDefault(KeyExplorerURL, "https://mempool.space/api")
	v.SetDefault(KeyExplorerTimeout, 30000)
	v.SetDefault(KeyLogLevel, "info")

	return v
}

// ReadFile merges configuration file into v, supported formats are the ones viper supports (json, yaml, toml, env).
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	return nil
}

// Load builds Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	params, err := NetworkParams(v.GetString(KeyNetwork))
	if err != nil {
		return Config{}, err
	}

	items, err := parseTransfers(v.Get(KeyTransfers))
	if err != nil {
		return Config{}, err
	}

	commitFee := float64(defaultFeeRate)
	switch {
	case v.IsSet(KeyCommitFeeRate):
		commitFee = v.GetFloat64(KeyCommitFeeRate)
	case v.IsSet(KeyFeeRate):
		commitFee = v.GetFloat64(KeyFeeRate)
	}
	revealFee := fallbackFloat(v, KeyRevealFeeRate, commitFee)

	maxRetry := v.GetInt(KeyMaxRetry)
	retryDelay := millis(v, KeyRetryDelay)

	step := TransferStep(strings.ToLower(v.GetString(KeyTransferStep)))
	waitConfirms := int64(0)
	if step == StepAuto {
		waitConfirms = 1
	}

	config := Config{
		Network:   strings.ToLower(v.GetString(KeyNetwork)),
		Params:    params,
		Mnemonic:  strings.TrimSpace(v.GetString(KeyMnemonic)),
		DryRun:    v.GetBool(KeyDryRun),
		FailFast:  v.GetBool(KeyFailFast),
		ItemDelay: millis(v, KeyItemDelay),
		Fees: Fees{
			Commit: commitFee,
			Reveal: revealFee,
			Send:   fallbackFloat(v, KeySendFeeRate, revealFee),
		},
		Retry: Retry{
			MaxAttempts:     maxRetry,
			Delay:           retryDelay,
			SendMaxAttempts: fallbackInt(v, KeySendMaxRetry, maxRetry),
			SendDelay:       fallbackDuration(v, KeySendRetryDelay, retryDelay),
		},
		Inscription: Inscription{
			Tick:              strings.TrimSpace(v.GetString(KeyTick)),
			ContentType:       v.GetString(KeyContentType),
			RevealOutputValue: v.GetInt64(KeyRevealOutputValue),
			DustLimit:         v.GetInt64(KeyDustLimit),
			MinUTXOValue:      v.GetInt64(KeyMinUTXOValue),
			Backoff: txbuilder.BalanceBackoff{
				MinStep:        v.GetInt64(KeyBalanceStepMin),
				StepPerFeeRate: v.GetFloat64(KeyBalanceStepRate),
			},
		},
		Mint: Mint{
			Amt:            strings.TrimSpace(v.GetString(KeyMintAmt)),
			Count:          v.GetInt(KeyMintCount),
			ReceiveAddress: strings.TrimSpace(v.GetString(KeyReceiveAddress)),
			RevealDelay:    fallbackDuration(v, KeyRevealDelay, defaultMintRevealDelay),
		},
		Transfer: Transfer{
			Mode:                 TransferMode(strings.ToLower(v.GetString(KeyTransferMode))),
			Step:                 step,
			Amt:                  strings.TrimSpace(v.GetString(KeyTransferAmt)),
			Items:                items,
			RevealDelay:          fallbackDuration(v, KeyRevealDelay, defaultTransferRevealDelay),
			WaitConfirms:         fallbackInt64(v, KeyWaitConfirms, waitConfirms),
			WaitTimeout:          millis(v, KeyWaitTimeout),
			WaitPollInterval:     millis(v, KeyWaitPollInterval),
			CollectSourceFile:    v.GetString(KeyCollectSourceFile),
			CollectTargetAddress: strings.TrimSpace(v.GetString(KeyCollectTargetAddress)),
			CollectDefaultAmt:    strings.TrimSpace(v.GetString(KeyCollectDefaultAmt)),
			PendingFile:          v.GetString(KeyPendingFile),
			PendingBackend:       pending.Backend(strings.ToLower(v.GetString(KeyPendingBackend))),
			SkipCompleted:        v.GetBool(KeySkipCompleted),
		},
		Explorer: Explorer{
			Backend: strings.ToLower(v.GetString(KeyExplorerBackend)),
			URL:     v.GetString(KeyExplorerURL),
			Timeout: millis(v, KeyExplorerTimeout),
			Bitcoind: explorer.BitcoindConfig{
				Host: v.GetString(KeyBitcoindHost),
				User: v.GetString(KeyBitcoindUser),
				Pass: v.GetString(KeyBitcoindPass),
			},
		},
		OutputDir:   v.GetString(KeyOutputDir),
		LogDir:      v.GetString(KeyLogDir),
		LogLevel:    v.GetString(KeyLogLevel),
		MetricsAddr: v.GetString(KeyMetricsAddr),
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks values shared by every command.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Params == nil {
		invalid("network is not set")
	}
	if c.Fees.Commit <= 0 || c.Fees.Reveal <= 0 || c.Fees.Send <= 0 {
		invalid("fee rates must be positive: commit %v, reveal %v, send %v", c.Fees.Commit, c.Fees.Reveal, c.Fees.Send)
	}
	if c.Retry.MaxAttempts < 1 || c.Retry.SendMaxAttempts < 1 {
		invalid("max retry must be at least 1")
	}
	if c.Retry.Delay < 0 || c.Retry.SendDelay < 0 || c.ItemDelay < 0 {
		invalid("delays must not be negative")
	}
	if c.Inscription.DustLimit < bitcoin.DustLimit {
		invalid("dust limit %d is below %d", c.Inscription.DustLimit, bitcoin.DustLimit)
	}
	if c.Inscription.RevealOutputValue < c.Inscription.DustLimit {
		invalid("reveal output value %d is below dust limit %d", c.Inscription.RevealOutputValue, c.Inscription.DustLimit)
	}
	if c.Inscription.Backoff.MinStep <= 0 || c.Inscription.Backoff.StepPerFeeRate < 0 {
		invalid("balance backoff step must be positive")
	}
	if c.Inscription.ContentType == "" {
		invalid("content type is not set")
	}
	switch c.Transfer.Mode {
	case TransferModeFanout, TransferModeCollect:
	default:
		invalid("unknown transfer mode %q", c.Transfer.Mode)
	}
	switch c.Transfer.Step {
	case StepPrepare, StepSend, StepAuto:
	default:
		invalid("unknown transfer step %q", c.Transfer.Step)
	}
	switch c.Transfer.PendingBackend {
	case pending.BackendJSON, pending.BackendBolt:
	default:
		invalid("unknown pending backend %q", c.Transfer.PendingBackend)
	}
	if c.Transfer.WaitConfirms < 0 {
		invalid("wait confirmations must not be negative")
	}
	switch c.Explorer.Backend {
	case ExplorerEsplora:
		if c.Explorer.URL == "" {
			invalid("explorer url is not set")
		}
	case ExplorerBitcoind:
		if c.Explorer.Bitcoind.Host == "" {
			invalid("bitcoind host is not set")
		}
	default:
		invalid("unknown explorer backend %q", c.Explorer.Backend)
	}

	if len(errs) > 0 {
		return errors.Join(ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// ValidateMint checks values required by mint batch.
func (c Config) ValidateMint() error {
	if c.Inscription.Tick == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyTick)
	}
	if c.Mint.Count < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidConfig, KeyMintCount)
	}
	if err := brc20.ValidateAmount(c.Mint.Amt); err != nil {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("%s: %w", KeyMintAmt, err))
	}

	return c.requireMnemonic()
}

// ValidateTransfer checks values required by transfer batches.
func (c Config) ValidateTransfer() error {
	if c.Inscription.Tick == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyTick)
	}

	if c.Transfer.Mode == TransferModeCollect {
		if c.Transfer.CollectSourceFile == "" {
			return fmt.Errorf("%w: %s is required in collect mode", ErrInvalidConfig, KeyCollectSourceFile)
		}
		if c.Transfer.Step != StepSend && c.Transfer.CollectTargetAddress == "" {
			return fmt.Errorf("%w: %s is required in collect mode", ErrInvalidConfig, KeyCollectTargetAddress)
		}

		return nil
	}

	if c.Transfer.Step != StepSend && len(c.Transfer.Items) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, KeyTransfers)
	}

	return c.requireMnemonic()
}

// requireMnemonic checks main wallet is configured, dry run may use random wallet.
func (c Config) requireMnemonic() error {
	if c.Mnemonic == "" && !c.DryRun {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyMnemonic)
	}

	return nil
}

// NetworkParams returns chain parameters by network name.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case "mainnet", "main", "bitcoin", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3", "test":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidConfig, network)
	}
}

// parseTransfers decodes TRANSFERS value: json array string, comma separated addresses,
// or list of addresses and {address, amt} objects from config file.
func parseTransfers(raw any) ([]TransferItem, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case string:
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, nil
		}

		if strings.HasPrefix(value, "[") {
			var list []any
			if err := json.Unmarshal([]byte(value), &list); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, KeyTransfers, err)
			}

			return parseTransfers(list)
		}

		var items []TransferItem
		for _, address := range strings.Split(value, ",") {
			items = append(items, TransferItem{Address: strings.TrimSpace(address)})
		}

		return items, nil
	case []string:
		items := make([]TransferItem, 0, len(value))
		for _, address := range value {
			items = append(items, TransferItem{Address: strings.TrimSpace(address)})
		}

		return items, nil
	case []any:
		items := make([]TransferItem, 0, len(value))
		for i, entry := range value {
			item, err := parseTransferItem(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %w", ErrInvalidConfig, KeyTransfers, i, err)
			}

			items = append(items, item)
		}

		return items, nil
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidConfig, KeyTransfers, raw)
	}
}

func parseTransferItem(entry any) (TransferItem, error) {
	switch value := entry.(type) {
	case string:
		return TransferItem{Address: strings.TrimSpace(value)}, nil
	case map[string]any:
		var item TransferItem
		for key, field := range value {
			switch strings.ToLower(key) {
			case "address":
				item.Address = strings.TrimSpace(fmt.Sprint(field))
			case "amt", "amount":
				item.Amt = strings.TrimSpace(fmt.Sprint(field))
			}
		}

		return item, nil
	case map[any]any:
		converted := make(map[string]any, len(value))
		for key, field := range value {
			converted[fmt.Sprint(key)] = field
		}

		return parseTransferItem(converted)
	default:
		return TransferItem{}, fmt.Errorf("unsupported entry type %T", entry)
	}
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func fallbackDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if !v.IsSet(key) {
		return fallback
	}

	return millis(v, key)
}

func fallbackFloat(v *viper.Viper, key string, fallback float64) float64 {
	if !v.IsSet(key) {
		return fallback
	}

	return v.GetFloat64(key)
}

func fallbackInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) {
		return fallback
	}

	return v.GetInt(key)
}

func fallbackInt64(v *viper.Viper, key string, fallback int64) int64 {
	if !v.IsSet(key) {
		return fallback
	}

	return v.GetInt64(key)
}
