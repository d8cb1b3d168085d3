// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package wallet

import (
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/tyler-smith/go-bip39"

	"github.com/BoostyLabs/brc20/bitcoin/utils"
)

// ErrInvalidMnemonic defines that provided mnemonic is not valid bip39 phrase.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

const (
	// purposeTaproot defines BIP86 purpose.
	purposeTaproot = 86
	// mnemonicEntropyBits defines entropy size of generated mnemonics (12 words).
	mnemonicEntropyBits = 128
)

// Wallet describes single-key taproot wallet derived at m/86'/coin'/0'/0/0.
type Wallet struct {
	privateKey *btcec.PrivateKey
	address    *btcutil.AddressTaproot
	pkScript   []byte
	params     *chaincfg.Params
}

// FromMnemonic derives taproot wallet from bip39 mnemonic without passphrase.
func FromMnemonic(mnemonic string, params *chaincfg.Params) (*Wallet, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + purposeTaproot,
		hdkeychain.HardenedKeyStart + params.HDCoinType,
		hdkeychain.HardenedKeyStart,
		0,
		0,
	}

	key := master
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}

	privateKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}

	return FromPrivateKey(privateKey, params)
}

// FromPrivateKey is a constructor for Wallet over raw private key.
func FromPrivateKey(privateKey *btcec.PrivateKey, params *chaincfg.Params) (*Wallet, error) {
	address, err := utils.NewTaprootKeySpendAddress(params, privateKey.PubKey())
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		privateKey: privateKey,
		address:    address,
		pkScript:   pkScript,
		params:     params,
	}, nil
}

// Random returns wallet over a freshly generated key, used for fee estimations without mnemonic.
func Random(params *chaincfg.Params) (*Wallet, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	return FromPrivateKey(privateKey, params)
}

// Address returns wallet taproot address as string.
func (w *Wallet) Address() string {
	return w.address.String()
}

// PkScript returns wallet output script.
func (w *Wallet) PkScript() []byte {
	return w.pkScript
}

// PrivateKey returns wallet private key.
func (w *Wallet) PrivateKey() *btcec.PrivateKey {
	return w.privateKey
}

// PubKey returns compressed public key.
func (w *Wallet) PubKey() []byte {
	return w.privateKey.PubKey().SerializeCompressed()
}

// XOnlyPubKey returns 32-byte x-only public key, used as taproot internal key.
func (w *Wallet) XOnlyPubKey() []byte {
	return schnorr.SerializePubKey(w.privateKey.PubKey())
}

// Params returns network params wallet is bound to.
func (w *Wallet) Params() *chaincfg.Params {
	return w.params
}

// Generated describes newly generated wallet.
type Generated struct {
	Address  string
	Mnemonic string
}

// Generate creates count new mnemonics with their taproot addresses.
func Generate(count int, params *chaincfg.Params) ([]Generated, error) {
	generated := make([]Generated, 0, count)
	for i := 0; i < count; i++ {
		entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
		if err != nil {
			return nil, err
		}

		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, err
		}

		w, err := FromMnemonic(mnemonic, params)
		if err != nil {
			return nil, err
		}

		generated = append(generated, Generated{Address: w.Address(), Mnemonic: mnemonic})
	}

	return generated, nil
}
