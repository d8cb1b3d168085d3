// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// idSeparator separates reveal transaction id and output index.
const idSeparator = "i"

// ErrInvalidID defines malformed ordinal id.
var ErrInvalidID = errors.New("invalid ordinal id")

// ID is the ordinal id of an inscribed output, "{revealTxId}i{revealVout}".
type ID struct {
	TxID  chainhash.Hash
	Index uint32
}

// FormatID returns ordinal id string without hash validation.
func FormatID(txHash string, index uint32) string {
	return txHash + idSeparator + strconv.FormatUint(uint64(index), 10)
}

// ParseID parses ordinal id string.
func ParseID(s string) (ID, error) {
	txHash, index, ok := strings.Cut(s, idSeparator)
	if !ok || len(txHash) != chainhash.MaxHashStringSize {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	txID, err := chainhash.NewHashFromStr(txHash)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	vout, err := strconv.ParseUint(index, 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	return ID{TxID: *txID, Index: uint32(vout)}, nil
}

func (id ID) String() string {
	return FormatID(id.TxID.String(), id.Index)
}
