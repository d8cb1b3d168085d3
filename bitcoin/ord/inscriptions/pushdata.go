// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/txscript"
)

// PushData returns data prefixed with the shortest push operation for its length:
// direct length byte below OP_PUSHDATA1, then OP_PUSHDATA1, OP_PUSHDATA2 and OP_PUSHDATA4.
// Small values are always pushed as data, never as OP_N, so that the script bytes
// do not depend on the pushed content.
func PushData(data []byte) []byte {
	size := len(data)

	var prefix []byte
	switch {
	case size < txscript.OP_PUSHDATA1:
		prefix = []byte{byte(size)}
	case size <= 0xff:
		prefix = []byte{txscript.OP_PUSHDATA1, byte(size)}
	case size <= 0xffff:
		prefix = binary.LittleEndian.AppendUint16([]byte{txscript.OP_PUSHDATA2}, uint16(size))
	default:
		prefix = binary.LittleEndian.AppendUint32([]byte{txscript.OP_PUSHDATA4}, uint32(size))
	}

	return append(prefix, data...)
}
