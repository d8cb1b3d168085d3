// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Tag distinguishes envelope fields.
type Tag byte

// Envelope field tags. Only content type, content encoding, metaprotocol and metadata
// are written, the rest are recognised by the parser and skipped.
const (
	TagContentType     Tag = 1
	TagPointer         Tag = 2
	TagParent          Tag = 3
	TagMetadata        Tag = 5
	TagMetaprotocol    Tag = 7
	TagContentEncoding Tag = 9
	TagDelegate        Tag = 11
	TagNote            Tag = 15
	TagUnbound         Tag = 66
	TagNop             Tag = 255
)

var tagNames = map[Tag]string{
	TagContentType:     "content type",
	TagPointer:         "pointer",
	TagParent:          "parent",
	TagMetadata:        "metadata",
	TagMetaprotocol:    "metaprotocol",
	TagContentEncoding: "content encoding",
	TagDelegate:        "delegate",
	TagNote:            "note",
	TagUnbound:         "unbound",
	TagNop:             "nop",
}

// push returns tag as one byte data push. Tag 1 is never encoded as OP_1.
func (t Tag) push() []byte {
	return []byte{txscript.OP_DATA_1, byte(t)}
}

// known reports whether the parser accepts the tag.
func (t Tag) known() bool {
	_, ok := tagNames[t]
	return ok
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return fmt.Sprintf("tag %d", byte(t))
}

// parseTag decodes disassembled tag push, e.g. "01".
func parseTag(disasm string) (Tag, error) {
	raw, err := hex.DecodeString(disasm)
	if err != nil || len(raw) != 1 {
		return 0, fmt.Errorf("%w: tag %q", ErrMalformedInscription, disasm)
	}

	return Tag(raw[0]), nil
}
