// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/brc20/internal/sequencereader"
)

var (
	// ErrMalformedInscription defines that envelope could not be parsed.
	ErrMalformedInscription = errors.New("inscription is malformed")
	// ErrRepeatedFieldData defines field met twice in one envelope.
	ErrRepeatedFieldData = errors.New("field already filled")
	// ErrNoRevealWitness defines that transaction does not spend through a script path.
	ErrNoRevealWitness = errors.New("no script path witness")
)

// ordMarker is the first push of every envelope.
const ordMarker = "ord"

// Disassembled envelope bounds: OP_FALSE OP_IF <"ord"> ... OP_ENDIF.
const (
	envelopeStartDisasm = "0 OP_IF 6f7264"
	envelopeEndDisasm   = "OP_ENDIF"
	// bodySeparatorDisasm is OP_0, every following push is a body chunk.
	bodySeparatorDisasm = "0"
)

// Inscription is the content of an envelope.
type Inscription struct {
	ContentType     string
	ContentEncoding string
	Metaprotocol    []byte
	Metadata        []byte
	Body            []byte
}

// envelopeDisasm returns disassembled envelope found in data.
func envelopeDisasm(data []byte) (string, error) {
	disasm, err := txscript.DisasmString(data)
	if err != nil {
		return "", ErrMalformedInscription
	}

	start := strings.Index(disasm, envelopeStartDisasm)
	if start == -1 {
		return "", ErrMalformedInscription
	}

	end := strings.Index(disasm[start:], envelopeEndDisasm)
	if end == -1 {
		return "", ErrMalformedInscription
	}

	return disasm[start : start+end+len(envelopeEndDisasm)], nil
}

// ParseRevealTx parses inscription revealed by the first input of tx.
func ParseRevealTx(tx *wire.MsgTx) (*Inscription, error) {
	if len(tx.TxIn) == 0 {
		return nil, ErrNoRevealWitness
	}

	// script path witness ends with tapscript and control block.
	witness := tx.TxIn[0].Witness
	if len(witness) < 2 {
		return nil, ErrNoRevealWitness
	}

	return ParseInscriptionFromWitnessData(witness[len(witness)-2])
}

// ParseInscriptionFromWitnessData parses tapscript leaf into Inscription.
func ParseInscriptionFromWitnessData(data []byte) (*Inscription, error) {
	disasm, err := envelopeDisasm(data)
	if err != nil {
		return nil, err
	}

	sr := sequencereader.New(strings.Split(disasm, " "))
	// OP_FALSE OP_IF <"ord"> OP_ENDIF at least.
	if sr.Len() < 4 {
		return nil, ErrMalformedInscription
	}
	sr.Skip(3)

	inscription := new(Inscription)
	for sr.HasNext() {
		token, _ := sr.Next()
		switch token {
		case envelopeEndDisasm:
			return inscription, nil
		case bodySeparatorDisasm:
			err = inscription.readBody(sr)
		default:
			value, nextErr := sr.Next()
			if nextErr != nil || value == envelopeEndDisasm {
				return nil, ErrMalformedInscription
			}

			err = inscription.setField(token, value)
		}
		if err != nil {
			return nil, err
		}
	}

	return inscription, nil
}

// readBody concatenates body chunks up to OP_ENDIF.
func (i *Inscription) readBody(sr *sequencereader.SequenceReader[string]) error {
	var body strings.Builder
	for sr.HasNext() {
		value, _ := sr.Peek()
		if value == envelopeEndDisasm {
			break
		}

		_, _ = sr.Next()
		if value != bodySeparatorDisasm {
			body.WriteString(value)
		}
	}

	raw, err := hex.DecodeString(body.String())
	if err != nil {
		return ErrMalformedInscription
	}
	i.Body = append(i.Body, raw...)

	return nil
}

// setField stores value of a tagged field, unused known tags are skipped.
func (i *Inscription) setField(tagDisasm, valueDisasm string) error {
	tag, err := parseTag(tagDisasm)
	if err != nil {
		return err
	}
	if !tag.known() {
		return fmt.Errorf("%w: unknown %s", ErrMalformedInscription, tag)
	}

	var value []byte
	if valueDisasm != bodySeparatorDisasm {
		if value, err = hex.DecodeString(valueDisasm); err != nil {
			return ErrMalformedInscription
		}
	}

	repeated := fmt.Errorf("%w: %s", ErrRepeatedFieldData, tag)
	switch tag {
	case TagContentType:
		if i.ContentType != "" {
			return repeated
		}
		i.ContentType = string(value)
	case TagContentEncoding:
		if i.ContentEncoding != "" {
			return repeated
		}
		i.ContentEncoding = string(value)
	case TagMetaprotocol:
		if len(i.Metaprotocol) != 0 {
			return repeated
		}
		i.Metaprotocol = value
	case TagMetadata:
		// metadata may be split into several pushes.
		i.Metadata = append(i.Metadata, value...)
	}

	return nil
}

// IntoScript returns the envelope:
// OP_FALSE OP_IF <"ord"> [<tag> <value>]... [OP_0 <body>] OP_ENDIF.
func (i *Inscription) IntoScript() []byte {
	script := []byte{txscript.OP_FALSE, txscript.OP_IF}
	script = append(script, PushData([]byte(ordMarker))...)

	field := func(tag Tag, value []byte) {
		if len(value) == 0 {
			return
		}
		script = append(script, tag.push()...)
		script = append(script, PushData(value)...)
	}
	field(TagContentType, []byte(i.ContentType))
	field(TagMetadata, i.Metadata)
	field(TagMetaprotocol, i.Metaprotocol)
	field(TagContentEncoding, []byte(i.ContentEncoding))

	if len(i.Body) != 0 {
		script = append(script, txscript.OP_0)
		script = append(script, PushData(i.Body)...)
	}

	return append(script, txscript.OP_ENDIF)
}

// IntoScriptForWitness returns the tapscript leaf <xOnlyPubKey> OP_CHECKSIG <envelope>.
func (i *Inscription) IntoScriptForWitness(xOnlyPubKey []byte) []byte {
	script := PushData(xOnlyPubKey)
	script = append(script, txscript.OP_CHECKSIG)

	return append(script, i.IntoScript()...)
}
