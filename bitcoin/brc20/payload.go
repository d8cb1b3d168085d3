// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package brc20

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPayload defines errors class for payload validation.
var ErrInvalidPayload = errors.New("invalid brc-20 payload")

const (
	// Protocol defines BRC-20 protocol identifier.
	Protocol = "brc-20"
	// DefaultContentType defines content type the payload is inscribed with by default.
	DefaultContentType = "text/plain;charset=utf-8"

	// maxDecimals defines maximum decimals of the BRC-20 amount.
	maxDecimals = 18
)

// Op defines BRC-20 operation.
type Op string

const (
	// OpMint defines mint operation.
	OpMint Op = "mint"
	// OpTransfer defines transfer inscription operation.
	OpTransfer Op = "transfer"
)

// Payload describes BRC-20 inscription content.
// Field order defines JSON key order, which is committed into the envelope script.
type Payload struct {
	P    string `json:"p"`
	Op   Op     `json:"op"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

// NewMint is a constructor for mint Payload.
func NewMint(tick, amt string) Payload {
	return Payload{P: Protocol, Op: OpMint, Tick: strings.TrimSpace(tick), Amt: strings.TrimSpace(amt)}
}

// NewTransfer is a constructor for transfer Payload.
func NewTransfer(tick, amt string) Payload {
	return Payload{P: Protocol, Op: OpTransfer, Tick: strings.TrimSpace(tick), Amt: strings.TrimSpace(amt)}
}

// Validate checks that payload fields are filled and amount is a positive decimal.
func (p Payload) Validate() error {
	if p.P != Protocol {
		return fmt.Errorf("%w: unexpected protocol %q", ErrInvalidPayload, p.P)
	}
	if p.Op != OpMint && p.Op != OpTransfer {
		return fmt.Errorf("%w: unexpected operation %q", ErrInvalidPayload, p.Op)
	}
	if p.Tick == "" {
		return fmt.Errorf("%w: empty tick", ErrInvalidPayload)
	}

	return ValidateAmount(p.Amt)
}

// Bytes returns payload serialized as UTF-8 JSON without insignificant whitespace.
func (p Payload) Bytes() ([]byte, error) {
	var buf strings.Builder
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(p); err != nil {
		return nil, err
	}

	return []byte(strings.TrimSuffix(buf.String(), "\n")), nil
}

// ValidateAmount checks that amount is a positive decimal number with at most 18 decimals.
func ValidateAmount(amt string) error {
	if amt == "" {
		return fmt.Errorf("%w: empty amount", ErrInvalidPayload)
	}

	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", ErrInvalidPayload, amt, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount %q is not positive", ErrInvalidPayload, amt)
	}
	if -amount.Exponent() > maxDecimals && !amount.Equal(amount.Truncate(maxDecimals)) {
		return fmt.Errorf("%w: amount %q has more than %d decimals", ErrInvalidPayload, amt, maxDecimals)
	}
	if strings.ContainsAny(amt, "eE+") {
		return fmt.Errorf("%w: amount %q must be plain decimal", ErrInvalidPayload, amt)
	}

	return nil
}
