// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"
)

type balanceErrorType string

const (
	// InsufficientErrorTypeBitcoin defines insufficient wallet bitcoin balance error type.
	InsufficientErrorTypeBitcoin balanceErrorType = "bitcoin"
	// InsufficientErrorTypeCommitOutput defines that commit output does not cover reveal output and fee.
	InsufficientErrorTypeCommitOutput balanceErrorType = "commit output"
)

var (
	// ErrInsufficientBalance matches any insufficient wallet balance error with errors.Is.
	ErrInsufficientBalance = &InsufficientError{Type: InsufficientErrorTypeBitcoin}
	// ErrCommitOutputInsufficient matches commit output insufficient for output + fee error with errors.Is.
	ErrCommitOutputInsufficient = &InsufficientError{Type: InsufficientErrorTypeCommitOutput}
)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Type balanceErrorType
	Need *big.Int
	Have *big.Int
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(type_ balanceErrorType, need, have int64) *InsufficientError {
	return &InsufficientError{Type: type_, Need: big.NewInt(need), Have: big.NewInt(have)}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	var errMsg = fmt.Sprintf("insufficient %s balance", e.Type)
	if e.Type == InsufficientErrorTypeCommitOutput {
		errMsg = "commit output insufficient for output + fee"
	}

	if e.Have != nil && e.Need != nil {
		errMsg += fmt.Sprintf(": Need - %s, Have - %s", e.Need, e.Have)
	}

	return errMsg
}

// Is implements comparator method for [errors] package, errors of the same type are equal.
func (e *InsufficientError) Is(target error) bool {
	var t *InsufficientError
	if !errors.As(target, &t) {
		return false
	}

	return e.Type == t.Type
}

// Shortfall returns missing amount in satoshi, zero if unknown.
func (e *InsufficientError) Shortfall() int64 {
	if e.Need == nil || e.Have == nil {
		return 0
	}

	return new(big.Int).Sub(e.Need, e.Have).Int64()
}

// clarify returns formed error with Need and Have values set.
func (e *InsufficientError) clarify(need, have *big.Int) *InsufficientError {
	return &InsufficientError{e.Type, need, have}
}
