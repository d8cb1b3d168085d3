// Copyright (C) 2022 Creditor Corp. Group.
// See LICENSE for copying information.

package numbers

import (
	"math"
	"math/big"
)

// Zero defines 0 number.
const Zero = 0

// IsGreater returns true is a > b.
func IsGreater(a, b *big.Int) bool {
	return a.Cmp(b) > Zero
}

// IsLess returns true is a < b.
func IsLess(a, b *big.Int) bool {
	return a.Cmp(b) < Zero
}

// CeilMul returns ceil(size * rate), used to turn virtual size and fee rate (sat/vB) into a fee in satoshi.
func CeilMul(size int64, rate float64) int64 {
	return int64(math.Ceil(float64(size) * rate))
}
