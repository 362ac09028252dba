// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// minI128, maxI128 bound the signed 128-bit accumulator used for tick net
// liquidity and pool active liquidity. big.Int carries no width of its own,
// so range checks are done explicitly against these bounds, matching Rust's
// checked_add on i128 (spec §4.2, testable property 4).
var (
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// applyLiquidityDelta returns current+delta if the mathematical sum fits in
// a signed 128-bit accumulator, else ErrArithmeticOverflow.
func applyLiquidityDelta(current, delta *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(current, delta)
	if sum.Cmp(maxI128) > 0 || sum.Cmp(minI128) < 0 {
		return nil, fmt.Errorf("%w: tick liquidity overflow: %s + %s", ErrArithmeticOverflow, current, delta)
	}
	return sum, nil
}

// tickInRange reports whether l <= c < u (lower inclusive, upper exclusive).
func tickInRange(c, l, u int32) bool {
	return c >= l && c < u
}

// uint256FromBig converts a non-negative big.Int that fits in 256 bits to a
// *uint256.Int. Active pool liquidity is tracked as unsigned (it is a
// quantity, not a signed delta); a negative or oversized result here means
// the accumulated deltas drove liquidity out of its valid range.
func uint256FromBig(x *big.Int) (*uint256.Int, bool) {
	if x.Sign() < 0 || x.BitLen() > 256 {
		return nil, true
	}
	u, overflow := uint256.FromBig(x)
	return u, overflow
}
