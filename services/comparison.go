package services

import (
	"context"
	"fmt"

	"secondprice-mpc-auction/field"
)

// GreaterThan implements the MSB-first comparison circuit of §4.7:
// greater_than(a, b) -> shared [a>b], scanning bit positions from most to
// least significant and maintaining a shared running prefix_eq. Grounded
// on original_source/circuits/comparison.py's prefix-scan structure, wired
// onto MPCArith.Multiply for its three multiplications per bit position.
func GreaterThan(ctx context.Context, bctx Broadcaster, mpc *MPCArith, aBitsMSBFirst, bBitsMSBFirst []field.Element, sid string) (field.Element, error) {
	if len(aBitsMSBFirst) != len(bBitsMSBFirst) {
		return field.Element{}, fmt.Errorf("comparison: mismatched bit lengths: %w", ErrPrecondition)
	}

	result := field.Zero()
	prefixEq := field.One()

	for i := range aBitsMSBFirst {
		ai := aBitsMSBFirst[i]
		bi := bBitsMSBFirst[i]

		ab, err := mpc.Multiply(ctx, bctx, ai, bi, fmt.Sprintf("%s:ab:%d", sid, i))
		if err != nil {
			return field.Element{}, err
		}
		gt := ai.Sub(ab)
		eq := field.One().Sub(ai).Sub(bi).Add(ab.Mul(field.New(2)))

		prefGt, err := mpc.Multiply(ctx, bctx, prefixEq, gt, fmt.Sprintf("%s:prefgt:%d", sid, i))
		if err != nil {
			return field.Element{}, err
		}
		result = result.Add(prefGt)

		nextPrefixEq, err := mpc.Multiply(ctx, bctx, prefixEq, eq, fmt.Sprintf("%s:prefeq:%d", sid, i))
		if err != nil {
			return field.Element{}, err
		}
		prefixEq = nextPrefixEq
	}

	return result, nil
}
