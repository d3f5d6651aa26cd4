package services

import (
	"context"
	"fmt"

	"secondprice-mpc-auction/field"
)

// AuctionResult holds one party's share of its own auction output
// (output[self]). It carries no revealed plain value; revelation to the
// owner is done by OutputPrivacy.
type AuctionResult struct {
	OutputShare field.Element
}

// RunSecondPriceAuction implements §4.8 over the active set T: bit-decompose
// every member's bid share, build the pairwise greater-than matrix, derive
// is_max/is_min, compute the closed-form second-price indicator for
// |T|∈{3,4}, and return every T member's output share. Grounded on
// original_source/circuits/auction.py's gate sequence, reusing this
// module's BitDecomp and GreaterThan building blocks instead of
// auction.py's direct future-chaining.
func RunSecondPriceAuction(ctx context.Context, bctx Broadcaster, mpc *MPCArith, bd *BitDecomp, bidShares map[int]field.Element, activeSet []int) (map[int]field.Element, error) {
	if len(activeSet) != 3 && len(activeSet) != 4 {
		return nil, fmt.Errorf("auction: |T|=%d: %w", len(activeSet), ErrUnsupportedActiveSetSize)
	}

	bitsOf := make(map[int][]field.Element, len(activeSet))
	for _, pid := range activeSet {
		bid, ok := bidShares[pid]
		if !ok {
			return nil, fmt.Errorf("auction: missing bid share for party %d: %w", pid, ErrPrecondition)
		}
		lsb, err := bd.Decompose(ctx, bctx, bid, fmt.Sprintf("bid_%d", pid))
		if err != nil {
			return nil, err
		}
		bitsOf[pid] = reverseBits(lsb)
	}

	gt := make(map[int]map[int]field.Element, len(activeSet))
	for _, i := range activeSet {
		gt[i] = make(map[int]field.Element, len(activeSet))
	}
	for ai, i := range activeSet {
		for _, j := range activeSet[ai+1:] {
			sid := fmt.Sprintf("cmp_%d_%d", i, j)
			gij, err := GreaterThan(ctx, bctx, mpc, bitsOf[i], bitsOf[j], sid)
			if err != nil {
				return nil, err
			}
			gt[i][j] = gij
			gt[j][i] = field.One().Sub(gij)
		}
	}

	isMax := make(map[int]field.Element, len(activeSet))
	isMin := make(map[int]field.Element, len(activeSet))
	wins := make(map[int]field.Element, len(activeSet))
	for _, i := range activeSet {
		maxAcc := field.One()
		minAcc := field.One()
		winsAcc := field.Zero()
		for _, j := range activeSet {
			if j == i {
				continue
			}
			var err error
			maxAcc, err = mpc.Multiply(ctx, bctx, maxAcc, gt[i][j], fmt.Sprintf("max_%d_%d", i, j))
			if err != nil {
				return nil, err
			}
			minAcc, err = mpc.Multiply(ctx, bctx, minAcc, gt[j][i], fmt.Sprintf("min_%d_%d", i, j))
			if err != nil {
				return nil, err
			}
			winsAcc = winsAcc.Add(gt[i][j])
		}
		isMax[i] = maxAcc
		isMin[i] = minAcc
		wins[i] = winsAcc
	}

	isSecond := make(map[int]field.Element, len(activeSet))
	if len(activeSet) == 3 {
		for _, i := range activeSet {
			isSecond[i] = field.One().Sub(isMax[i]).Sub(isMin[i])
		}
	} else {
		// |T|=4: is_second[i] = wins*(wins-1)*(wins-3) * (-1/2), the unique
		// degree-3 polynomial that is 1 at wins=2, 0 at wins in {0,1,3}.
		negHalf := field.New(2).Inverse().Neg()
		for _, i := range activeSet {
			w := wins[i]
			t1, err := mpc.Multiply(ctx, bctx, w, w.Sub(field.One()), fmt.Sprintf("sec_t1_%d", i))
			if err != nil {
				return nil, err
			}
			t2, err := mpc.Multiply(ctx, bctx, t1, w.Sub(field.New(3)), fmt.Sprintf("sec_t2_%d", i))
			if err != nil {
				return nil, err
			}
			isSecond[i] = t2.Mul(negHalf)
		}
	}

	secondPrice := field.Zero()
	for _, i := range activeSet {
		term, err := mpc.Multiply(ctx, bctx, bidShares[i], isSecond[i], fmt.Sprintf("sp_%d", i))
		if err != nil {
			return nil, err
		}
		secondPrice = secondPrice.Add(term)
	}

	out := make(map[int]field.Element, len(activeSet))
	for _, i := range activeSet {
		term, err := mpc.Multiply(ctx, bctx, isMax[i], secondPrice, fmt.Sprintf("out_%d", i))
		if err != nil {
			return nil, err
		}
		out[i] = term
	}
	return out, nil
}

func reverseBits(lsbFirst []field.Element) []field.Element {
	n := len(lsbFirst)
	msbFirst := make([]field.Element, n)
	for i, b := range lsbFirst {
		msbFirst[n-1-i] = b
	}
	return msbFirst
}
