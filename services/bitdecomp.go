package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/field"
)

// BitDecomp implements ripple-borrow bit decomposition over a preprocessed
// pool of shared random bits, per §4.6. Grounded on
// original_source/circuits/bit_decomposition.py's mask-and-open plus
// ripple-borrow subtract, wired onto MPCArith.Multiply for the two
// per-bit-position secure multiplications the spec's XOR/AND identities
// call for.
type BitDecomp struct {
	n, f, self int
	k          int
	mpc        *MPCArith
	css        *CSS
	acs        *ACS
	randBit    func() int // returns a fresh public 0/1 for this party's own preprocessing contribution
	log        zerolog.Logger

	poolMu sync.Mutex
	pool   []field.Element
}

// NewBitDecomp builds a bit-decomposition engine for bit-width k.
func NewBitDecomp(self, n, f, k int, mpc *MPCArith, css *CSS, acs *ACS, randBit func() int, logger zerolog.Logger) *BitDecomp {
	if randBit == nil {
		randBit = func() int { return int(field.Random().Bit(0)) }
	}
	return &BitDecomp{
		n: n, f: f, self: self, k: k,
		mpc: mpc, css: css, acs: acs, randBit: randBit,
		log: logger.With().Str("layer", "MPC").Str("sub", "bitdecomp").Int("party_id", self).Logger(),
	}
}

// GeneratePool extends the preprocessed pool with `count` fresh jointly
// random shared bits: every active party deals its own random bit, ACS
// agrees on which N-F contributions finalized, and the bits are combined
// pairwise via the secure-multiplication XOR identity so the joint result
// is unknown to any single contributor.
func (bd *BitDecomp) GeneratePool(ctx context.Context, bctx Broadcaster, batchID string, count int) error {
	bd.mpc.mu.Lock()
	activeSet := append([]int(nil), bd.mpc.activeSet...)
	bd.mpc.mu.Unlock()
	if len(activeSet) == 0 {
		return fmt.Errorf("bitdecomp: GeneratePool before SetActiveSet: %w", ErrPrecondition)
	}

	tagForDealer := func(dealer int) string {
		return fmt.Sprintf("bits:%s:%d:0", batchID, dealer)
	}

	bitValues := make([]int, count)
	for i := range bitValues {
		bitValues[i] = bd.randBit()
		sid := fmt.Sprintf("bits:%s:%d:%d", batchID, bd.self, i)
		bd.css.Share(bctx, field.New(int64(bitValues[i])), sid, bd.mpc.randFn)
	}

	agreed, err := AgreeContributors(ctx, bctx, bd.acs, bd.css, bd.self, bd.n, bd.f, activeSet, "bits:"+batchID, tagForDealer)
	if err != nil {
		return err
	}
	contributors := TakeNMinusF(agreed, bd.n, bd.f)

	newBits := make([]field.Element, count)
	for i := 0; i < count; i++ {
		var acc field.Element
		for ci, dealer := range contributors {
			sid := fmt.Sprintf("bits:%s:%d:%d", batchID, dealer, i)
			share, err := bd.css.GetShare(sid)
			if err != nil {
				return err
			}
			if ci == 0 {
				acc = share
				continue
			}
			prod, err := bd.mpc.Multiply(ctx, bctx, acc, share, fmt.Sprintf("bits:%s:xor:%d:%d", batchID, i, ci))
			if err != nil {
				return err
			}
			acc = acc.Add(share).Sub(prod.Mul(field.New(2)))
		}
		newBits[i] = acc
	}

	bd.poolMu.Lock()
	bd.pool = append(bd.pool, newBits...)
	bd.poolMu.Unlock()
	return nil
}

func (bd *BitDecomp) consume(k int) ([]field.Element, error) {
	bd.poolMu.Lock()
	defer bd.poolMu.Unlock()
	if len(bd.pool) < k {
		return nil, fmt.Errorf("bitdecomp: need %d bits, have %d: %w", k, len(bd.pool), ErrBitPoolExhausted)
	}
	bits := bd.pool[:k]
	bd.pool = bd.pool[k:]
	return bits, nil
}

// PoolSize reports how many preprocessed bits remain available.
func (bd *BitDecomp) PoolSize() int {
	bd.poolMu.Lock()
	defer bd.poolMu.Unlock()
	return len(bd.pool)
}

// Decompose computes the LSB-first shared bits of x, assuming 0 <= x <
// 2^K. Consumes K bits from the preprocessed pool.
func (bd *BitDecomp) Decompose(ctx context.Context, bctx Broadcaster, x field.Element, sid string) ([]field.Element, error) {
	bits, err := bd.consume(bd.k)
	if err != nil {
		return nil, err
	}

	rSum := field.Zero()
	for j, rj := range bits {
		rSum = rSum.Add(rj.Mul(field.New(int64(1) << uint(j))))
	}

	masked := bd.mpc.Add(x, rSum)
	y, err := bd.mpc.OpenValue(ctx, bctx, masked, sid+":open")
	if err != nil {
		return nil, err
	}
	yInt := y.ToInt64()

	borrow := field.Zero()
	result := make([]field.Element, bd.k)
	for i := 0; i < bd.k; i++ {
		yi := int((yInt >> uint(i)) & 1)
		ri := bits[i]

		var t field.Element
		if yi == 0 {
			t = ri
		} else {
			t = field.One().Sub(ri)
		}

		prod, err := bd.mpc.Multiply(ctx, bctx, t, borrow, fmt.Sprintf("%s:xor:%d", sid, i))
		if err != nil {
			return nil, err
		}
		diff := t.Add(borrow).Sub(prod.Mul(field.New(2)))
		result[i] = diff

		rb, err := bd.mpc.Multiply(ctx, bctx, ri, borrow, fmt.Sprintf("%s:and:%d", sid, i))
		if err != nil {
			return nil, err
		}
		xorRiBorrow := ri.Add(borrow).Sub(rb.Mul(field.New(2)))

		var oneMinusYi field.Element
		if yi == 0 {
			oneMinusYi = field.One()
		} else {
			oneMinusYi = field.Zero()
		}
		borrow = rb.Add(oneMinusYi.Mul(xorRiBorrow))
	}

	return result, nil
}
