package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
	"secondprice-mpc-auction/poly"
)

type maskSession struct {
	mu     sync.Mutex
	shares map[int]field.Element
	event  *async.Event
}

func newMaskSession() *maskSession {
	return &maskSession{shares: make(map[int]field.Element), event: async.NewEvent()}
}

// OutputPrivacy implements the mask-and-open output-revelation step of
// §4.9: the masked value is opened publicly, but the mask itself is only
// ever reconstructed by its owner from privately-sent shares. Grounded on
// original_source/protocols/output_privacy.py.
type OutputPrivacy struct {
	n, f, self int
	mpc        *MPCArith
	log        zerolog.Logger

	mu   sync.Mutex
	sess map[string]*maskSession
}

// NewOutputPrivacy builds an output-privacy helper for one party.
func NewOutputPrivacy(self, n, f int, mpc *MPCArith, logger zerolog.Logger) *OutputPrivacy {
	return &OutputPrivacy{
		n: n, f: f, self: self,
		mpc:  mpc,
		log:  logger.With().Str("layer", "MPC").Str("sub", "outputprivacy").Int("party_id", self).Logger(),
		sess: make(map[string]*maskSession),
	}
}

func (op *OutputPrivacy) session(sid string) *maskSession {
	op.mu.Lock()
	defer op.mu.Unlock()
	s, ok := op.sess[sid]
	if !ok {
		s = newMaskSession()
		op.sess[sid] = s
	}
	return s
}

// HandleMaskShare records an inbound MASK_SHARE point toward this party's
// own owned output.
func (op *OutputPrivacy) HandleMaskShare(_ Broadcaster, env network.Envelope) {
	s := op.session(env.SessionID)
	s.mu.Lock()
	s.shares[env.Point] = env.Share
	ready := len(s.shares) >= op.f+1
	s.mu.Unlock()
	if ready {
		s.event.Fire()
	}
}

// RevealToOwner runs §4.9 for one owned output: publicly open o+m, send
// every party's mask share to owner privately, and, if this party is the
// owner, reconstruct m from F+1 shares and return y-m. Non-owners return
// (nil, nil).
func (op *OutputPrivacy) RevealToOwner(ctx context.Context, bctx Broadcaster, outputShare field.Element, owner int, maskShare field.Element, sid string) (*field.Element, error) {
	masked := op.mpc.Add(outputShare, maskShare)
	y, err := op.mpc.OpenValue(ctx, bctx, masked, sid+":open")
	if err != nil {
		return nil, err
	}

	if owner == op.self {
		op.HandleMaskShare(bctx, network.Envelope{SessionID: sid, Point: op.self, Share: maskShare})
	} else {
		bctx.Send(owner, network.Envelope{
			Type:      network.MaskShare,
			Sender:    op.self,
			SessionID: sid,
			Point:     op.self,
			Share:     maskShare,
		})
	}

	if owner != op.self {
		return nil, nil
	}

	s := op.session(sid)
	if err := s.event.Wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	pts := smallestPoints(s.shares, op.f+1)
	s.mu.Unlock()
	if len(pts) < op.f+1 {
		return nil, fmt.Errorf("outputprivacy: insufficient mask shares for %s: %w", sid, ErrPrecondition)
	}

	m := poly.InterpolateAtZero(pts)
	out := y.Sub(m)
	return &out, nil
}
