package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
	"secondprice-mpc-auction/poly"
)

type openSession struct {
	mu     sync.Mutex
	shares map[int]field.Element
	order  []int // sender IDs in arrival order, first F+1 are the ones used
	event  *async.Event
}

func newOpenSession() *openSession {
	return &openSession{shares: make(map[int]field.Element), event: async.NewEvent()}
}

// MPCArith implements the arithmetic layer over CSS-shared values: local
// linear operations plus BGW-style secure multiplication (§4.5). Grounded
// on original_source/protocols/mpc_arithmetic.py's gate-by-gate multiply
// (local product, reshare, per-gate ACS, Lagrange degree reduction), wired
// here onto this module's CSS and ACS trackers instead of
// mpc_arithmetic.py's direct asyncio futures.
type MPCArith struct {
	n, f, self int
	css        *CSS
	acs        *ACS
	randFn     func() field.Element
	log        zerolog.Logger

	mu        sync.Mutex
	activeSet []int
	openSess  map[string]*openSession
}

// NewMPCArith builds an arithmetic layer for one party.
func NewMPCArith(self, n, f int, css *CSS, acs *ACS, randFn func() field.Element, logger zerolog.Logger) *MPCArith {
	if randFn == nil {
		randFn = field.Random
	}
	return &MPCArith{
		n: n, f: f, self: self,
		css: css, acs: acs, randFn: randFn,
		log:      logger.With().Str("layer", "MPC").Int("party_id", self).Logger(),
		openSess: make(map[string]*openSession),
	}
}

// SetActiveSet fixes the active party set T: Multiply and
// BitDecomp.GeneratePool take their dealers from it, and Multiply and
// OpenValue refuse to run before it is set. OpenValue does not filter
// shares by it: the Lagrange basis is recomputed per open over whichever
// F+1 distinct senders report in first.
func (m *MPCArith) SetActiveSet(t []int) {
	sorted := append([]int(nil), t...)
	sort.Ints(sorted)

	m.mu.Lock()
	m.activeSet = sorted
	m.mu.Unlock()
}

// Add, Sub and ScalarMul are purely local: linear operations on shares need
// no communication under Shamir sharing.
func (m *MPCArith) Add(a, b field.Element) field.Element      { return a.Add(b) }
func (m *MPCArith) Sub(a, b field.Element) field.Element      { return a.Sub(b) }
func (m *MPCArith) ScalarMul(a, k field.Element) field.Element { return a.Mul(k) }
func (m *MPCArith) AddConst(a, k field.Element) field.Element { return a.Add(k) }

func (m *MPCArith) openSession(sid string) *openSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.openSess[sid]
	if !ok {
		s = newOpenSession()
		m.openSess[sid] = s
	}
	return s
}

// HandleOpen records an inbound MPC_OPEN share. The event fires once F+1
// distinct senders have reported in (§4.5 open_value: "collect >= F+1
// shares"; original_source/protocols/mpc_arithmetic.py:138 fires at
// self.f+1) — not once every T member has, which would let a single
// in-T party's omitted MPC_OPEN block reconstruction forever.
func (m *MPCArith) HandleOpen(_ Broadcaster, env network.Envelope) {
	s := m.openSession(env.SessionID)
	s.mu.Lock()
	if _, seen := s.shares[env.Sender]; !seen {
		s.shares[env.Sender] = env.Share
		s.order = append(s.order, env.Sender)
	}
	have := len(s.order)
	s.mu.Unlock()
	if have >= m.f+1 {
		s.event.Fire()
	}
}

// OpenValue publicly reconstructs the secret behind share a under sid:
// broadcast this party's own share, collect the shares of the first F+1
// distinct senders (membership in T is not checked), and recombine with a
// Lagrange basis computed for that subset (the degree-F sharing reconstructs from any F+1 correct
// shares, so the exact subset each party happens to collect first need not
// match; original_source/protocols/mpc_arithmetic.py:145 reconstructs from
// points[:self.f+1] the same way).
func (m *MPCArith) OpenValue(ctx context.Context, bctx Broadcaster, a field.Element, sid string) (field.Element, error) {
	m.mu.Lock()
	activeSet := append([]int(nil), m.activeSet...)
	m.mu.Unlock()
	if len(activeSet) == 0 {
		return field.Element{}, fmt.Errorf("mpc: OpenValue before SetActiveSet: %w", ErrPrecondition)
	}

	bctx.Broadcast(network.Envelope{
		Type:      network.MPCOpen,
		Sender:    m.self,
		SessionID: sid,
		Share:     a,
	})

	s := m.openSession(sid)
	if err := s.event.Wait(ctx); err != nil {
		return field.Element{}, err
	}

	s.mu.Lock()
	ids := append([]int(nil), s.order[:m.f+1]...)
	ys := make([]field.Element, len(ids))
	for i, id := range ids {
		ys[i] = s.shares[id]
	}
	s.mu.Unlock()

	xs := make([]field.Element, len(ids))
	for i, id := range ids {
		xs[i] = field.FromParty(id)
	}
	lambdas := poly.LagrangeCoefficientsAtZero(xs)

	return poly.Recombine(lambdas, ys), nil
}

func mulDealSID(gateID string, dealer int) string {
	return fmt.Sprintf("mul:%s:d:%d", gateID, dealer)
}

// Multiply computes a share of a*b via BGW multiplication: every active
// party locally computes and CSS-shares its product share, a fresh
// per-gate ACS agrees on which N-F of those shares finalized, and the
// result is degree-reduced by Lagrange-recombining those N-F shares with a
// fresh basis for that gate's accepted set (§4.5).
func (m *MPCArith) Multiply(ctx context.Context, bctx Broadcaster, a, b field.Element, gateID string) (field.Element, error) {
	m.mu.Lock()
	activeSet := append([]int(nil), m.activeSet...)
	m.mu.Unlock()
	if len(activeSet) == 0 {
		return field.Element{}, fmt.Errorf("mpc: Multiply before SetActiveSet: %w", ErrPrecondition)
	}

	d := a.Mul(b)
	m.css.Share(bctx, d, mulDealSID(gateID, m.self), m.randFn)

	agreed, err := AgreeContributors(ctx, bctx, m.acs, m.css, m.self, m.n, m.f, activeSet, "mul:"+gateID,
		func(dealer int) string { return mulDealSID(gateID, dealer) })
	if err != nil {
		return field.Element{}, err
	}
	acceptedDealers := TakeNMinusF(agreed, m.n, m.f)

	xs := make([]field.Element, len(acceptedDealers))
	ys := make([]field.Element, len(acceptedDealers))
	for i, dealer := range acceptedDealers {
		xs[i] = field.FromParty(dealer)
		share, err := m.css.GetShare(mulDealSID(gateID, dealer))
		if err != nil {
			return field.Element{}, err
		}
		ys[i] = share
	}
	lambdas := poly.LagrangeCoefficientsAtZero(xs)
	return poly.Recombine(lambdas, ys), nil
}
