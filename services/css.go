package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
	"secondprice-mpc-auction/poly"
)

type cssStatus int

const (
	cssPending cssStatus = iota
	cssFinalized
	cssInvalid // reserved by the data model; never reached under omission-only faults
)

type cssSession struct {
	mu sync.Mutex

	status cssStatus
	share  *field.Element // own share, once dealt directly or derived from echoes

	echoes    map[int]field.Element // point -> value, first-seen per point wins
	readySent bool
	vid       string

	finalizedEvent *async.Event

	recoverShares map[int]field.Element
	recoverEvent  *async.Event

	revealShares map[int]field.Element
	revealEvent  *async.Event
}

func newCSSSession() *cssSession {
	return &cssSession{
		echoes:         make(map[int]field.Element),
		finalizedEvent: async.NewEvent(),
		recoverShares:  make(map[int]field.Element),
		recoverEvent:   async.NewEvent(),
		revealShares:   make(map[int]field.Element),
		revealEvent:    async.NewEvent(),
	}
}

// CSS implements Complete Secret Sharing per §4.4, grounded on
// original_source/protocols/css.py: a dealer shares a degree-F polynomial,
// every party echoes its point, and a session finalizes once F+1 distinct
// echoes are seen (not N-F readies — the deliberate echo-finalize deviation
// flagged as an open design point in §9).
type CSS struct {
	n, f, self int
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*cssSession
}

// NewCSS builds a CSS tracker for one party.
func NewCSS(self, n, f int, logger zerolog.Logger) *CSS {
	return &CSS{
		n: n, f: f, self: self,
		log:      logger.With().Str("layer", "CSS").Int("party_id", self).Logger(),
		sessions: make(map[string]*cssSession),
	}
}

func (c *CSS) session(sid string) *cssSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sid]
	if !ok {
		s = newCSSSession()
		c.sessions[sid] = s
	}
	return s
}

// Share is the dealer-only entry point: share(secret, sid). Builds a
// degree-F polynomial with the given constant term, unicasts each other
// party's point, and locally echoes its own.
func (c *CSS) Share(ctx Broadcaster, secret field.Element, sid string, randFn func() field.Element) {
	p := poly.Random(c.f, secret, randFn)
	for i := 1; i <= c.n; i++ {
		point := p.Evaluate(field.FromParty(i))
		if i == c.self {
			c.recordOwnShare(ctx, sid, point)
			continue
		}
		ctx.Send(i, network.Envelope{
			Type:      network.CSSShare,
			Sender:    c.self,
			SessionID: sid,
			Point:     i,
			Share:     point,
		})
	}
}

// recordOwnShare is the common path for both "I am the dealer, and i==self"
// and "I received a CSS_SHARE addressed to me": record the share, then
// broadcast an echo of it (which self-delivers through the same HandleEcho
// path, keeping echo-counting uniform regardless of origin).
func (c *CSS) recordOwnShare(ctx Broadcaster, sid string, value field.Element) {
	s := c.session(sid)
	s.mu.Lock()
	if s.share == nil {
		v := value
		s.share = &v
	}
	s.mu.Unlock()

	ctx.Broadcast(network.Envelope{
		Type:      network.CSSEcho,
		Sender:    c.self,
		SessionID: sid,
		Point:     c.self,
		Share:     value,
	})
}

// HandleShare processes an inbound CSS_SHARE addressed to this party.
func (c *CSS) HandleShare(ctx Broadcaster, env network.Envelope) {
	c.recordOwnShare(ctx, env.SessionID, env.Share)
}

// HandleEcho processes an inbound CSS_ECHO: tally it, amplify with READY at
// F+1 distinct echoes, and attempt finalization.
func (c *CSS) HandleEcho(ctx Broadcaster, env network.Envelope) {
	s := c.session(env.SessionID)

	s.mu.Lock()
	if s.status == cssFinalized {
		if _, known := s.echoes[env.Point]; !known {
			s.echoes[env.Point] = env.Share
		}
		s.mu.Unlock()
		return
	}
	if _, known := s.echoes[env.Point]; !known {
		s.echoes[env.Point] = env.Share
	}
	count := len(s.echoes)
	shouldReady := count >= c.f+1 && !s.readySent
	if shouldReady {
		s.readySent = true
	}
	s.mu.Unlock()

	if shouldReady {
		ctx.Broadcast(network.Envelope{
			Type:      network.CSSReady,
			Sender:    c.self,
			SessionID: env.SessionID,
		})
	}
	c.tryFinalize(env.SessionID, s)
}

// HandleReady is a no-op beyond logging: finalization in this design is
// driven by echoes, not by a separate N-F ready threshold (§4.4, §9).
func (c *CSS) HandleReady(_ Broadcaster, env network.Envelope) {
	c.log.Trace().Str("sid", env.SessionID).Msg("ready observed (not used for finalization)")
}

func (c *CSS) tryFinalize(sid string, s *cssSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != cssPending {
		return
	}
	if len(s.echoes) < c.f+1 {
		return
	}
	s.status = cssFinalized
	s.vid = computeVID(sid, s.echoes, c.n, c.f)
	if s.share == nil {
		pts := smallestPoints(s.echoes, c.f+1)
		derived := poly.InterpolateAt(pts, field.FromParty(c.self))
		s.share = &derived
	}
	c.log.Debug().Str("sid", sid).Str("vid", s.vid).Msg("finalized")
	s.finalizedEvent.Fire()
}

// smallestPoints returns the k echo entries with the smallest point IDs, as
// poly.Point values, for deterministic derivation/VID inputs.
func smallestPoints(echoes map[int]field.Element, k int) []poly.Point {
	ids := make([]int, 0, len(echoes))
	for id := range echoes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) > k {
		ids = ids[:k]
	}
	pts := make([]poly.Point, len(ids))
	for i, id := range ids {
		pts[i] = poly.Point{X: field.FromParty(id), Y: echoes[id]}
	}
	return pts
}

// computeVID commits to the sharing a session finalized from: H(sid ||
// sorted "point:value" pairs for every point 1..N), each value interpolated
// from the F+1 smallest-ID echoes held at finalization. Under omission-only
// faults all echoes lie on the dealer's polynomial, so every party that
// finalizes derives the same VID whichever echoes reached it first. Stable
// once computed (never recomputed after finalization), per the invariant
// that later echoes must not perturb it.
func computeVID(sid string, echoes map[int]field.Element, n, f int) string {
	pts := smallestPoints(echoes, f+1)

	h := sha256.New()
	h.Write([]byte(sid))
	for id := 1; id <= n; id++ {
		h.Write([]byte(":"))
		h.Write([]byte(strconv.Itoa(id)))
		h.Write([]byte("="))
		h.Write(poly.InterpolateAt(pts, field.FromParty(id)).Bytes())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// WaitAccepted blocks until sid finalizes.
func (c *CSS) WaitAccepted(ctx context.Context, sid string) error {
	s := c.session(sid)
	return s.finalizedEvent.Wait(ctx)
}

// HasFinalized reports, without blocking, whether sid has already
// finalized for this party.
func (c *CSS) HasFinalized(sid string) bool {
	s := c.session(sid)
	return s.finalizedEvent.IsSet()
}

// GetShare returns this party's share of sid, once known (dealt directly or
// derived from F+1 echoes). Returns ErrShareNotYetAvailable otherwise.
func (c *CSS) GetShare(sid string) (field.Element, error) {
	s := c.session(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.share == nil {
		return field.Element{}, ErrShareNotYetAvailable
	}
	return *s.share, nil
}

// VID returns the session's finalization identity, if finalized.
func (c *CSS) VID(sid string) (string, bool) {
	s := c.session(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vid, s.status == cssFinalized
}

// HandleRecover processes an inbound CSS_RECOVER share toward a public
// reconstruction of sid.
func (c *CSS) HandleRecover(_ Broadcaster, env network.Envelope) {
	s := c.session(env.SessionID)
	s.mu.Lock()
	if _, known := s.recoverShares[env.Point]; !known {
		s.recoverShares[env.Point] = env.Share
	}
	ready := len(s.recoverShares) >= c.f+1
	s.mu.Unlock()
	if ready {
		s.recoverEvent.Fire()
	}
}

// Recover publicly reconstructs sid's secret: broadcast this party's own
// share, collect F+1 distinct shares (including its own self-delivery), and
// interpolate at zero.
func (c *CSS) Recover(ctx context.Context, bctx Broadcaster, sid string) (field.Element, error) {
	myShare, err := c.GetShare(sid)
	if err != nil {
		return field.Element{}, err
	}
	bctx.Broadcast(network.Envelope{
		Type:      network.CSSRecover,
		Sender:    c.self,
		SessionID: sid,
		Point:     c.self,
		Share:     myShare,
	})
	s := c.session(sid)
	if err := s.recoverEvent.Wait(ctx); err != nil {
		return field.Element{}, err
	}
	s.mu.Lock()
	pts := smallestPoints(s.recoverShares, c.f+1)
	s.mu.Unlock()
	return poly.InterpolateAtZero(pts), nil
}

// HandleReveal processes an inbound CSS_REVEAL, only ever delivered to the
// reconstruction's designated target.
func (c *CSS) HandleReveal(_ Broadcaster, env network.Envelope) {
	s := c.session(env.SessionID)
	s.mu.Lock()
	if _, known := s.revealShares[env.Point]; !known {
		s.revealShares[env.Point] = env.Share
	}
	ready := len(s.revealShares) >= c.f+1
	s.mu.Unlock()
	if ready {
		s.revealEvent.Fire()
	}
}

// RecoverToParty privately reconstructs sid's secret for target only: every
// party sends its share point-to-point, and only target waits for F+1 and
// interpolates. Non-target callers return (nil, nil) immediately.
func (c *CSS) RecoverToParty(ctx context.Context, bctx Broadcaster, sid string, target int) (*field.Element, error) {
	myShare, err := c.GetShare(sid)
	if err != nil {
		return nil, err
	}
	if target == c.self {
		c.HandleReveal(bctx, network.Envelope{SessionID: sid, Point: c.self, Share: myShare})
	} else {
		bctx.Send(target, network.Envelope{
			Type:      network.CSSReveal,
			Sender:    c.self,
			SessionID: sid,
			Point:     c.self,
			Share:     myShare,
		})
	}
	if target != c.self {
		return nil, nil
	}

	s := c.session(sid)
	if err := s.revealEvent.Wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	pts := smallestPoints(s.revealShares, c.f+1)
	s.mu.Unlock()
	secret := poly.InterpolateAtZero(pts)
	return &secret, nil
}
