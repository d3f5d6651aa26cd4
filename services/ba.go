package services

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/beacon"
	"secondprice-mpc-auction/network"
)

type baInstance struct {
	mu sync.Mutex

	started  bool
	round    int
	decided  bool
	decidedV int

	// votes[round][value] = set of immediate senders who voted value in round.
	votes map[int]map[int]map[int]bool
	// roundEvents[round] fires once >= n-f votes (any values) are in for
	// that round, or once a DECIDE arrives (to unblock any waiter).
	roundEvents map[int]*async.Event

	decidedEvent *async.Event
}

func newBAInstance() *baInstance {
	return &baInstance{
		votes:        make(map[int]map[int]map[int]bool),
		roundEvents:  make(map[int]*async.Event),
		decidedEvent: async.NewEvent(),
	}
}

func (inst *baInstance) roundEvent(round int) *async.Event {
	ev, ok := inst.roundEvents[round]
	if !ok {
		ev = async.NewEvent()
		inst.roundEvents[round] = ev
	}
	return ev
}

// BA implements Ben-Or-style binary agreement with a beacon common coin,
// per §4.2. Grounded on original_source/protocols/ba.py's round-vote loop
// (run/handle_vote/handle_decide), expressed with the teacher's
// round-indexed state map and per-instance logger idiom (aba.go).
type BA struct {
	n, f, self int
	beac       *beacon.Beacon
	log        zerolog.Logger

	mu        sync.Mutex
	instances map[string]*baInstance
}

// NewBA builds a BA tracker for one party, sharing the process-wide
// beacon with every other party's tracker.
func NewBA(self, n, f int, beac *beacon.Beacon, logger zerolog.Logger) *BA {
	return &BA{
		n: n, f: f, self: self,
		beac:      beac,
		log:       logger.With().Str("layer", "BA").Int("party_id", self).Logger(),
		instances: make(map[string]*baInstance),
	}
}

func (b *BA) instance(key string) *baInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.instances[key]
	if !ok {
		inst = newBAInstance()
		b.instances[key] = inst
	}
	return inst
}

// beaconIndex derives a stable per-(key,round) beacon index so every
// correct party requests the same index for the same round of the same
// instance, keeping indices disjoint across instances (§4.2's namespacing
// requirement) without coordinating a shared counter.
func beaconIndex(key string, round int) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(round)))
	return int(h.Sum64() & 0x7fffffff)
}

// IsStarted reports whether Start has been called for key.
func (b *BA) IsStarted(key string) bool {
	inst := b.instance(key)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.started
}

// Start runs the instance's round loop with the given initial estimate,
// if it has not already been started (first call wins; later calls are
// no-ops, matching ACS's "input 1 if not yet started" / "input 0 into
// every instance not yet started" semantics in §4.3).
func (b *BA) Start(ctx context.Context, bctx Broadcaster, key string, input int) {
	inst := b.instance(key)
	inst.mu.Lock()
	if inst.started {
		inst.mu.Unlock()
		return
	}
	inst.started = true
	inst.mu.Unlock()

	go b.runLoop(ctx, bctx, key, inst, input)
}

func (b *BA) runLoop(ctx context.Context, bctx Broadcaster, key string, inst *baInstance, estimate int) {
	round := 1
	for {
		inst.mu.Lock()
		inst.round = round
		ev := inst.roundEvent(round)
		inst.mu.Unlock()

		bctx.Broadcast(network.Envelope{
			Type:      network.BAVote,
			Sender:    b.self,
			SessionID: key,
			Round:     round,
			Value:     estimate,
		})

		select {
		case <-ev.Done():
		case <-inst.decidedEvent.Done():
		case <-ctx.Done():
			return
		}

		inst.mu.Lock()
		if inst.decided {
			inst.mu.Unlock()
			return
		}
		c0 := len(inst.votes[round][0])
		c1 := len(inst.votes[round][1])
		inst.mu.Unlock()

		switch {
		case c1 >= b.n-b.f:
			b.decide(bctx, key, inst, 1)
			return
		case c0 >= b.n-b.f:
			b.decide(bctx, key, inst, 0)
			return
		case c1 >= b.f+1:
			estimate = 1
		case c0 >= b.f+1:
			estimate = 0
		default:
			val, err := b.beac.Request(ctx, beaconIndex(key, round), b.self)
			if err != nil {
				return
			}
			estimate = val.Bit(0)
		}
		round++
	}
}

func (b *BA) decide(bctx Broadcaster, key string, inst *baInstance, value int) {
	inst.mu.Lock()
	if inst.decided {
		inst.mu.Unlock()
		return
	}
	inst.decided = true
	inst.decidedV = value
	inst.decidedEvent.Fire()
	for _, ev := range inst.roundEvents {
		ev.Fire()
	}
	inst.mu.Unlock()

	b.log.Debug().Str("key", key).Int("value", value).Msg("decided")
	bctx.Broadcast(network.Envelope{
		Type:      network.BADecide,
		Sender:    b.self,
		SessionID: key,
		Value:     value,
	})
}

// HandleVote tallies an inbound BA_VOTE.
func (b *BA) HandleVote(_ Broadcaster, env network.Envelope) {
	inst := b.instance(env.SessionID)
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.decided {
		return
	}
	if inst.votes[env.Round] == nil {
		inst.votes[env.Round] = make(map[int]map[int]bool)
	}
	if inst.votes[env.Round][env.Value] == nil {
		inst.votes[env.Round][env.Value] = make(map[int]bool)
	}
	inst.votes[env.Round][env.Value][env.Sender] = true

	total := len(inst.votes[env.Round][0]) + len(inst.votes[env.Round][1])
	if total >= b.n-b.f {
		inst.roundEvent(env.Round).Fire()
	}
}

// HandleDecide adopts an inbound BA_DECIDE immediately, short-circuiting
// any in-flight round loop.
func (b *BA) HandleDecide(_ Broadcaster, env network.Envelope) {
	inst := b.instance(env.SessionID)
	inst.mu.Lock()
	if inst.decided {
		inst.mu.Unlock()
		return
	}
	inst.decided = true
	inst.decidedV = env.Value
	inst.decidedEvent.Fire()
	for _, ev := range inst.roundEvents {
		ev.Fire()
	}
	inst.mu.Unlock()
}

// WaitDecided blocks until the instance decides, returning its value.
func (b *BA) WaitDecided(ctx context.Context, key string) (int, error) {
	inst := b.instance(key)
	if err := inst.decidedEvent.Wait(ctx); err != nil {
		return 0, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.decidedV, nil
}
