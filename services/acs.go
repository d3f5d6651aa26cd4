package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/network"
)

type acsInstance struct {
	mu        sync.Mutex
	started   map[int]bool // j -> BA_j has been Start()-ed
	decidedOk int          // count of BA_j decided 1
	outputSet *async.Event
	output    []int
}

func newACSInstance() *acsInstance {
	return &acsInstance{started: make(map[int]bool)}
}

// ACS implements Agreement on a Common Set of accepted dealers per §4.3:
// every party RBC-broadcasts its own accepted set, runs one BA per
// candidate dealer keyed on "has j's RBC delivered", and outputs the set of
// dealers whose BA decided 1. Fully event-driven, with no timeouts, wiring
// RBC and BA exactly as the original_source/protocols/acs.py orchestration
// describes (minus its timeout machinery, which §4.3/§7 explicitly drop).
type ACS struct {
	n, f, self int
	rbc        *RBC
	ba         *BA
	log        zerolog.Logger

	mu        sync.Mutex
	instances map[string]*acsInstance
}

// NewACS builds an ACS tracker sharing the party's RBC and BA trackers.
func NewACS(self, n, f int, rbc *RBC, ba *BA, logger zerolog.Logger) *ACS {
	return &ACS{
		n: n, f: f, self: self,
		rbc:       rbc,
		ba:        ba,
		log:       logger.With().Str("layer", "ACS").Int("party_id", self).Logger(),
		instances: make(map[string]*acsInstance),
	}
}

func (a *ACS) instance(instanceID string) *acsInstance {
	a.mu.Lock()
	defer a.mu.Unlock()
	inst, ok := a.instances[instanceID]
	if !ok {
		inst = newACSInstance()
		a.instances[instanceID] = inst
	}
	return inst
}

func proposeTag(instanceID string, dealer int) string {
	return fmt.Sprintf("acs:%s:propose:%d", instanceID, dealer)
}

func baKey(instanceID string, dealer int) string {
	return fmt.Sprintf("acs:%s:ba:%d", instanceID, dealer)
}

// Propose RBC-broadcasts this party's accepted-dealer set under the
// instance's propose tag for dealer=self, and starts watching every other
// dealer's RBC for delivery.
func (a *ACS) Propose(ctx context.Context, bctx Broadcaster, instanceID string, accepted []int) error {
	payload, err := json.Marshal(accepted)
	if err != nil {
		return err
	}
	a.rbc.Broadcast(bctx, proposeTag(instanceID, a.self), payload)

	inst := a.instance(instanceID)
	for j := 1; j <= a.n; j++ {
		go a.watchDealer(ctx, bctx, instanceID, inst, j)
	}
	return nil
}

// watchDealer waits for dealer j's RBC to deliver, then starts BA_j with
// input 1. Once N-F BA instances have decided 1, every BA not yet started
// is started with input 0 (§4.3 step 4).
func (a *ACS) watchDealer(ctx context.Context, bctx Broadcaster, instanceID string, inst *acsInstance, dealer int) {
	if _, err := a.rbc.WaitDeliver(ctx, dealer, proposeTag(instanceID, dealer)); err != nil {
		return
	}
	a.ba.Start(ctx, bctx, baKey(instanceID, dealer), 1)

	if decided, err := a.ba.WaitDecided(ctx, baKey(instanceID, dealer)); err == nil && decided == 1 {
		inst.mu.Lock()
		inst.decidedOk++
		triggerZeroFill := inst.decidedOk >= a.n-a.f
		inst.mu.Unlock()
		if triggerZeroFill {
			a.fillRemainingWithZero(ctx, bctx, instanceID, inst)
		}
	}
}

func (a *ACS) fillRemainingWithZero(ctx context.Context, bctx Broadcaster, instanceID string, inst *acsInstance) {
	for j := 1; j <= a.n; j++ {
		a.ba.Start(ctx, bctx, baKey(instanceID, j), 0)
	}
	go a.collectOutput(ctx, instanceID, inst)
}

// collectOutput waits for all N BA instances to decide and assembles the
// output set T = {j : BA_j decided 1}.
func (a *ACS) collectOutput(ctx context.Context, instanceID string, inst *acsInstance) {
	members := make([]int, 0, a.n)
	for j := 1; j <= a.n; j++ {
		decided, err := a.ba.WaitDecided(ctx, baKey(instanceID, j))
		if err != nil {
			return
		}
		if decided == 1 {
			members = append(members, j)
		}
	}
	sort.Ints(members)

	inst.mu.Lock()
	if inst.outputSet == nil {
		inst.outputSet = async.NewEvent()
	}
	alreadySet := inst.output != nil
	if !alreadySet {
		inst.output = members
	}
	ev := inst.outputSet
	inst.mu.Unlock()

	if !alreadySet {
		a.log.Debug().Str("instance", instanceID).Ints("set", members).Msg("agreed")
		ev.Fire()
	}
}

// WaitOutput blocks until instanceID's common set is agreed, returning the
// sorted set of accepted dealer IDs.
func (a *ACS) WaitOutput(ctx context.Context, instanceID string) ([]int, error) {
	inst := a.instance(instanceID)
	inst.mu.Lock()
	if inst.outputSet == nil {
		inst.outputSet = async.NewEvent()
	}
	ev := inst.outputSet
	inst.mu.Unlock()

	if err := ev.Wait(ctx); err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.output, nil
}
