// Package beacon implements the idealised randomness beacon / common-coin
// service the BA layer consumes: a process-shared resource that releases
// one uniform field element per index once a threshold of distinct
// parties have requested it. Treated as "external" by the spec's
// component table (§2), grounded on the reference sim/beacon.py.
package beacon

import (
	"context"
	"sync"

	"secondprice-mpc-auction/async"
	"secondprice-mpc-auction/field"
)

// Beacon is the single mutex-protected shared resource parties consume in
// common (§5 CONCURRENCY & RESOURCE MODEL: "the beacon is the only
// cross-party shared resource").
type Beacon struct {
	threshold int
	randFn    func() field.Element

	mu       sync.Mutex
	requests map[int]map[int]bool
	values   map[int]field.Element
	events   map[int]*async.Event
}

// New builds a Beacon that releases index k once `threshold` distinct
// parties have requested k. randFn supplies the value released per index;
// pass field.Random for cryptographic randomness or a seeded generator for
// reproducible scenarios.
func New(threshold int, randFn func() field.Element) *Beacon {
	if randFn == nil {
		randFn = field.Random
	}
	return &Beacon{
		threshold: threshold,
		randFn:    randFn,
		requests:  make(map[int]map[int]bool),
		values:    make(map[int]field.Element),
		events:    make(map[int]*async.Event),
	}
}

// Request blocks until at least `threshold` distinct parties have called
// Request for the same index, then returns the (now-fixed) value for that
// index to every requester.
func (b *Beacon) Request(ctx context.Context, index, partyID int) (field.Element, error) {
	b.mu.Lock()
	if b.requests[index] == nil {
		b.requests[index] = make(map[int]bool)
		b.events[index] = async.NewEvent()
	}
	b.requests[index][partyID] = true
	if len(b.requests[index]) >= b.threshold {
		if _, ok := b.values[index]; !ok {
			b.values[index] = b.randFn()
		}
		b.events[index].Fire()
	}
	ev := b.events[index]
	b.mu.Unlock()

	if err := ev.Wait(ctx); err != nil {
		return field.Element{}, err
	}

	b.mu.Lock()
	v := b.values[index]
	b.mu.Unlock()
	return v, nil
}

// Invocations reports how many distinct indices have actually generated a
// value (i.e. reached threshold), for operator metrics.
func (b *Beacon) Invocations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}
