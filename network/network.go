package network

import (
	"sync"
	"time"
)

// Network multiplexes typed messages between registered parties over
// per-directed-pair simulated links: each Send/Broadcast call consults the
// drop policy, then the delay model, before the message reaches its
// recipient's inbox channel. Generalizes the teacher's Network[TMsg]
// (register/broadcast over a map of peer channels) with the omission and
// delay machinery the reference design's sim/network.py provides.
type Network[TMsg any] struct {
	mu      sync.RWMutex
	peers   map[int]chan TMsg
	delay   DelayModel
	drop    DropPolicy
	metrics *Metrics
	typeOf  func(TMsg) string
}

// Option configures a Network at construction time.
type Option[TMsg any] func(*Network[TMsg])

// WithDelay installs a delay model; the zero value (nil) means no delay.
func WithDelay[TMsg any](d DelayModel) Option[TMsg] {
	return func(n *Network[TMsg]) { n.delay = d }
}

// WithDrop installs an omission policy; the zero value (nil) means nothing
// is ever dropped.
func WithDrop[TMsg any](d DropPolicy) Option[TMsg] {
	return func(n *Network[TMsg]) { n.drop = d }
}

// WithTypeOf installs a function recovering a string message-type label
// used for per-type drop policies and metrics breakdowns. Without it,
// DropTypes and the metrics "by type" report are unavailable (treated as
// "unknown").
func WithTypeOf[TMsg any](f func(TMsg) string) Option[TMsg] {
	return func(n *Network[TMsg]) { n.typeOf = f }
}

// New builds an empty Network with no peers registered.
func New[TMsg any](opts ...Option[TMsg]) *Network[TMsg] {
	n := &Network[TMsg]{
		peers:   make(map[int]chan TMsg),
		metrics: NewMetrics(),
		typeOf:  func(TMsg) string { return "unknown" },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register associates party id with its inbox channel.
func (n *Network[TMsg]) Register(id int, ch chan TMsg) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = ch
}

// SetDrop swaps the active omission policy at runtime (e.g. a test
// triggering an omission mid-run).
func (n *Network[TMsg]) SetDrop(d DropPolicy) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drop = d
}

// Metrics returns the network's live metrics counters.
func (n *Network[TMsg]) Metrics() *Metrics {
	return n.metrics
}

// Send delivers msg from -> to over their simulated link, honoring the
// drop policy and delay model. Point-to-point; each message is handed to
// the recipient from its own goroutine, so two messages on the same link
// can arrive in either order.
func (n *Network[TMsg]) Send(from, to int, msg TMsg) {
	n.mu.RLock()
	ch, ok := n.peers[to]
	drop := n.drop
	delayModel := n.delay
	typ := n.typeOf(msg)
	n.mu.RUnlock()
	if !ok {
		return
	}

	n.metrics.RecordSent(typ)
	if drop != nil && drop.ShouldDrop(from, to, typ) {
		n.metrics.RecordDropped(typ)
		return
	}

	deliver := func() {
		ch <- msg
	}
	if delayModel != nil {
		d := delayModel.Delay(from, to)
		if d > 0 {
			go func() {
				time.Sleep(d)
				deliver()
			}()
			return
		}
	}
	go deliver()
}

// Broadcast sends msg from -> every other registered peer.
func (n *Network[TMsg]) Broadcast(from int, msg TMsg) {
	n.mu.RLock()
	ids := make([]int, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	n.mu.RUnlock()
	for _, id := range ids {
		if id == from {
			continue
		}
		n.Send(from, id, msg)
	}
	// A correct sender always processes its own broadcast locally too
	// (self-delivery), matching the teacher's Network.Broadcast sending to
	// every registered channel including the sender's own.
	n.mu.RLock()
	ch, ok := n.peers[from]
	n.mu.RUnlock()
	if ok {
		go func() { ch <- msg }()
	}
}
