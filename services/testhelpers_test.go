package services

import (
	"context"

	"github.com/rs/zerolog"

	"secondprice-mpc-auction/beacon"
	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
)

// netBroadcaster adapts network.Network to the narrow Broadcaster interface
// each protocol-layer tracker depends on, binding it to one party's identity.
// Mirrors the production wiring in cmd/auction/main.go (there, via
// ServiceManager), narrowed here so component tests don't need the whole
// Party/ServiceManager stack.
type netBroadcaster struct {
	self int
	net  *network.Network[network.Envelope]
}

func (b *netBroadcaster) Broadcast(msg network.Envelope) {
	b.net.Broadcast(b.self, msg)
}

func (b *netBroadcaster) Send(to int, msg network.Envelope) {
	b.net.Send(b.self, to, msg)
}

// testNode bundles one party's full protocol-layer stack and its message
// dispatch loop, matching the msg_type -> handler table party.Party.OnMessage
// drives in production, narrowed to what's under test.
type testNode struct {
	self  int
	bctx  *netBroadcaster
	rbc   *RBC
	ba    *BA
	css   *CSS
	acs   *ACS
	mpc   *MPCArith
	bd    *BitDecomp
	op    *OutputPrivacy
	inbox chan network.Envelope
}

// newTestCluster builds n parties tolerating f faults, sharing one
// in-process network and one beacon, with every tracker wired exactly as
// party.New wires them.
func newTestCluster(n, f, bitWidth int) ([]*testNode, *network.Network[network.Envelope]) {
	net := network.New[network.Envelope]()
	beac := beacon.New(f+1, field.Random)
	nodes := make([]*testNode, n)
	for i := 0; i < n; i++ {
		id := i + 1
		logger := zerolog.Nop()
		rbc := NewRBC(id, n, f, logger)
		ba := NewBA(id, n, f, beac, logger)
		css := NewCSS(id, n, f, logger)
		acs := NewACS(id, n, f, rbc, ba, logger)
		mpc := NewMPCArith(id, n, f, css, acs, field.Random, logger)
		bd := NewBitDecomp(id, n, f, bitWidth, mpc, css, acs, nil, logger)
		op := NewOutputPrivacy(id, n, f, mpc, logger)
		inbox := make(chan network.Envelope, 8192)
		net.Register(id, inbox)
		nodes[i] = &testNode{
			self: id, bctx: &netBroadcaster{self: id, net: net},
			rbc: rbc, ba: ba, css: css, acs: acs, mpc: mpc, bd: bd, op: op,
			inbox: inbox,
		}
	}
	return nodes, net
}

func (n *testNode) dispatch(env network.Envelope) {
	switch env.Type {
	case network.RBCInit:
		n.rbc.HandleInit(n.bctx, env)
	case network.RBCEcho:
		n.rbc.HandleEcho(n.bctx, env)
	case network.RBCReady:
		n.rbc.HandleReady(n.bctx, env)
	case network.BAVote:
		n.ba.HandleVote(n.bctx, env)
	case network.BADecide:
		n.ba.HandleDecide(n.bctx, env)
	case network.CSSShare:
		n.css.HandleShare(n.bctx, env)
	case network.CSSEcho:
		n.css.HandleEcho(n.bctx, env)
	case network.CSSReady:
		n.css.HandleReady(n.bctx, env)
	case network.CSSRecover:
		n.css.HandleRecover(n.bctx, env)
	case network.CSSReveal:
		n.css.HandleReveal(n.bctx, env)
	case network.MPCOpen:
		n.mpc.HandleOpen(n.bctx, env)
	case network.MaskShare:
		n.op.HandleMaskShare(n.bctx, env)
	}
}

// start runs the node's dispatch loop until ctx is cancelled.
func (n *testNode) start(ctx context.Context) {
	go func() {
		for {
			select {
			case env := <-n.inbox:
				n.dispatch(env)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func startCluster(ctx context.Context, nodes []*testNode) {
	for _, n := range nodes {
		n.start(ctx)
	}
}

// setActiveSetAll fixes every node's MPCArith active set to activeSet.
func setActiveSetAll(nodes []*testNode, activeSet []int) {
	for _, n := range nodes {
		n.mpc.SetActiveSet(activeSet)
	}
}

func allIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}
