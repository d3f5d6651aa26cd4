package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/network"
)

// shareSecretAcross CSS-shares `secret` from dealer's node under sid and waits for
// every node to finalize it, returning nothing (callers fetch shares via
// node.css.GetShare(sid)).
func shareSecretAcross(t *testing.T, ctx context.Context, nodes []*testNode, dealer int, secret field.Element, sid string) {
	t.Helper()
	nodes[dealer-1].css.Share(nodes[dealer-1].bctx, secret, sid, field.Random)
	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, sid))
	}
}

func TestMPCOpenValueReconstructsTheSharedSecret(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	setActiveSetAll(nodes, allIDs(n))

	secret := field.New(4242)
	shareSecretAcross(t, ctx, nodes, 1, secret, "open-test")

	var wg sync.WaitGroup
	opened := make([]field.Element, n)
	wg.Add(n)
	for i, node := range nodes {
		i, node := i, node
		go func() {
			defer wg.Done()
			share, err := node.css.GetShare("open-test")
			require.NoError(t, err)
			v, err := node.mpc.OpenValue(ctx, node.bctx, share, "open-test")
			require.NoError(t, err)
			opened[i] = v
		}()
	}
	wg.Wait()

	for i := range opened {
		assert.True(t, opened[i].Equal(secret), "party %d opened wrong value", i+1)
	}
}

func TestMPCMultiplyComputesTheProduct(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	setActiveSetAll(nodes, allIDs(n))

	a, b := field.New(6), field.New(7)
	shareSecretAcross(t, ctx, nodes, 1, a, "mul-a")
	shareSecretAcross(t, ctx, nodes, 2, b, "mul-b")

	var wg sync.WaitGroup
	products := make([]field.Element, n)
	wg.Add(n)
	for i, node := range nodes {
		i, node := i, node
		go func() {
			defer wg.Done()
			sa, err := node.css.GetShare("mul-a")
			require.NoError(t, err)
			sb, err := node.css.GetShare("mul-b")
			require.NoError(t, err)
			prodShare, err := node.mpc.Multiply(ctx, node.bctx, sa, sb, "gate-1")
			require.NoError(t, err)
			products[i] = prodShare
		}()
	}
	wg.Wait()

	// Open the product shares to check they reconstruct to a*b.
	var wg2 sync.WaitGroup
	opened := make([]field.Element, n)
	wg2.Add(n)
	for i, node := range nodes {
		i, node := i, node
		go func() {
			defer wg2.Done()
			v, err := node.mpc.OpenValue(ctx, node.bctx, products[i], "open-product")
			require.NoError(t, err)
			opened[i] = v
		}()
	}
	wg2.Wait()

	want := a.Mul(b)
	for i := range opened {
		assert.True(t, opened[i].Equal(want), "party %d: got %s want %s", i+1, opened[i].String(), want.String())
	}
}

func TestMPCLocalOperationsAreLinear(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	m := nodes[0].mpc
	a, b, k := field.New(10), field.New(3), field.New(2)
	assert.True(t, m.Add(a, b).Equal(field.New(13)))
	assert.True(t, m.Sub(a, b).Equal(field.New(7)))
	assert.True(t, m.ScalarMul(a, k).Equal(field.New(20)))
	assert.True(t, m.AddConst(a, k).Equal(field.New(12)))
}

func TestMPCOpenValueToleratesOneActiveMemberOmittingItsOpen(t *testing.T) {
	n, f := 4, 1
	nodes, net := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	activeSet := allIDs(n)
	setActiveSetAll(nodes, activeSet)

	secret := field.New(314)
	shareSecretAcross(t, ctx, nodes, 1, secret, "open-omit-test")

	// Party 4 never gets an MPC_OPEN out; each of the remaining three
	// parties collects only the shares of parties 1-3, and the first F+1=2
	// of them must be enough.
	net.SetDrop(network.SelectiveOmission{PartyID: 4, DropTo: map[int]bool{1: true, 2: true, 3: true, 4: true}})

	var wg sync.WaitGroup
	opened := make([]field.Element, n-1)
	errs := make([]error, n-1)
	wg.Add(n - 1)
	for i := 0; i < n-1; i++ {
		i, node := i, nodes[i]
		go func() {
			defer wg.Done()
			share, err := node.css.GetShare("open-omit-test")
			require.NoError(t, err)
			v, err := node.mpc.OpenValue(ctx, node.bctx, share, "open-omit-test")
			opened[i] = v
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "party %d", i+1)
		assert.True(t, opened[i].Equal(secret), "party %d opened wrong value", i+1)
	}
}

func TestMPCOpenValueBeforeActiveSetErrors(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := nodes[0].mpc.OpenValue(ctx, nodes[0].bctx, field.New(1), "no-active-set")
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMPCMultiplyGatesAreIndependent(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	setActiveSetAll(nodes, allIDs(n))

	shareSecretAcross(t, ctx, nodes, 1, field.New(2), "x")
	shareSecretAcross(t, ctx, nodes, 2, field.New(3), "y")

	for g := 0; g < 3; g++ {
		g := g
		var wg sync.WaitGroup
		wg.Add(n)
		for _, node := range nodes {
			node := node
			go func() {
				defer wg.Done()
				sx, _ := node.css.GetShare("x")
				sy, _ := node.css.GetShare("y")
				_, err := node.mpc.Multiply(ctx, node.bctx, sx, sy, fmt.Sprintf("indep-%d", g))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	}
}
