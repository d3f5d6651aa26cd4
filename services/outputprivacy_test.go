package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondprice-mpc-auction/field"
)

func TestOutputPrivacyOwnerRecoversValueNonOwnersGetNothing(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	setActiveSetAll(nodes, allIDs(n))

	owner := 3
	out := field.New(777)
	shareSecretAcross(t, ctx, nodes, 1, out, "op-out")
	mask := field.New(111)
	shareSecretAcross(t, ctx, nodes, 2, mask, "op-mask")

	var wg sync.WaitGroup
	results := make([]*field.Element, n)
	errs := make([]error, n)
	wg.Add(n)
	for i, node := range nodes {
		i, node := i, node
		go func() {
			defer wg.Done()
			os, err := node.css.GetShare("op-out")
			require.NoError(t, err)
			ms, err := node.css.GetShare("op-mask")
			require.NoError(t, err)
			v, err := node.op.RevealToOwner(ctx, node.bctx, os, owner, ms, "op-sid")
			results[i] = v
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "party %d", i+1)
	}
	for i := range nodes {
		if i+1 == owner {
			require.NotNil(t, results[i], "owner should recover the output")
			assert.True(t, results[i].Equal(out), "owner recovered %s want %s", results[i].String(), out.String())
		} else {
			assert.Nil(t, results[i], "non-owner %d should get nothing", i+1)
		}
	}
}

func TestOutputPrivacyInsufficientMaskSharesTimesOut(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startCluster(ctx, nodes)
	setActiveSetAll(nodes, allIDs(n))

	owner := 1
	out := field.New(5)
	shareSecretAcross(t, ctx, nodes, 1, out, "op-out-2")
	mask := field.New(9)
	shareSecretAcross(t, ctx, nodes, 2, mask, "op-mask-2")

	// Every other party takes part in the public open of o+m but never
	// sends its mask share, so only the owner's own mask share ever
	// arrives; F+1=2 are required to reconstruct the mask, so the owner's
	// wait must time out rather than recover a wrong value.
	for _, node := range nodes {
		if node.self == owner {
			continue
		}
		node := node
		go func() {
			os, _ := node.css.GetShare("op-out-2")
			ms, _ := node.css.GetShare("op-mask-2")
			_, _ = node.mpc.OpenValue(ctx, node.bctx, node.mpc.Add(os, ms), "op-sid-2:open")
		}()
	}
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer shortCancel()
	os, err := nodes[owner-1].css.GetShare("op-out-2")
	require.NoError(t, err)
	ms, err := nodes[owner-1].css.GetShare("op-mask-2")
	require.NoError(t, err)
	_, err = nodes[owner-1].op.RevealToOwner(shortCtx, nodes[owner-1].bctx, os, owner, ms, "op-sid-2")
	assert.Error(t, err)
}
