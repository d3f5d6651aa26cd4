package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondprice-mpc-auction/field"
	"secondprice-mpc-auction/poly"
)

func TestCSSAllPartiesFinalizeAndRecoverTheSameSecret(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startCluster(ctx, nodes)

	secret := field.New(777)
	nodes[0].css.Share(nodes[0].bctx, secret, "bid-1", field.Random)

	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, "bid-1"))
		_, err := node.css.GetShare("bid-1")
		require.NoError(t, err)
	}

	got, err := nodes[1].css.Recover(ctx, nodes[1].bctx, "bid-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(secret))
}

func TestCSSSharesAreConsistentOnTheDealersPolynomial(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startCluster(ctx, nodes)

	secret := field.New(55)
	nodes[0].css.Share(nodes[0].bctx, secret, "sess", field.Random)

	pts := make([]poly.Point, 0, n)
	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, "sess"))
		share, err := node.css.GetShare("sess")
		require.NoError(t, err)
		pts = append(pts, poly.Point{X: field.FromParty(node.self), Y: share})
	}
	assert.True(t, poly.InterpolateAtZero(pts).Equal(secret))
}

func TestCSSVIDAgreesAcrossParties(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startCluster(ctx, nodes)

	nodes[0].css.Share(nodes[0].bctx, field.New(9), "vid-sess", field.Random)
	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, "vid-sess"))
	}
	vid0, ok0 := nodes[0].css.VID("vid-sess")
	require.True(t, ok0)
	for _, node := range nodes[1:] {
		vid, ok := node.css.VID("vid-sess")
		require.True(t, ok)
		assert.Equal(t, vid0, vid)
	}
}

func TestCSSRecoverToPartyOnlyRevealsToOwner(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startCluster(ctx, nodes)

	secret := field.New(321)
	nodes[0].css.Share(nodes[0].bctx, secret, "priv", field.Random)
	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, "priv"))
	}

	owner := 3
	for _, node := range nodes {
		revealed, err := node.css.RecoverToParty(ctx, node.bctx, "priv", owner)
		require.NoError(t, err)
		if node.self == owner {
			require.NotNil(t, revealed)
			assert.True(t, revealed.Equal(secret))
		} else {
			assert.Nil(t, revealed)
		}
	}
}

func TestCSSDistinctSessionsAreIndependent(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	startCluster(ctx, nodes)

	nodes[0].css.Share(nodes[0].bctx, field.New(1), "s-a", field.Random)
	nodes[1].css.Share(nodes[1].bctx, field.New(2), "s-b", field.Random)

	for _, node := range nodes {
		require.NoError(t, node.css.WaitAccepted(ctx, "s-a"))
		require.NoError(t, node.css.WaitAccepted(ctx, "s-b"))
	}

	gotA, err := nodes[2].css.Recover(ctx, nodes[2].bctx, "s-a")
	require.NoError(t, err)
	gotB, err := nodes[2].css.Recover(ctx, nodes[2].bctx, "s-b")
	require.NoError(t, err)
	assert.True(t, gotA.Equal(field.New(1)))
	assert.True(t, gotB.Equal(field.New(2)))
}

func TestCSSGetShareBeforeFinalizationErrors(t *testing.T) {
	n, f := 4, 1
	nodes, _ := newTestCluster(n, f, 8)
	_, err := nodes[3].css.GetShare("never-shared")
	assert.ErrorIs(t, err, ErrShareNotYetAvailable)
}
