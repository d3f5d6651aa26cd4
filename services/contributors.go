package services

import (
	"context"
	"sort"
	"sync"
)

// AgreeContributors runs the "propose accepted set once N-F confirmations
// are in hand" dance shared by the main active-set agreement, bit-pool
// preprocessing, and mask-pool preprocessing: every party in activeSet
// deals something under a tag this instance can derive from its dealer ID
// (tagForDealer), and AgreeContributors waits for CSS finalization of those
// tags, proposing its own accepted-so-far list to ACS once N-F are in, then
// returns the full sorted set of IDs ACS agrees on (|T| >= N-F, up to N;
// original_source/acs.py:41 returns the whole agreed set). Callers that
// need exactly N-F contributors for a gate's Lagrange basis (per-gate
// multiply and preprocessing, original_source/protocols/mpc_arithmetic.py:103)
// truncate the result themselves.
func AgreeContributors(ctx context.Context, bctx Broadcaster, acs *ACS, css *CSS, self, n, f int, activeSet []int, instanceID string, tagForDealer func(dealer int) string) ([]int, error) {
	var mu sync.Mutex
	accepted := []int{self}
	var once sync.Once

	propose := func() {
		mu.Lock()
		snap := append([]int(nil), accepted...)
		mu.Unlock()
		if len(snap) < n-f {
			return
		}
		once.Do(func() {
			sort.Ints(snap)
			_ = acs.Propose(ctx, bctx, instanceID, snap)
		})
	}
	propose()

	for _, dealer := range activeSet {
		if dealer == self {
			continue
		}
		dealer := dealer
		go func() {
			if err := css.WaitAccepted(ctx, tagForDealer(dealer)); err != nil {
				return
			}
			mu.Lock()
			accepted = append(accepted, dealer)
			mu.Unlock()
			propose()
		}()
	}

	contributors, err := acs.WaitOutput(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	sort.Ints(contributors)
	return contributors, nil
}

// TakeNMinusF returns the first N-F sorted IDs of contributors, for callers
// (per-gate multiply, bit-pool preprocessing) that need exactly N-F
// contributors to fix a gate's Lagrange basis, rather than the full
// AgreeContributors output.
func TakeNMinusF(contributors []int, n, f int) []int {
	sorted := append([]int(nil), contributors...)
	sort.Ints(sorted)
	if len(sorted) > n-f {
		sorted = sorted[:n-f]
	}
	return sorted
}
