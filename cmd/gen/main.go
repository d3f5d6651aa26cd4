// Command gen prints one random argument line for cmd/auction: --n, --f
// and --bids with N comma-separated bids. Adapted from the teacher's gen.go random-(n,t)-plus-input generator,
// retargeted from ABA binary inputs to auction bid values.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

func main() {
	n := flag.Int("n", 0, "number of parties (0 = random 4..13)")
	maxBid := flag.Int("max-bid", 1000, "bids are drawn uniformly from [0, max-bid]")
	seed := flag.Int64("seed", 0, "rng seed (0 = time-based)")
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(s))

	N := *n
	if N == 0 {
		N = r.Intn(10) + 4 // 4..13
	}
	// F is bounded by the module's tolerance model: 3F < N.
	F := (N - 1) / 3

	bids := make([]string, N)
	for i := 0; i < N; i++ {
		bids[i] = fmt.Sprintf("%d", r.Intn(*maxBid+1))
	}

	fmt.Printf("--n=%d --f=%d --bids=%s\n", N, F, strings.Join(bids, ","))
}
